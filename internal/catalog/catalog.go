// Package catalog holds the menu shapes shared by the server and the terminal
// client: menu items, their flavor sections and the global add-on catalog.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kopibar/pos/internal/enum"
	"github.com/shopspring/decimal"
)

// FlavorOption is a selectable option. On the wire it is either a bare string
// (free) or an object {"name", "price"}.
type FlavorOption struct {
	Name  string
	Price decimal.Decimal
}

type flavorOptionObject struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (o *FlavorOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*o = FlavorOption{Name: name, Price: decimal.Zero}
		return nil
	}
	var obj flavorOptionObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("flavor option: %w", err)
	}
	*o = FlavorOption{Name: obj.Name, Price: obj.Price}
	return nil
}

func (o FlavorOption) MarshalJSON() ([]byte, error) {
	if o.Price.IsZero() {
		return json.Marshal(o.Name)
	}
	return json.Marshal(flavorOptionObject{Name: o.Name, Price: o.Price})
}

// FlavorSection is a named group of options with a selection cap.
type FlavorSection struct {
	Name    string         `json:"name"`
	Max     int            `json:"max"`
	Options []FlavorOption `json:"options"`
}

// Option looks up an option by exact name.
func (s FlavorSection) Option(name string) (FlavorOption, bool) {
	for _, o := range s.Options {
		if o.Name == name {
			return o, true
		}
	}
	return FlavorOption{}, false
}

// Flavors is the canonical form of a menu item's options. A legacy flat
// string list is normalized into a single unnamed section with Sectioned=false,
// so nothing past decoding has to care which shape was stored.
type Flavors struct {
	Sectioned bool
	Sections  []FlavorSection
}

// SimpleFlavors builds the flat-list form.
func SimpleFlavors(names ...string) Flavors {
	opts := make([]FlavorOption, len(names))
	for i, n := range names {
		opts[i] = FlavorOption{Name: n, Price: decimal.Zero}
	}
	return Flavors{Sections: []FlavorSection{{Options: opts}}}
}

// SectionedFlavors builds the sectioned form.
func SectionedFlavors(sections ...FlavorSection) Flavors {
	return Flavors{Sectioned: true, Sections: sections}
}

func (f Flavors) IsEmpty() bool {
	for _, s := range f.Sections {
		if len(s.Options) > 0 {
			return false
		}
	}
	return true
}

// Names returns every option name in declaration order.
func (f Flavors) Names() []string {
	var out []string
	for _, s := range f.Sections {
		for _, o := range s.Options {
			out = append(out, o.Name)
		}
	}
	return out
}

func (f *Flavors) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Flavors{}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("flavors must be an array: %w", err)
	}
	if len(raw) == 0 {
		*f = Flavors{}
		return nil
	}

	switch bytes.TrimSpace(raw[0])[0] {
	case '"':
		names := make([]string, 0, len(raw))
		for _, r := range raw {
			var name string
			if err := json.Unmarshal(r, &name); err != nil {
				return ErrMixedFlavors
			}
			names = append(names, name)
		}
		*f = SimpleFlavors(names...)
	case '{':
		sections := make([]FlavorSection, 0, len(raw))
		for _, r := range raw {
			if t := bytes.TrimSpace(r); len(t) == 0 || t[0] != '{' {
				return ErrMixedFlavors
			}
			var s FlavorSection
			if err := json.Unmarshal(r, &s); err != nil {
				return fmt.Errorf("flavor section: %w", err)
			}
			sections = append(sections, s)
		}
		*f = SectionedFlavors(sections...)
	default:
		return ErrMixedFlavors
	}
	return nil
}

func (f Flavors) MarshalJSON() ([]byte, error) {
	if f.Sectioned {
		if f.Sections == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(f.Sections)
	}
	names := f.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// MenuItem is a sellable item. Price is the base price before options.
type MenuItem struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Category   string          `json:"category"`
	Type       string          `json:"type"`
	Emoji      string          `json:"emoji"`
	Flavors    Flavors         `json:"flavors"`
	MaxFlavors int             `json:"max_flavors"`
	Available  bool            `json:"is_available"`
}

// GlobalAddonSection applies to every item whose type is listed in
// AllowedTypes; an empty list means all types.
type GlobalAddonSection struct {
	FlavorSection
	AllowedTypes []string `json:"allowed_types,omitempty"`
}

func (g GlobalAddonSection) AppliesTo(itemType string) bool {
	if len(g.AllowedTypes) == 0 {
		return true
	}
	for _, t := range g.AllowedTypes {
		if t == itemType {
			return true
		}
	}
	return false
}

// ApplicableAddons returns the global sections that take part in pricing and
// selection for the given item. Only drinks pick up global add-ons.
func ApplicableAddons(item MenuItem, addons []GlobalAddonSection) []FlavorSection {
	if item.Type != enum.ItemTypeDrink {
		return nil
	}
	var out []FlavorSection
	for _, a := range addons {
		if a.AppliesTo(item.Type) {
			out = append(out, a.FlavorSection)
		}
	}
	return out
}

// Match is where a selected option name was found.
type Match struct {
	Section FlavorSection
	Option  FlavorOption
	Global  bool
}

// Resolve finds a selected option: first in the item's own sections, then in
// the applicable global add-ons. First match wins.
func Resolve(item MenuItem, addons []GlobalAddonSection, name string) (Match, bool) {
	for _, s := range item.Flavors.Sections {
		if o, ok := s.Option(name); ok {
			return Match{Section: s, Option: o}, true
		}
	}
	for _, s := range ApplicableAddons(item, addons) {
		if o, ok := s.Option(name); ok {
			return Match{Section: s, Option: o, Global: true}, true
		}
	}
	return Match{}, false
}

// DecodeAddons parses the stored global_addons setting. A missing or empty
// value yields no sections.
func DecodeAddons(data []byte) ([]GlobalAddonSection, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var out []GlobalAddonSection
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode global addons: %w", err)
	}
	return out, nil
}

var ErrMixedFlavors = errors.New("flavors must be all strings or all sections")
