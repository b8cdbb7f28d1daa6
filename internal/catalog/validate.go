package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kopibar/pos/internal/enum"
)

// Validation errors. All of them are caller mistakes (400 on the server,
// rejected selection on the client).
var (
	ErrNameRequired       = errors.New("name is required")
	ErrNegativePrice      = errors.New("price must be >= 0")
	ErrInvalidItemType    = errors.New("type must be food or drink")
	ErrSectionName        = errors.New("flavor section name is required")
	ErrSectionMax         = errors.New("flavor section max must be >= 1")
	ErrOptionName         = errors.New("flavor option name is required")
	ErrNegativeMaxFlavors = errors.New("max_flavors must be >= 0")
	ErrUnknownOption      = errors.New("unknown option")
	ErrTooManySelections  = errors.New("too many selections")
)

func IsValidItemType(t string) bool {
	return t == enum.ItemTypeFood || t == enum.ItemTypeDrink
}

// ValidateFlavors checks the section invariants. Flat lists only need
// non-empty option names.
func ValidateFlavors(f Flavors) error {
	for i, s := range f.Sections {
		if f.Sectioned {
			if strings.TrimSpace(s.Name) == "" {
				return fmt.Errorf("flavors[%d]: %w", i, ErrSectionName)
			}
			if s.Max < 1 {
				return fmt.Errorf("flavors[%d]: %w", i, ErrSectionMax)
			}
		}
		for j, o := range s.Options {
			if strings.TrimSpace(o.Name) == "" {
				return fmt.Errorf("flavors[%d].options[%d]: %w", i, j, ErrOptionName)
			}
			if o.Price.IsNegative() {
				return fmt.Errorf("flavors[%d].options[%d]: %w", i, j, ErrNegativePrice)
			}
		}
	}
	return nil
}

// ValidateMenuItem checks a menu item before it is persisted.
func ValidateMenuItem(item MenuItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return ErrNameRequired
	}
	if item.Price.IsNegative() {
		return ErrNegativePrice
	}
	if !IsValidItemType(item.Type) {
		return ErrInvalidItemType
	}
	if item.MaxFlavors < 0 {
		return ErrNegativeMaxFlavors
	}
	return ValidateFlavors(item.Flavors)
}

// ValidateAddons checks the global add-on catalog before it is saved.
func ValidateAddons(addons []GlobalAddonSection) error {
	for i, a := range addons {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("addons[%d]: %w", i, ErrSectionName)
		}
		if a.Max < 1 {
			return fmt.Errorf("addons[%d]: %w", i, ErrSectionMax)
		}
		for _, t := range a.AllowedTypes {
			if !IsValidItemType(t) {
				return fmt.Errorf("addons[%d]: allowed_types: %w", i, ErrInvalidItemType)
			}
		}
		for j, o := range a.Options {
			if strings.TrimSpace(o.Name) == "" {
				return fmt.Errorf("addons[%d].options[%d]: %w", i, j, ErrOptionName)
			}
			if o.Price.IsNegative() {
				return fmt.Errorf("addons[%d].options[%d]: %w", i, j, ErrNegativePrice)
			}
		}
	}
	return nil
}

// ValidateSelection enforces selection limits at compose time: per-section
// max for sectioned items and global add-ons, max_flavors for flat lists
// (0 means unlimited). Every name must resolve. Pricing never re-checks these.
func ValidateSelection(item MenuItem, addons []GlobalAddonSection, selected []string) error {
	for _, name := range selected {
		if _, ok := Resolve(item, addons, name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOption, name)
		}
	}
	return CheckLimits(item, addons, selected)
}

// CheckLimits applies the same limits as ValidateSelection but skips names
// that do not resolve, which price at zero.
func CheckLimits(item MenuItem, addons []GlobalAddonSection, selected []string) error {
	counts := make(map[string]int)
	flat := 0

	for _, name := range selected {
		m, ok := Resolve(item, addons, name)
		if !ok {
			continue
		}
		if !m.Global && !item.Flavors.Sectioned {
			flat++
			continue
		}
		key := m.Section.Name
		if m.Global {
			key = "global:" + key
		}
		counts[key]++
		if counts[key] > m.Section.Max {
			return fmt.Errorf("%w: %s allows %d", ErrTooManySelections, m.Section.Name, m.Section.Max)
		}
	}

	if item.MaxFlavors > 0 && flat > item.MaxFlavors {
		return fmt.Errorf("%w: %s allows %d", ErrTooManySelections, item.Name, item.MaxFlavors)
	}
	return nil
}
