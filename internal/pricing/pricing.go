// Package pricing computes line and order totals from menu items, selected
// option names and the global add-on catalog. Everything here is pure.
package pricing

import (
	"github.com/kopibar/pos/internal/catalog"
	"github.com/shopspring/decimal"
)

// Line is one order line to be priced.
type Line struct {
	Item     catalog.MenuItem
	Quantity int
	Selected []string
}

// PricedOption is a selected option with the price it contributed.
type PricedOption struct {
	Name    string
	Price   decimal.Decimal
	Matched bool
}

// LineQuote is the priced form of a Line.
type LineQuote struct {
	Line      Line
	UnitPrice decimal.Decimal // base + options
	Options   []PricedOption
	Total     decimal.Decimal // UnitPrice * Quantity
}

// Quote is the priced form of a whole order.
type Quote struct {
	Lines []LineQuote
	Total decimal.Decimal
}

// UnitPrice returns base price plus the price of every selected option.
// Unmatched names contribute zero so a stale client catalog still prices.
func UnitPrice(item catalog.MenuItem, addons []catalog.GlobalAddonSection, selected []string) (decimal.Decimal, []PricedOption) {
	unit := item.Price
	opts := make([]PricedOption, 0, len(selected))
	for _, name := range selected {
		m, ok := catalog.Resolve(item, addons, name)
		price := decimal.Zero
		if ok {
			price = m.Option.Price
		}
		unit = unit.Add(price)
		opts = append(opts, PricedOption{Name: name, Price: price, Matched: ok})
	}
	return unit, opts
}

// LineTotal prices a single line.
func LineTotal(line Line, addons []catalog.GlobalAddonSection) LineQuote {
	unit, opts := UnitPrice(line.Item, addons, line.Selected)
	return LineQuote{
		Line:      line,
		UnitPrice: unit,
		Options:   opts,
		Total:     unit.Mul(decimal.NewFromInt(int64(line.Quantity))),
	}
}

// OrderTotal prices every line and sums them left to right. No rounding is
// applied; callers round for display or storage.
func OrderTotal(lines []Line, addons []catalog.GlobalAddonSection) Quote {
	q := Quote{Lines: make([]LineQuote, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		lq := LineTotal(l, addons)
		q.Lines = append(q.Lines, lq)
		q.Total = q.Total.Add(lq.Total)
	}
	return q
}
