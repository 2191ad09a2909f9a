// Package selection picks the item to order from the crawl's results.
package selection

import (
	"fmt"
	"sort"
	"strings"

	"sjsage522/menuscout/internal/crawl"
	"sjsage522/menuscout/pkg/errors"
)

// Tier is a requested price category
type Tier int

const (
	TierCheap Tier = iota
	TierMedium
	TierExpensive
)

func (t Tier) String() string {
	switch t {
	case TierCheap:
		return "cheap"
	case TierMedium:
		return "medium"
	case TierExpensive:
		return "expensive"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier accepts English and Turkish tier names. Anything else,
// including the empty string, is TierCheap.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "medium", "orta":
		return TierMedium
	case "expensive", "pahalı", "pahali":
		return TierExpensive
	default:
		return TierCheap
	}
}

// Band places an item's price relative to the selected target
type Band int

const (
	// BandTarget marks the target itself
	BandTarget Band = iota
	BandNearCheap
	BandMid
	BandExpensive
)

func (b Band) String() string {
	switch b {
	case BandTarget:
		return "target"
	case BandNearCheap:
		return "near-cheap"
	case BandMid:
		return "mid"
	case BandExpensive:
		return "expensive"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// BandFor classifies price by its ratio to target
func BandFor(price, target float64) Band {
	ratio := price / target
	switch {
	case ratio <= 1.1:
		return BandNearCheap
	case ratio <= 1.5:
		return BandMid
	default:
		return BandExpensive
	}
}

// Result is a selection and, once the cart has run, its commit outcome.
type Result struct {
	// Sorted holds the items by ascending price; Bands is parallel to it.
	Sorted      []crawl.MenuItem
	Bands       []Band
	TargetIndex int
	Target      crawl.MenuItem

	Savings        float64
	SavingsPercent float64

	Requested string
	Tier      Tier

	Committed   bool
	CommitError error
}

// Cheapest returns the lowest priced item
func (r *Result) Cheapest() crawl.MenuItem { return r.Sorted[0] }

// MostExpensive returns the highest priced item
func (r *Result) MostExpensive() crawl.MenuItem { return r.Sorted[len(r.Sorted)-1] }

// Label returns the tier name for the target and the band for other items
func (r *Result) Label(i int) string {
	if i == r.TargetIndex {
		return r.Tier.String()
	}
	return r.Bands[i].String()
}

// Select sorts items by price and picks the target for the requested tier.
// The median is the element at n/2, so for an even count it is the upper
// of the two middle items.
func Select(items []crawl.MenuItem, requested string) (*Result, error) {
	if len(items) == 0 {
		return nil, errors.NewEmptyResult("no matching items to select from")
	}

	sorted := append([]crawl.MenuItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	tier := ParseTier(requested)
	idx := 0
	switch tier {
	case TierMedium:
		idx = len(sorted) / 2
	case TierExpensive:
		idx = len(sorted) - 1
	}
	target := sorted[idx]

	bands := make([]Band, len(sorted))
	for i, it := range sorted {
		if i == idx {
			bands[i] = BandTarget
			continue
		}
		bands[i] = BandFor(it.Price, target.Price)
	}

	top := sorted[len(sorted)-1].Price
	savings := top - target.Price

	return &Result{
		Sorted:         sorted,
		Bands:          bands,
		TargetIndex:    idx,
		Target:         target,
		Savings:        savings,
		SavingsPercent: savings / top * 100,
		Requested:      requested,
		Tier:           tier,
	}, nil
}

// Stats summarizes a set of prices
type Stats struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
}

// Summarize computes Stats over the items' prices
func Summarize(items []crawl.MenuItem) Stats {
	if len(items) == 0 {
		return Stats{}
	}
	s := Stats{Count: len(items), Min: items[0].Price, Max: items[0].Price}
	var total float64
	for _, it := range items {
		s.Min = min(s.Min, it.Price)
		s.Max = max(s.Max, it.Price)
		total += it.Price
	}
	s.Avg = total / float64(len(items))
	return s
}
