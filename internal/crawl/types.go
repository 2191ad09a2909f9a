package crawl

import (
	"fmt"

	"sjsage522/menuscout/internal/browser"
)

// State is a crawl controller state
type State int

const (
	StateListing State = iota
	StateVisitingVendor
	StateExtractingItems
	StateReturning
	StateRecovering
	StateDone
)

func (s State) String() string {
	switch s {
	case StateListing:
		return "listing"
	case StateVisitingVendor:
		return "visiting_vendor"
	case StateExtractingItems:
		return "extracting_items"
	case StateReturning:
		return "returning"
	case StateRecovering:
		return "recovering"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// VendorRef is what the cart needs to find a vendor again: the 1-based
// listing rank, the deep-link when the card exposed one, and the card
// itself while the listing document is still current.
type VendorRef struct {
	Rank   int
	Link   string
	Handle browser.Handle
}

// MenuItem is one accepted catalog entry
type MenuItem struct {
	Name       string
	Price      float64
	VendorName string
	VendorRank int
	SearchTerm string
	Vendor     VendorRef
}

// VendorEntry is a listing card picked for a visit
type VendorEntry struct {
	Rank      int
	Reference browser.Handle
	Link      string
}

// VendorFailure records a visit that ended in recovery
type VendorFailure struct {
	Rank  int
	State State
	Err   error
}

// Session is the outcome of one crawl. It is not safe for concurrent use.
type Session struct {
	SearchTerm string
	MaxVendors int
	Visited    int
	Failures   []VendorFailure

	items []MenuItem
}

// NewSession creates an empty session
func NewSession(term string, maxVendors int) *Session {
	return &Session{SearchTerm: term, MaxVendors: maxVendors}
}

// Add appends items in discovery order
func (s *Session) Add(items ...MenuItem) {
	s.items = append(s.items, items...)
}

// Items returns a copy of the accepted items in discovery order
func (s *Session) Items() []MenuItem {
	return append([]MenuItem(nil), s.items...)
}

// Len returns the number of accepted items
func (s *Session) Len() int {
	return len(s.items)
}
