// Package browser defines the automation capability the crawl consumes and
// its two drivers: a Playwright-backed Chromium and a static goquery driver.
package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrNotClickable is returned when a click targets a disabled element.
var ErrNotClickable = stderrors.New("element is not clickable")

// WaitPolicy selects the navigation lifecycle event a navigation waits for
type WaitPolicy int

const (
	WaitLoad WaitPolicy = iota
	WaitDOMContentLoaded
	WaitNetworkIdle
	WaitCommit
)

func (p WaitPolicy) String() string {
	switch p {
	case WaitLoad:
		return "load"
	case WaitDOMContentLoaded:
		return "domcontentloaded"
	case WaitNetworkIdle:
		return "networkidle"
	case WaitCommit:
		return "commit"
	default:
		return fmt.Sprintf("WaitPolicy(%d)", int(p))
	}
}

// Query describes one element lookup. HasText narrows the CSS matches to
// elements whose text contains the given string, case-insensitively.
type Query struct {
	CSS     string `mapstructure:"css"`
	HasText string `mapstructure:"has_text"`
}

func (q Query) String() string {
	if q.HasText == "" {
		return q.CSS
	}
	return fmt.Sprintf("%s:has-text(%q)", q.CSS, q.HasText)
}

// Handle points at an element of the document that was current when the
// handle was taken. It goes stale once the browser navigates away.
type Handle interface {
	Generation() uint64
}

// Browser is the automation capability used by the crawl, the cart and the
// session setup. A nil scope means the whole document.
type Browser interface {
	Navigate(ctx context.Context, url string, policy WaitPolicy, timeout time.Duration) error
	Locate(ctx context.Context, scope Handle, q Query) (Handle, bool)
	LocateAll(ctx context.Context, scope Handle, q Query) []Handle
	IsVisible(ctx context.Context, h Handle, timeout time.Duration) bool
	TextContent(ctx context.Context, h Handle) (string, error)
	Attribute(ctx context.Context, h Handle, name string) (string, error)
	Click(ctx context.Context, h Handle) error
	Fill(ctx context.Context, h Handle, value string) error
	Press(ctx context.Context, h Handle, key string) error
	CurrentURL() string
	GoBack(ctx context.Context) error
	// Generation increases on every navigation.
	Generation() uint64
	Close() error
}

// IsStale reports whether h was taken before b's latest navigation.
func IsStale(b Browser, h Handle) bool {
	return h == nil || h.Generation() != b.Generation()
}
