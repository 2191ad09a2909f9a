package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"sjsage522/menuscout/helpers"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultHistorySize = 32

// Action is an interaction the static driver could not turn into a
// navigation, such as clicking a script-driven button.
type Action struct {
	Kind  string
	URL   string
	Text  string
	Value string
}

// StaticOptions configures a StaticBrowser
type StaticOptions struct {
	Fetcher     Fetcher
	Guard       *Guard
	HistorySize int
	Logger      *logger.Logger
}

// StaticBrowser implements Browser over fetched HTML documents. Documents
// never change after loading, so a visibility check is decided at once and
// a click only navigates when the element carries a link.
type StaticBrowser struct {
	fetcher Fetcher
	guard   *Guard
	pages   *lru.Cache[string, *goquery.Document]
	log     *logger.Logger

	doc     *goquery.Document
	url     string
	history []string
	gen     uint64
	actions []Action
}

type staticHandle struct {
	sel *goquery.Selection
	gen uint64
}

func (h *staticHandle) Generation() uint64 { return h.gen }

// NewStatic creates a static driver
func NewStatic(opts StaticOptions) (*StaticBrowser, error) {
	if opts.Fetcher == nil {
		return nil, errors.NewConfiguration("static browser needs a fetcher", nil)
	}
	size := opts.HistorySize
	if size <= 0 {
		size = defaultHistorySize
	}
	pages, err := lru.New[string, *goquery.Document](size)
	if err != nil {
		return nil, errors.NewConfiguration("page cache", err)
	}
	log := opts.Logger
	if log == nil {
		log = logger.ForBrowser("static")
	}

	return &StaticBrowser{
		fetcher: opts.Fetcher,
		guard:   opts.Guard,
		pages:   pages,
		log:     log,
	}, nil
}

// Navigate loads rawURL, resolved against the current page.
func (b *StaticBrowser) Navigate(ctx context.Context, rawURL string, policy WaitPolicy, timeout time.Duration) error {
	target, err := b.resolve(rawURL)
	if err != nil {
		return errors.NewNavigation(rawURL, "invalid url", err)
	}

	doc, err := b.load(ctx, target, timeout)
	if err != nil {
		return err
	}

	if b.url != "" {
		b.history = append(b.history, b.url)
	}
	b.doc, b.url = doc, target
	b.gen++

	b.log.Debug().Str("url", target).Str("wait", policy.String()).Msg("Navigated")
	return nil
}

func (b *StaticBrowser) load(ctx context.Context, target string, timeout time.Duration) (*goquery.Document, error) {
	if err := b.guard.Before(ctx, target); err != nil {
		return nil, errors.NewNavigation(target, "navigation not allowed", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := b.fetcher.Fetch(ctx, target)
	if err != nil {
		if stderrors.Is(err, helpers.ErrRateLimited) {
			b.guard.Block(target)
		}
		return nil, errors.NewNavigation(target, "fetch failed", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.NewNavigation(target, "html parse failed", err)
	}
	b.pages.Add(target, doc)
	return doc, nil
}

func (b *StaticBrowser) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if b.url == "" || ref.IsAbs() {
		if !ref.IsAbs() {
			return "", fmt.Errorf("relative url %q without a current page", rawURL)
		}
		return ref.String(), nil
	}
	base, err := url.Parse(b.url)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (b *StaticBrowser) handle(h Handle) (*staticHandle, error) {
	sh, ok := h.(*staticHandle)
	if !ok || sh == nil {
		return nil, fmt.Errorf("handle %T does not belong to the static driver", h)
	}
	if sh.gen != b.gen {
		return nil, errors.NewStaleReference("element belongs to a previous document")
	}
	return sh, nil
}

func (b *StaticBrowser) find(scope Handle, q Query) *goquery.Selection {
	if b.doc == nil {
		return nil
	}
	root := b.doc.Selection
	if scope != nil {
		sh, err := b.handle(scope)
		if err != nil {
			return nil
		}
		root = sh.sel
	}

	matches := root.Find(q.CSS)
	if q.HasText != "" {
		needle := strings.ToLower(q.HasText)
		matches = matches.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(strings.ToLower(helpers.CollapseSpace(s.Text())), needle)
		})
	}
	return matches
}

// Locate returns the first element matching q
func (b *StaticBrowser) Locate(ctx context.Context, scope Handle, q Query) (Handle, bool) {
	matches := b.find(scope, q)
	if matches == nil || matches.Length() == 0 {
		return nil, false
	}
	return &staticHandle{sel: matches.First(), gen: b.gen}, true
}

// LocateAll returns every element matching q in document order
func (b *StaticBrowser) LocateAll(ctx context.Context, scope Handle, q Query) []Handle {
	matches := b.find(scope, q)
	if matches == nil {
		return nil
	}
	handles := make([]Handle, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		handles = append(handles, &staticHandle{sel: s, gen: b.gen})
	})
	return handles
}

// IsVisible reports whether neither the element nor an ancestor is hidden.
func (b *StaticBrowser) IsVisible(ctx context.Context, h Handle, timeout time.Duration) bool {
	sh, err := b.handle(h)
	if err != nil {
		return false
	}
	return visible(sh.sel)
}

func visible(sel *goquery.Selection) bool {
	for s := sel; s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false
		}
		if s.AttrOr("aria-hidden", "") == "true" {
			return false
		}
		if goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "hidden") {
			return false
		}
		style := strings.ToLower(strings.ReplaceAll(s.AttrOr("style", ""), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// TextContent returns the element's text including descendants
func (b *StaticBrowser) TextContent(ctx context.Context, h Handle) (string, error) {
	sh, err := b.handle(h)
	if err != nil {
		return "", err
	}
	return sh.sel.Text(), nil
}

// Attribute returns the named attribute, or "" when absent
func (b *StaticBrowser) Attribute(ctx context.Context, h Handle, name string) (string, error) {
	sh, err := b.handle(h)
	if err != nil {
		return "", err
	}
	return sh.sel.AttrOr(name, ""), nil
}

// Click follows the element's link, submits its form, or records the click.
func (b *StaticBrowser) Click(ctx context.Context, h Handle) error {
	sh, err := b.handle(h)
	if err != nil {
		return err
	}
	sel := sh.sel
	if _, disabled := sel.Attr("disabled"); disabled || sel.AttrOr("aria-disabled", "") == "true" {
		return fmt.Errorf("click %q: %w", helpers.Truncate(helpers.CollapseSpace(sel.Text()), 40), ErrNotClickable)
	}

	if href := linkOf(sel); href != "" {
		return b.Navigate(ctx, href, WaitLoad, 0)
	}

	node := goquery.NodeName(sel)
	kind := strings.ToLower(sel.AttrOr("type", "submit"))
	if (node == "button" && kind == "submit") || (node == "input" && kind == "submit") {
		if form := sel.Closest("form"); form.Length() > 0 {
			return b.submit(ctx, form)
		}
	}

	b.record("click", sel, "")
	return nil
}

// linkOf returns the navigation target of a clickable element, looking at
// the element itself first and then at its first descendant link.
func linkOf(sel *goquery.Selection) string {
	candidates := []string{sel.AttrOr("data-href", "")}
	if goquery.NodeName(sel) == "a" {
		candidates = append(candidates, sel.AttrOr("href", ""))
	} else {
		candidates = append(candidates, sel.Find("a[href]").First().AttrOr("href", ""))
	}
	for _, href := range candidates {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		return href
	}
	return ""
}

// Fill sets the value of an input element
func (b *StaticBrowser) Fill(ctx context.Context, h Handle, value string) error {
	sh, err := b.handle(h)
	if err != nil {
		return err
	}
	switch goquery.NodeName(sh.sel) {
	case "input", "textarea":
	default:
		return fmt.Errorf("fill %s: %w", goquery.NodeName(sh.sel), ErrNotClickable)
	}
	sh.sel.SetAttr("value", value)
	b.record("fill", sh.sel, value)
	return nil
}

// Press handles Enter by submitting the element's form; other keys are recorded.
func (b *StaticBrowser) Press(ctx context.Context, h Handle, key string) error {
	sh, err := b.handle(h)
	if err != nil {
		return err
	}
	if key == "Enter" {
		if form := sh.sel.Closest("form"); form.Length() > 0 {
			return b.submit(ctx, form)
		}
	}
	b.record("press", sh.sel, key)
	return nil
}

func (b *StaticBrowser) submit(ctx context.Context, form *goquery.Selection) error {
	method := strings.ToUpper(form.AttrOr("method", "GET"))
	if method != "GET" {
		b.record("submit", form, method)
		return nil
	}

	values := url.Values{}
	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, s *goquery.Selection) {
		values.Add(s.AttrOr("name", ""), s.AttrOr("value", ""))
	})

	action, err := b.resolve(form.AttrOr("action", b.url))
	if err != nil {
		return errors.NewNavigation(b.url, "invalid form action", err)
	}
	target, err := url.Parse(action)
	if err != nil {
		return errors.NewNavigation(action, "invalid form action", err)
	}
	target.RawQuery = values.Encode()
	return b.Navigate(ctx, target.String(), WaitLoad, 0)
}

func (b *StaticBrowser) record(kind string, sel *goquery.Selection, value string) {
	a := Action{
		Kind:  kind,
		URL:   b.url,
		Text:  helpers.CollapseSpace(sel.Text()),
		Value: value,
	}
	b.actions = append(b.actions, a)
	b.log.Debug().Str("kind", a.Kind).Str("text", helpers.Truncate(a.Text, 60)).Msg("Recorded action")
}

// Actions returns the interactions recorded so far
func (b *StaticBrowser) Actions() []Action {
	return append([]Action(nil), b.actions...)
}

// CurrentURL returns the URL of the current document
func (b *StaticBrowser) CurrentURL() string {
	return b.url
}

// GoBack returns to the previous document, from the page cache when possible.
func (b *StaticBrowser) GoBack(ctx context.Context) error {
	if len(b.history) == 0 {
		return errors.NewNavigation(b.url, "no previous page", nil)
	}
	prev := b.history[len(b.history)-1]

	doc, ok := b.pages.Get(prev)
	if !ok {
		var err error
		if doc, err = b.load(ctx, prev, 0); err != nil {
			return err
		}
	}

	b.history = b.history[:len(b.history)-1]
	b.doc, b.url = doc, prev
	b.gen++
	return nil
}

// Generation implements Browser
func (b *StaticBrowser) Generation() uint64 {
	return b.gen
}

// Close drops cached documents
func (b *StaticBrowser) Close() error {
	b.pages.Purge()
	b.doc = nil
	b.history = nil
	return nil
}
