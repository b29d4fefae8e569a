// Package platform classifies the commerce/CMS platform behind a page from
// its markup, response headers and cookies.
package platform

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"inclusiv/internal/domain"
)

// Page is what the detector inspects. Any field may be empty.
type Page struct {
	HTML    string
	Headers http.Header
	Cookies []string // cookie names set on the page
}

type MarkerKind int

const (
	// Cookie matches a cookie name by prefix.
	Cookie MarkerKind = iota
	// Header matches a response header by name; Value, when set, must be a
	// case-insensitive substring of one of its values.
	Header
	// Generator matches <meta name="generator"> content by substring.
	Generator
	// ScriptSrc matches any <script src> by substring.
	ScriptSrc
	// LinkHref matches any <link href> by substring.
	LinkHref
	// Selector matches when the CSS selector in Name finds an element.
	Selector
	// Markup matches a case-insensitive substring of the raw HTML.
	Markup
)

type Marker struct {
	Kind  MarkerKind
	Name  string
	Value string
}

// Signature is the ordered marker list for one platform.
type Signature struct {
	Platform domain.Platform
	Markers  []Marker
}

// Detector evaluates signatures in order and returns the first platform with
// a matching marker.
type Detector struct {
	signatures []Signature
}

func NewDetector(signatures []Signature) *Detector {
	cp := make([]Signature, len(signatures))
	copy(cp, signatures)
	return &Detector{signatures: cp}
}

func (d *Detector) Detect(p Page) domain.Platform {
	in := newInspection(p)
	for _, sig := range d.signatures {
		for _, m := range sig.Markers {
			if in.matches(m) {
				return sig.Platform
			}
		}
	}
	return domain.PlatformUnknown
}

// inspection caches the parsed views of a page across marker checks.
type inspection struct {
	page    Page
	lower   string
	doc     *goquery.Document
	cookies []string
}

func newInspection(p Page) *inspection {
	in := &inspection{page: p, lower: strings.ToLower(p.HTML)}
	if strings.TrimSpace(p.HTML) != "" {
		// x/net/html recovers from malformed markup; a nil doc just disables
		// the markup-structure markers.
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML)); err == nil {
			in.doc = doc
		}
	}
	in.cookies = append(in.cookies, p.Cookies...)
	if p.Headers != nil {
		for _, c := range (&http.Response{Header: p.Headers}).Cookies() {
			in.cookies = append(in.cookies, c.Name)
		}
	}
	return in
}

func (in *inspection) matches(m Marker) bool {
	switch m.Kind {
	case Cookie:
		for _, name := range in.cookies {
			if strings.HasPrefix(strings.ToLower(name), strings.ToLower(m.Name)) {
				return true
			}
		}
	case Header:
		if in.page.Headers == nil {
			return false
		}
		values := in.page.Headers.Values(m.Name)
		if len(values) == 0 {
			return false
		}
		if m.Value == "" {
			return true
		}
		for _, v := range values {
			if containsFold(v, m.Value) {
				return true
			}
		}
	case Generator:
		return in.generatorContains(m.Value)
	case ScriptSrc:
		return in.attrContains("script[src]", "src", m.Value)
	case LinkHref:
		return in.attrContains("link[href]", "href", m.Value)
	case Selector:
		return in.doc != nil && in.doc.Find(m.Name).Length() > 0
	case Markup:
		return m.Value != "" && strings.Contains(in.lower, strings.ToLower(m.Value))
	}
	return false
}

func (in *inspection) attrContains(selector, attr, needle string) bool {
	if in.doc == nil || needle == "" {
		return false
	}
	found := false
	in.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr(attr); ok && containsFold(v, needle) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (in *inspection) generatorContains(needle string) bool {
	if in.doc == nil || needle == "" {
		return false
	}
	found := false
	in.doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		if strings.EqualFold(name, "generator") && containsFold(content, needle) {
			found = true
			return false
		}
		return true
	})
	return found
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
