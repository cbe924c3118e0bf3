// Package extract converts bill document HTML into normalized plain text.
//
// The upstream document template changed over time, so two layouts are
// recognized. Each layout is a Strategy, and an Extractor tries its
// strategies in order until one applies.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Strategy extracts text from one known document layout. ok is false when
// the document is not in that layout; the document is then left untouched.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document) (text string, ok bool)
}

// NewLayout handles documents with a header marker div. The header, footer
// and unsupported-viewer markers are dropped and the paragraphs kept.
type NewLayout struct{}

// Name implements Strategy.
func (NewLayout) Name() string { return "new_layout" }

// Extract implements Strategy.
func (NewLayout) Extract(doc *goquery.Document) (string, bool) {
	header := doc.Find(`div[title="header"]`).First()
	if header.Length() == 0 {
		return "", false
	}
	header.Remove()
	doc.Find(`div[title="footer"]`).First().Remove()
	doc.Find(`div#unsupported`).First().Remove()
	return joinText(doc.Find("p")), true
}

// OldLayout handles table-framed documents: the container of the first
// table holds the text in divs, and every table in it is layout chrome.
type OldLayout struct{}

// Name implements Strategy.
func (OldLayout) Name() string { return "old_layout" }

// Extract implements Strategy.
func (OldLayout) Extract(doc *goquery.Document) (string, bool) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return "", false
	}
	container := table.Parent()
	if container.Length() == 0 {
		return "", false
	}
	container.Find("table").Remove()
	return joinText(container.Find("div")), true
}

func joinText(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, strings.TrimSpace(s.Text()))
	})
	return strings.Join(parts, " ")
}

// Normalize collapses every whitespace run to a single space and trims the ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Extractor runs a list of strategies.
type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New returns an Extractor trying NewLayout then OldLayout, or the given
// strategies when any are passed.
func New(logger *zap.Logger, strategies ...Strategy) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(strategies) == 0 {
		strategies = []Strategy{NewLayout{}, OldLayout{}}
	}
	return &Extractor{strategies: strategies, logger: logger}
}

// Extract returns the normalized text of html, or "" when the input is
// empty, unparseable, or in no known layout. Input without any markup
// elements is treated as already-extracted text and only normalized, so
// Extract is idempotent on its own output.
func (e *Extractor) Extract(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("bill html unparseable", zap.Error(err))
		return ""
	}
	body := doc.Find("body")
	if body.Children().Length() == 0 {
		return Normalize(body.Text())
	}
	for _, s := range e.strategies {
		if text, ok := s.Extract(doc); ok {
			return Normalize(text)
		}
	}
	e.logger.Debug("bill html in no known layout", zap.Int("bytes", len(html)))
	return ""
}
