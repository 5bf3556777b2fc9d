// Package parser extracts candidate listings from fetched markup using a
// site's declarative selector configuration.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

// Result is the outcome of parsing one document.
type Result struct {
	Listings []scraper.Listing
	// Dropped counts containers discarded for a missing mandatory title.
	Dropped int
}

// Parse applies the site's selectors to the markup and returns all candidate
// listings. It is deterministic and side-effect-free: re-parsing identical
// markup yields identical output. A selector with no match produces an empty
// field; a container selector with zero matches produces an empty slice.
func Parse(markup []byte, site scraper.Site, fetchedAt time.Time) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return Result{}, fmt.Errorf("parse document: %w", err)
	}

	base, err := url.Parse(site.URL)
	if err != nil {
		return Result{}, fmt.Errorf("parse site url: %w", err)
	}

	sel := site.Selectors
	var res Result
	doc.Find(sel.Container).Each(func(_ int, container *goquery.Selection) {
		listing := scraper.Listing{
			SiteID:      site.ID,
			Title:       extractText(container, sel.Title),
			Company:     extractText(container, sel.Company),
			Location:    extractText(container, sel.Location),
			URL:         extractURL(container, sel.URL, base),
			Description: extractText(container, sel.Description),
			Salary:      extractText(container, sel.Salary),
			JobType:     extractText(container, sel.JobType),
			PostedDate:  extractText(container, sel.PostedDate),
			FetchedAt:   fetchedAt,
		}
		if listing.Title == "" {
			res.Dropped++
			return
		}
		res.Listings = append(res.Listings, listing)
	})
	return res, nil
}

// extractText returns the trimmed text of the first match, or "" when the
// locator is empty or matches nothing. Entity decoding happens in the HTML
// tokenizer before the text reaches us.
func extractText(container *goquery.Selection, locator string) string {
	if locator == "" {
		return ""
	}
	match := container.Find(locator).First()
	if match.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(match.Text()), " ")
}

// extractURL resolves the href of the first match against the site base URL.
// A matched element without an href falls back to the first nested anchor.
func extractURL(container *goquery.Selection, locator string, base *url.URL) string {
	if locator == "" {
		return ""
	}
	match := container.Find(locator).First()
	if match.Length() == 0 {
		return ""
	}
	href, ok := match.Attr("href")
	if !ok {
		href, ok = match.Find("a[href]").First().Attr("href")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
