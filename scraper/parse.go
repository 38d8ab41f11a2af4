package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListingItem is one catalog entry that passed the price filter.
type ListingItem struct {
	URL   string
	Price int
}

// ListingSelectors locate item data inside the listing page.
type ListingSelectors struct {
	Item  string
	Price string
	Link  string
}

// ParseListing extracts items priced within [minPrice, maxPrice] from the
// listing HTML. It returns the kept items and the total number of item
// cells seen. Cells without a parseable price or link are skipped.
func ParseListing(html string, base *url.URL, sel ListingSelectors, minPrice, maxPrice int) ([]ListingItem, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("parse listing html: %w", err)
	}

	cells := doc.Find(sel.Item)
	var items []ListingItem
	cells.Each(func(_ int, cell *goquery.Selection) {
		price, ok := cellPrice(cell, sel.Price)
		if !ok || price < minPrice || price > maxPrice {
			return
		}
		href, ok := cell.Find(sel.Link).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		items = append(items, ListingItem{
			URL:   resolveURL(base, href),
			Price: price,
		})
	})
	return items, cells.Length(), nil
}

// cellPrice reads the amount from the second span of the price element,
// which follows the currency mark, falling back to the element's own text.
func cellPrice(cell *goquery.Selection, priceSel string) (int, bool) {
	el := cell.Find(priceSel).First()
	if el.Length() == 0 {
		return 0, false
	}
	text := el.Text()
	if spans := el.Find("span"); spans.Length() >= 2 {
		text = spans.Eq(1).Text()
	}
	n, err := parseLeadingInt(text)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DetailSelectors locate engagement counters on an item page.
type DetailSelectors struct {
	Like    string
	Comment string
}

// ParseDetail returns the like and comment counts of an item page. A missing
// or non-numeric counter counts as zero.
func ParseDetail(html string, sel DetailSelectors) (likes, comments int, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, 0, fmt.Errorf("parse detail html: %w", err)
	}
	return counter(doc, sel.Like), counter(doc, sel.Comment), nil
}

func counter(doc *goquery.Document, sel string) int {
	el := doc.Find(sel).First()
	if el.Length() == 0 {
		return 0
	}
	n, err := parseLeadingInt(el.Text())
	if err != nil {
		return 0
	}
	return n
}

// ProductIDFromURL applies pattern to link and returns its first group.
func ProductIDFromURL(pattern *regexp.Regexp, link string) (string, error) {
	m := pattern.FindStringSubmatch(link)
	if len(m) < 2 || m[1] == "" {
		return "", fmt.Errorf("no product id in %q", link)
	}
	return m[1], nil
}

// parseLeadingInt drops thousands separators and any prefix before the
// first digit, then parses the digit run that follows.
func parseLeadingInt(s string) (int, error) {
	s = strings.NewReplacer(",", "", "，", "").Replace(s)
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return 0, fmt.Errorf("no digits in %q", s)
	}
	end := start
	for end < len(s) && isDigit(rune(s[end])) {
		end++
	}
	return strconv.Atoi(s[start:end])
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
