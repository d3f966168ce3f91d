package scraper

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/tgsearch/models"
)

// BuildURL returns the search page URL for query and a 1-based page number.
//
// The site's search widget only renders results when all four parameters are
// present: q, the fixed tab selector, the widget's own copy of the query and
// the zero-based widget page.
func BuildURL(base, query string, page int) string {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("gsc.tab", "0")
	params.Set("gsc.q", query)
	params.Set("gsc.page", strconv.Itoa(page-1))

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}

// CompileSelector compiles a result selector into a goquery matcher.
func CompileSelector(selector string) (cascadia.Selector, error) {
	return cascadia.Compile(selector)
}

// ParseResults extracts result records from rendered markup.
//
// Anchors matched by sel are read in document order. An anchor without visible
// text or without an href is skipped, as is any anchor whose href was already
// emitted. At most max records are returned; the slice is never nil.
func ParseResults(markup string, sel cascadia.Selector, max int) ([]models.ResultRecord, error) {
	if max <= 0 {
		return []models.ResultRecord{}, nil
	}
	records := make([]models.ResultRecord, 0, max)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "failed to parse search page", err)
	}

	anchors := doc.FindMatcher(sel)
	seen := make(map[string]struct{}, anchors.Length())

	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		title := strings.TrimSpace(a.Text())
		link, _ := a.Attr("href")
		link = strings.TrimSpace(link)
		if title == "" || link == "" {
			return true
		}
		if _, dup := seen[link]; dup {
			slog.Debug("skipping duplicate result", "link", link)
			return true
		}
		seen[link] = struct{}{}
		records = append(records, models.ResultRecord{Title: title, Link: link})
		return len(records) < max
	})

	slog.Debug("parsed search page",
		"anchors", anchors.Length(),
		"results", len(records),
	)
	return records, nil
}
