// Package render turns search results into Markdown for the HTTP API and
// the MCP tool.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/use-agent/tgsearch/models"
)

// NoMatchesText is shown when a search returns nothing.
const NoMatchesText = "No Telegram channels or groups matched. Try different keywords."

// Renderer converts result sets to Markdown. It is safe for concurrent use.
type Renderer struct {
	conv *converter.Converter
}

// New returns a Renderer. The converter escapes Markdown syntax found in
// titles, so scraped text cannot inject formatting.
func New() *Renderer {
	return &Renderer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Results renders records as a numbered Markdown list under a heading
// naming the query. page is only shown when greater than 1.
func (r *Renderer) Results(query string, page int, records []models.ResultRecord) (string, error) {
	var b strings.Builder

	heading := fmt.Sprintf("Telegram results for “%s”", query)
	if page > 1 {
		heading += fmt.Sprintf(" (page %d)", page)
	}
	b.WriteString("<h2>" + html.EscapeString(heading) + "</h2>")

	if len(records) == 0 {
		b.WriteString("<p>" + html.EscapeString(NoMatchesText) + "</p>")
	} else {
		b.WriteString("<ol>")
		for _, rec := range records {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`,
				html.EscapeString(rec.Link), html.EscapeString(rec.Title))
		}
		b.WriteString("</ol>")
	}

	md, err := r.conv.ConvertString(b.String())
	if err != nil {
		return "", fmt.Errorf("render: markdown conversion: %w", err)
	}
	return strings.TrimSpace(md), nil
}
