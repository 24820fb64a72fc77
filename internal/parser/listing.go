package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"storyvault/internal/archive"
)

// ParseListing extracts story stubs from a listing page. Entries without a
// resolvable title and URL are skipped.
func (p *Parser) ParseListing(markup string) ([]archive.StoryStub, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing markup: %w", err)
	}

	var stubs []archive.StoryStub
	doc.Find(".list-truyen .row, .list-truyen-item").Each(func(_ int, item *goquery.Selection) {
		title := item.Find("h3.truyen-title a, .truyen-title a").First()
		if title.Length() == 0 {
			return
		}
		name := strings.TrimSpace(title.Text())
		href, _ := title.Attr("href")
		sourceURL := p.resolveURL(href)
		if name == "" || sourceURL == "" {
			return
		}

		stub := archive.StoryStub{
			Title:     name,
			Slug:      ExtractSlug(sourceURL),
			SourceURL: sourceURL,
		}
		if author := item.Find(".author, span.author").First(); author.Length() > 0 {
			stub.Author = strings.TrimSpace(author.Text())
		}
		if latest := item.Find(".text-info a, .chapter-text").First(); latest.Length() > 0 {
			stub.LatestChapter = strings.TrimSpace(latest.Text())
		}
		stubs = append(stubs, stub)
	})
	return stubs, nil
}
