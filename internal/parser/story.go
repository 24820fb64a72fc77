package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"storyvault/internal/archive"
)

// StoryDetail is a parsed story page: metadata plus the chapter stubs visible
// on that page (the first page of the chapter list).
type StoryDetail struct {
	Story    archive.Story
	Chapters []archive.ChapterStub
}

// ParseStoryDetail extracts story metadata and first-page chapter stubs from a
// story detail page.
func (p *Parser) ParseStoryDetail(markup, pageURL string) (StoryDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return StoryDetail{}, fmt.Errorf("parse story markup: %w", err)
	}

	story := archive.Story{
		Slug:      ExtractSlug(pageURL),
		SourceURL: pageURL,
		Status:    archive.StoryOngoing,
	}

	if title := doc.Find("h3.title, .title").First(); title.Length() > 0 {
		story.Title = strings.TrimSpace(title.Text())
	}
	if cover := doc.Find(".book img, .info-holder img").First(); cover.Length() > 0 {
		if src, ok := cover.Attr("src"); ok {
			story.CoverURL = p.resolveURL(src)
		}
	}

	info := doc.Find(".info, .info-holder").First()
	if info.Length() > 0 {
		if author := info.Find(`a[itemprop="author"], .author a`).First(); author.Length() > 0 {
			story.Author = strings.TrimSpace(author.Text())
		}
		info.Find(`a[itemprop="genre"], .genre a`).Each(func(_ int, g *goquery.Selection) {
			if name := strings.TrimSpace(g.Text()); name != "" {
				story.Genres = append(story.Genres, name)
			}
		})
		if status := info.Find(".text-success, .text-primary").First(); status.Length() > 0 {
			text := strings.ToLower(strings.TrimSpace(status.Text()))
			if strings.Contains(text, "hoàn") || strings.Contains(text, "full") {
				story.Status = archive.StoryCompleted
			}
		}
	}

	if desc := doc.Find(`.desc-text, .desc, div[itemprop="description"]`).First(); desc.Length() > 0 {
		story.Description = strings.TrimSpace(desc.Text())
	}

	chapters := p.chapterStubs(doc)
	story.TotalChapters = len(chapters)

	return StoryDetail{Story: story, Chapters: chapters}, nil
}
