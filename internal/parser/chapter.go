package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"storyvault/internal/archive"
)

// Text blocks at or below this rune count are treated as layout noise rather
// than prose.
const minBlockLength = 10

// ParseChapterList extracts chapter stubs from a chapter-list page. Pagination
// controls whose anchors look like chapter links (bare-digit text, hrefs
// without the chapter path marker) are filtered out before numbering, or page
// numbers would corrupt the chapter numbering.
func (p *Parser) ParseChapterList(markup string) ([]archive.ChapterStub, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse chapter list markup: %w", err)
	}
	return p.chapterStubs(doc), nil
}

func (p *Parser) chapterStubs(doc *goquery.Document) []archive.ChapterStub {
	var stubs []archive.ChapterStub
	seq := 0
	doc.Find(".list-chapter a, #list-chapter a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if href == "" || title == "" {
			return
		}
		if isPaginationArtifact(title, href) {
			return
		}
		seq++
		number := ExtractChapterNumber(title, href)
		if number == 0 {
			number = seq
		}
		stubs = append(stubs, archive.ChapterStub{
			Number:    number,
			Title:     title,
			SourceURL: p.resolveURL(href),
		})
	})
	return stubs
}

func isPaginationArtifact(title, href string) bool {
	if !strings.Contains(href, chapterPathMarker) {
		return true
	}
	return isBareDigits(title)
}

func isBareDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseChapterContent extracts the title and body of a single chapter page.
// Advertising, script, and hidden nodes are removed before text extraction;
// surviving block-level text joins with blank lines, and short blocks are
// discarded as noise.
func (p *Parser) ParseChapterContent(markup, pageURL string) (archive.ChapterContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return archive.ChapterContent{}, fmt.Errorf("parse chapter markup: %w", err)
	}

	content := archive.ChapterContent{SourceURL: pageURL}

	if title := doc.Find(".chapter-title, h2 a.chapter-title, .chapter-c h2").First(); title.Length() > 0 {
		content.Title = strings.TrimSpace(title.Text())
		content.Number = ExtractChapterNumber(content.Title, pageURL)
	}

	body := doc.Find("#chapter-c, .chapter-c, .chapter-content").First()
	if body.Length() > 0 {
		body.Find(`.ads, script, .hidden, [style*="display:none"]`).Remove()

		var blocks []string
		body.Find("p, div").Each(func(_ int, block *goquery.Selection) {
			text := strings.TrimSpace(block.Text())
			if utf8.RuneCountInString(text) > minBlockLength {
				blocks = append(blocks, text)
			}
		})
		if len(blocks) > 0 {
			content.Body = strings.Join(blocks, "\n\n")
		} else {
			content.Body = strings.TrimSpace(body.Text())
		}
	}

	if next := doc.Find("#next_chap, a.next_chap, .btn-next").First(); next.Length() > 0 {
		if href, ok := next.Attr("href"); ok {
			content.NextURL = p.resolveURL(href)
		}
	}
	if prev := doc.Find("#prev_chap, a.prev_chap, .btn-prev").First(); prev.Length() > 0 {
		if href, ok := prev.Attr("href"); ok {
			content.PrevURL = p.resolveURL(href)
		}
	}

	return content, nil
}
