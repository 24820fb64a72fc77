package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"storyvault/internal/archive"
)

// ParsePagination extracts paging metadata from a listing or chapter-list
// page. Total-page detection tries three independent signals in priority
// order: an explicit last-page control, the maximum page number in any
// pagination href, and the maximum bare-digit control text. The first signal
// above 1 wins; disagreement between signals is logged, not resolved.
func (p *Parser) ParsePagination(markup string) (archive.Pagination, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return archive.Pagination{}, fmt.Errorf("parse pagination markup: %w", err)
	}

	pg := archive.Pagination{CurrentPage: 1, TotalPages: 1}

	pager := doc.Find(".pagination, ul.pagination").First()
	if pager.Length() == 0 {
		return pg, nil
	}

	if active := pager.Find(".active, li.active").First(); active.Length() > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(active.Text())); err == nil {
			pg.CurrentPage = n
		}
	}

	lastControl := p.lastPageControl(pager)
	maxHref := maxHrefPageNumber(pager)
	maxDigit := maxBareDigitControl(pager)

	for _, signal := range []int{lastControl, maxHref, maxDigit} {
		if signal > 1 {
			pg.TotalPages = signal
			break
		}
	}
	if disagree(lastControl, maxHref, maxDigit) {
		p.logger.Warn("pagination signals disagree",
			zap.Int("last_control", lastControl),
			zap.Int("max_href", maxHref),
			zap.Int("max_digit", maxDigit),
			zap.Int("chosen", pg.TotalPages),
		)
	}

	if next := pager.Find(`a[rel="next"], li.next a`).First(); next.Length() > 0 {
		if href, ok := next.Attr("href"); ok {
			pg.NextURL = p.resolveURL(href)
		}
	}
	if prev := pager.Find(`a[rel="prev"], li.prev a`).First(); prev.Length() > 0 {
		if href, ok := prev.Attr("href"); ok {
			pg.PrevURL = p.resolveURL(href)
		}
	}

	return pg, nil
}

// lastPageControl reads the page number out of an explicit "last page" link.
func (p *Parser) lastPageControl(pager *goquery.Selection) int {
	last := pager.Find(`a[rel="last"], li.last a, a.last`).First()
	if last.Length() == 0 {
		return 0
	}
	href, _ := last.Attr("href")
	if m := pageNumberRe.FindStringSubmatch(href); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(last.Text())); err == nil {
		return n
	}
	return 0
}

func maxHrefPageNumber(pager *goquery.Selection) int {
	best := 0
	pager.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if m := pageNumberRe.FindStringSubmatch(href); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > best {
				best = n
			}
		}
	})
	return best
}

func maxBareDigitControl(pager *goquery.Selection) int {
	best := 0
	pager.Find("a, span").Each(func(_ int, control *goquery.Selection) {
		text := strings.TrimSpace(control.Text())
		if !isBareDigits(text) {
			return
		}
		if n, err := strconv.Atoi(text); err == nil && n > best {
			best = n
		}
	})
	return best
}

func disagree(signals ...int) bool {
	seen := 0
	for _, s := range signals {
		if s <= 1 {
			continue
		}
		if seen != 0 && s != seen {
			return true
		}
		seen = s
	}
	return false
}
