package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := New("https://truyenfull.vision", zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestExtractSlug(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://truyenfull.vision/tam-quoc-dien-nghia/", "tam-quoc-dien-nghia"},
		{"https://truyenfull.vision/tam-quoc-dien-nghia", "tam-quoc-dien-nghia"},
		{"https://truyenfull.vision/a/b/linh-vu-thien-ha/", "linh-vu-thien-ha"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ExtractSlug(tc.url))
	}
}

func TestExtractChapterNumberPrefersTitle(t *testing.T) {
	// The URL carries a different number; the in-page label wins.
	require.Equal(t, 123, ExtractChapterNumber("Chương 123: Khởi đầu", "/truyen/chuong-7/"))
	require.Equal(t, 45, ExtractChapterNumber("Chapter 45", ""))
	require.Equal(t, 7, ExtractChapterNumber("Ngoại truyện", "/truyen/chuong-7/"))
	require.Equal(t, 0, ExtractChapterNumber("Ngoại truyện", "/truyen/ngoai-truyen/"))
}

func TestParseListingSkipsEntriesWithoutTitle(t *testing.T) {
	markup := `
	<div class="list-truyen">
		<div class="row">
			<h3 class="truyen-title"><a href="/truyen-a/">Truyện A</a></h3>
			<span class="author">Tác Giả A</span>
			<div class="text-info"><a href="/truyen-a/chuong-100/">Chương 100</a></div>
		</div>
		<div class="row">
			<span class="author">Mồ côi tiêu đề</span>
		</div>
		<div class="row">
			<h3 class="truyen-title"><a href="/truyen-b/">Truyện B</a></h3>
		</div>
	</div>`

	p := newTestParser(t)
	stubs, err := p.ParseListing(markup)
	require.NoError(t, err)
	require.Len(t, stubs, 2)

	require.Equal(t, "Truyện A", stubs[0].Title)
	require.Equal(t, "truyen-a", stubs[0].Slug)
	require.Equal(t, "https://truyenfull.vision/truyen-a/", stubs[0].SourceURL)
	require.Equal(t, "Tác Giả A", stubs[0].Author)
	require.Equal(t, "Chương 100", stubs[0].LatestChapter)

	require.Equal(t, "Truyện B", stubs[1].Title)
	require.Empty(t, stubs[1].Author, "missing author must not fail parsing")
}

func TestParseStoryDetail(t *testing.T) {
	markup := `
	<h3 class="title">Tam Quốc Diễn Nghĩa</h3>
	<div class="book"><img src="/covers/tam-quoc.jpg"></div>
	<div class="info">
		<a itemprop="author">La Quán Trung</a>
		<a itemprop="genre">Lịch Sử</a>
		<a itemprop="genre">Quân Sự</a>
		<span class="text-success">Full</span>
	</div>
	<div class="desc-text">Chuyện ba nước phân tranh.</div>
	<div class="list-chapter">
		<a href="/tam-quoc/chuong-1/">Chương 1: Yến đào viên</a>
		<a href="/tam-quoc/chuong-2/">Chương 2: Trương Dực Đức</a>
	</div>`

	p := newTestParser(t)
	detail, err := p.ParseStoryDetail(markup, "https://truyenfull.vision/tam-quoc/")
	require.NoError(t, err)

	require.Equal(t, "tam-quoc", detail.Story.Slug)
	require.Equal(t, "Tam Quốc Diễn Nghĩa", detail.Story.Title)
	require.Equal(t, "La Quán Trung", detail.Story.Author)
	require.Equal(t, []string{"Lịch Sử", "Quân Sự"}, detail.Story.Genres)
	require.Equal(t, "completed", string(detail.Story.Status))
	require.Equal(t, "https://truyenfull.vision/covers/tam-quoc.jpg", detail.Story.CoverURL)
	require.Equal(t, 2, detail.Story.TotalChapters)
	require.Len(t, detail.Chapters, 2)
	require.Equal(t, 1, detail.Chapters[0].Number)
}

func TestParseStoryDetailMissingOptionalFields(t *testing.T) {
	markup := `<h3 class="title">Truyện Thiếu Thông Tin</h3>`

	p := newTestParser(t)
	detail, err := p.ParseStoryDetail(markup, "https://truyenfull.vision/thieu-thong-tin/")
	require.NoError(t, err)
	require.Equal(t, "Truyện Thiếu Thông Tin", detail.Story.Title)
	require.Empty(t, detail.Story.Author)
	require.Empty(t, detail.Story.Description)
	require.Equal(t, "ongoing", string(detail.Story.Status))
	require.Empty(t, detail.Chapters)
}

func TestParseChapterListFiltersPaginationArtifacts(t *testing.T) {
	markup := `
	<div class="list-chapter">
		<a href="/truyen/chuong-1/">Chương 1</a>
		<a href="/truyen/chuong-2/">Chương 2</a>
		<a href="/truyen/trang-2/">2</a>
		<a href="/truyen/chuong-3/">3</a>
	</div>`

	p := newTestParser(t)
	stubs, err := p.ParseChapterList(markup)
	require.NoError(t, err)

	// "/trang-2/" lacks the chapter path marker; "3" over a chuong- href is a
	// bare-digit anchor and also dropped.
	require.Len(t, stubs, 2)
	require.Equal(t, 1, stubs[0].Number)
	require.Equal(t, 2, stubs[1].Number)
}

func TestParseChapterListSequentialFallback(t *testing.T) {
	markup := `
	<div class="list-chapter">
		<a href="/truyen/chuong-mo-dau/">Mở đầu câu chuyện</a>
		<a href="/truyen/chuong-ket/">Hồi kết của tất cả</a>
	</div>`

	p := newTestParser(t)
	stubs, err := p.ParseChapterList(markup)
	require.NoError(t, err)
	require.Len(t, stubs, 2)
	require.Equal(t, 1, stubs[0].Number)
	require.Equal(t, 2, stubs[1].Number)
}

func TestParseChapterContentStripsAds(t *testing.T) {
	markup := `
	<h2><a class="chapter-title">Chương 12: Quyết chiến</a></h2>
	<div id="chapter-c">
		<div class="ads">Quảng cáo mua ngay giảm giá sốc khuyến mãi lớn</div>
		<script>trackPageView()</script>
		<p>Đoạn văn thứ nhất của chương truyện, dài hơn mười ký tự rõ ràng.</p>
		<p>Đoạn văn thứ hai tiếp tục mạch truyện với nhiều chi tiết hơn nữa.</p>
		<p>ngắn</p>
		<p>Đoạn văn thứ ba khép lại chương truyện trong sự chờ đợi của độc giả.</p>
	</div>
	<a id="next_chap" href="/truyen/chuong-13/">Chương sau</a>`

	p := newTestParser(t)
	content, err := p.ParseChapterContent(markup, "https://truyenfull.vision/truyen/chuong-12/")
	require.NoError(t, err)

	require.Equal(t, "Chương 12: Quyết chiến", content.Title)
	require.Equal(t, 12, content.Number)
	require.NotContains(t, content.Body, "Quảng cáo")
	require.NotContains(t, content.Body, "trackPageView")
	require.NotContains(t, content.Body, "ngắn")

	paragraphs := 1
	for i := 0; i+1 < len(content.Body); i++ {
		if content.Body[i] == '\n' && content.Body[i+1] == '\n' {
			paragraphs++
		}
	}
	require.Equal(t, 3, paragraphs)
	require.Equal(t, "https://truyenfull.vision/truyen/chuong-13/", content.NextURL)
}

func TestParsePaginationLastPageControl(t *testing.T) {
	markup := `
	<ul class="pagination">
		<li class="active">1</li>
		<li><a href="/truyen/trang-2/">2</a></li>
		<li class="last"><a href="/truyen/trang-7/">Cuối</a></li>
	</ul>`

	p := newTestParser(t)
	pg, err := p.ParsePagination(markup)
	require.NoError(t, err)
	require.Equal(t, 1, pg.CurrentPage)
	require.Equal(t, 7, pg.TotalPages)
}

func TestParsePaginationBareDigitFallback(t *testing.T) {
	markup := `
	<ul class="pagination">
		<li class="active">1</li>
		<li><a href="#">2</a></li>
		<li><a href="#">3</a></li>
	</ul>`

	p := newTestParser(t)
	pg, err := p.ParsePagination(markup)
	require.NoError(t, err)
	require.Equal(t, 3, pg.TotalPages)
}

func TestParsePaginationDefaultsToOne(t *testing.T) {
	p := newTestParser(t)
	pg, err := p.ParsePagination(`<div>no pager here</div>`)
	require.NoError(t, err)
	require.Equal(t, 1, pg.CurrentPage)
	require.Equal(t, 1, pg.TotalPages)
}

func TestParsePaginationNextPrevLinks(t *testing.T) {
	markup := `
	<ul class="pagination">
		<li class="active">2</li>
		<li class="prev"><a href="/truyen/trang-1/">Trước</a></li>
		<li class="next"><a href="/truyen/trang-3/">Sau</a></li>
	</ul>`

	p := newTestParser(t)
	pg, err := p.ParsePagination(markup)
	require.NoError(t, err)
	require.Equal(t, 2, pg.CurrentPage)
	require.Equal(t, "https://truyenfull.vision/truyen/trang-3/", pg.NextURL)
	require.Equal(t, "https://truyenfull.vision/truyen/trang-1/", pg.PrevURL)
}
