package links_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
)

func parseDoc(t *testing.T, html, base string) (*goquery.Document, *url.URL) {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	baseURL, err := url.Parse(base)
	require.NoError(t, err)
	return doc, baseURL
}

const threadPage = `<html><body>
<h1 class="p-title-value">Holiday Pics 2024</h1>
<article>
  <a class="file-preview" href="/attachments/photo1-jpg.1001/">photo1</a>
  <a class="file-preview" href="/attachments/photo1-jpg.1001/">photo1 again</a>
  <a class="js-lbImage" href="https://cdn.example.com/full/photo2.png">photo2</a>
  <a class="js-lbImage" href="/attachments/clip-mp4.1002/">clip</a>
  <a href="https://bunkr.su/a/oldalbum">bunkr album</a>
  <a href="https://gofile.io/d/AbCdEf">gofile folder</a>
  <a href="https://example.com/unrelated">unrelated</a>
</article>
<a class="pageNav-jump--next" href="/threads/holiday.123/page-2">Next</a>
</body></html>`

func TestExtractThread(t *testing.T) {
	t.Parallel()

	doc, base := parseDoc(t, threadPage, "https://forum.example.com/threads/holiday.123/")
	sel := links.DefaultThreadSelectors()

	assert.Equal(t, "Holiday Pics 2024", links.ThreadTitle(doc, sel))

	res := links.ExtractThread(doc, base, sel)

	// Duplicate attachment href collapses to one entry.
	require.Len(t, res.Media, 3)
	assert.Equal(t, "https://forum.example.com/attachments/photo1-jpg.1001/", res.Media[0].URL)
	assert.Equal(t, "https://cdn.example.com/full/photo2.png", res.Media[1].URL)
	assert.Equal(t, links.KindImage, res.Media[1].Kind)

	require.Len(t, res.External, 2)
	// Legacy bunkr domain is rewritten before being reported.
	assert.Equal(t, links.External{Host: links.ExternalBunkr, URL: "https://bunkr.ac/a/oldalbum"}, res.External[0])
	assert.Equal(t, links.External{Host: links.ExternalGofile, URL: "https://gofile.io/d/AbCdEf"}, res.External[1])

	assert.Equal(t, "https://forum.example.com/threads/holiday.123/page-2", res.NextPage)
}

func TestExtractThreadLastPage(t *testing.T) {
	t.Parallel()

	doc, base := parseDoc(t, `<html><body><h1 class="p-title-value">T</h1></body></html>`, "https://forum.example.com/threads/t.1/")
	res := links.ExtractThread(doc, base, links.DefaultThreadSelectors())
	assert.Empty(t, res.Media)
	assert.Empty(t, res.External)
	assert.Empty(t, res.NextPage)
}

func TestExtractThreadCustomSelectors(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h1 class="thread-heading">Custom Theme</h1>
<a class="media-link" href="/files/a.jpg">a</a>
</body></html>`
	doc, base := parseDoc(t, page, "https://board.example.com/")
	sel := links.ThreadSelectors{
		Title:       "h1.thread-heading",
		Attachments: "a.media-link",
		Lightbox:    "a.never-matches",
		NextPage:    "a.next",
	}
	assert.Equal(t, "Custom Theme", links.ThreadTitle(doc, sel))
	res := links.ExtractThread(doc, base, sel)
	require.Len(t, res.Media, 1)
	assert.Equal(t, "https://board.example.com/files/a.jpg", res.Media[0].URL)
}

func TestExtractEromeAlbum(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="img" data-src="https://cdn.erome.example/p1.jpg"></div>
<div class="img" data-src="https://cdn.erome.example/p1.jpg"></div>
<img class="img-back" data-src="/thumbs/p2.webp">
<video><source src="https://cdn.erome.example/v1.mp4"></video>
</body></html>`
	doc, base := parseDoc(t, page, "https://www.erome.com/a/abc123")

	res := links.ExtractEromeAlbum(doc, base)
	require.Len(t, res.Media, 3)
	assert.Equal(t, links.KindImage, res.Media[0].Kind)
	assert.Equal(t, "https://www.erome.com/thumbs/p2.webp", res.Media[1].URL)
	assert.Equal(t, links.KindVideo, res.Media[2].Kind)
}

func TestExtractEromeProfile(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<a class="album-link" href="/a/abc">one</a>
<a class="album-link" href="/a/def">two</a>
<a class="album-link" href="/a/abc">one again</a>
<a rel="next" href="/user?page=2">next</a>
</body></html>`
	doc, base := parseDoc(t, page, "https://www.erome.com/user")

	albums, next := links.ExtractEromeProfile(doc, base)
	assert.Equal(t, []string{"https://www.erome.com/a/abc", "https://www.erome.com/a/def"}, albums)
	assert.Equal(t, "https://www.erome.com/user?page=2", next)
}

func TestExtractBunkrAlbum(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<a href="/f/file1">f1</a>
<a href="/v/vid1">v1</a>
<a href="/about">about</a>
<a href="/f/file1">f1 again</a>
<a class="pagination-next" href="/a/album?page=2">next</a>
</body></html>`
	doc, base := parseDoc(t, page, "https://bunkr.ac/a/album")

	items, next := links.ExtractBunkrAlbum(doc, base)
	assert.Equal(t, []string{"https://bunkr.ac/f/file1", "https://bunkr.ac/v/vid1"}, items)
	assert.Equal(t, "https://bunkr.ac/a/album?page=2", next)
}

func TestExtractBunkrItem(t *testing.T) {
	t.Parallel()

	t.Run("video source", func(t *testing.T) {
		t.Parallel()
		doc, base := parseDoc(t, `<video><source src="https://cdn.bunkr.example/v.mp4"></video>`, "https://bunkr.ac/v/vid1")
		m, ok := links.ExtractBunkrItem(doc, base)
		require.True(t, ok)
		assert.Equal(t, links.Media{URL: "https://cdn.bunkr.example/v.mp4", Kind: links.KindVideo}, m)
	})

	t.Run("full size image", func(t *testing.T) {
		t.Parallel()
		doc, base := parseDoc(t, `<img class="max-h-full" src="https://cdn.bunkr.example/i.png">`, "https://bunkr.ac/i/img1")
		m, ok := links.ExtractBunkrItem(doc, base)
		require.True(t, ok)
		assert.Equal(t, links.KindImage, m.Kind)
	})

	t.Run("download anchor", func(t *testing.T) {
		t.Parallel()
		doc, base := parseDoc(t, `<a href="https://get.bunkr.example/file/123">Download</a>`, "https://bunkr.ac/d/doc1")
		m, ok := links.ExtractBunkrItem(doc, base)
		require.True(t, ok)
		assert.Equal(t, "https://get.bunkr.example/file/123", m.URL)
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Parallel()
		doc, base := parseDoc(t, `<p>empty</p>`, "https://bunkr.ac/f/gone")
		_, ok := links.ExtractBunkrItem(doc, base)
		assert.False(t, ok)
	})
}

func TestPageTitle(t *testing.T) {
	t.Parallel()

	doc, _ := parseDoc(t, `<h1> My Album </h1>`, "https://example.com/")
	assert.Equal(t, "My Album", links.PageTitle(doc, "h1", "fallback"))
	assert.Equal(t, "fallback", links.PageTitle(doc, "h2", "fallback"))
}
