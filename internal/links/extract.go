package links

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ThreadSelectors are the CSS selectors used against XenForo-style forum
// pages. The defaults match the stock theme; boards with customized markup
// can override them from a handlers file.
type ThreadSelectors struct {
	Title       string `json:"thread_title"`
	Attachments string `json:"attachments_selector"`
	Lightbox    string `json:"lightbox_selector"`
	NextPage    string `json:"next_page_selector"`
}

func DefaultThreadSelectors() ThreadSelectors {
	return ThreadSelectors{
		Title:       "h1.p-title-value",
		Attachments: "a.file-preview",
		Lightbox:    "a.js-lbImage",
		NextPage:    "a.pageNav-jump--next",
	}
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func classifyURL(rawURL string) MediaKind {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return KindOther
	}
	p := parsed.Path
	idx := strings.LastIndex(p, ".")
	if idx < 0 || idx == len(p)-1 {
		return KindOther
	}
	return ClassifyExt(strings.ToLower(p[idx+1:]))
}

// ThreadTitle extracts the thread title, or "" when the expected element is
// missing from the page.
func ThreadTitle(doc *goquery.Document, sel ThreadSelectors) string {
	return strings.TrimSpace(doc.Find(sel.Title).First().Text())
}

// ExtractThread runs discovery over one forum thread page: attachment and
// lightbox media, the next-page link, and external file-host links embedded
// in posts. Legacy bunkr domains are rewritten before being reported.
func ExtractThread(doc *goquery.Document, base *url.URL, sel ThreadSelectors) Result {
	var res Result
	seen := make(map[string]bool)

	addMedia := func(href string) {
		full := resolve(base, href)
		if full == "" || seen[full] {
			return
		}
		seen[full] = true
		res.Media = append(res.Media, Media{URL: full, Kind: classifyURL(full)})
	}

	doc.Find(sel.Attachments).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			addMedia(href)
		}
	})
	doc.Find(sel.Lightbox).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			addMedia(href)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		host, ok := DetectExternal(href)
		if !ok {
			return
		}
		ext := href
		if host == ExternalBunkr {
			ext = CanonicalBunkrURL(href)
		}
		if seen[ext] {
			return
		}
		seen[ext] = true
		res.External = append(res.External, External{Host: host, URL: ext})
	})

	if href, ok := doc.Find(sel.NextPage).First().Attr("href"); ok {
		res.NextPage = resolve(base, href)
	}
	return res
}

// ExtractEromeAlbum pulls image and video sources from an album page.
func ExtractEromeAlbum(doc *goquery.Document, base *url.URL) Result {
	var res Result
	seen := make(map[string]bool)
	add := func(raw string, kind MediaKind) {
		full := resolve(base, raw)
		if full == "" || seen[full] {
			return
		}
		seen[full] = true
		res.Media = append(res.Media, Media{URL: full, Kind: kind})
	}
	doc.Find("div.img[data-src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("data-src"); ok {
			add(src, KindImage)
		}
	})
	doc.Find("img[data-src].img-back, img[data-src].img-front").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("data-src"); ok {
			add(src, KindImage)
		}
	})
	doc.Find("video source[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src, KindVideo)
		}
	})
	return res
}

// ExtractEromeProfile lists album links on a profile page plus pagination.
func ExtractEromeProfile(doc *goquery.Document, base *url.URL) (albums []string, nextPage string) {
	seen := make(map[string]bool)
	doc.Find("a.album-link").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		full := resolve(base, href)
		if full == "" || seen[full] {
			return
		}
		seen[full] = true
		albums = append(albums, full)
	})
	if href, ok := doc.Find("a[rel='next']").First().Attr("href"); ok {
		nextPage = resolve(base, href)
	}
	return albums, nextPage
}

// ExtractBunkrAlbum lists the item pages linked from an album grid.
func ExtractBunkrAlbum(doc *goquery.Document, base *url.URL) (items []string, nextPage string) {
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !isBunkrItemPath(href) {
			return
		}
		full := resolve(base, href)
		if full == "" || seen[full] {
			return
		}
		seen[full] = true
		items = append(items, full)
	})
	if href, ok := doc.Find("a.pagination-next, a[rel='next']").First().Attr("href"); ok {
		nextPage = resolve(base, href)
	}
	return items, nextPage
}

func isBunkrItemPath(href string) bool {
	for _, prefix := range []string{"/f/", "/v/", "/i/", "/d/"} {
		if strings.HasPrefix(href, prefix) || strings.Contains(href, ".ac"+prefix) ||
			strings.Contains(href, ".site"+prefix) || strings.Contains(href, ".cr"+prefix) {
			return true
		}
	}
	return false
}

// ExtractBunkrItem finds the direct media URL on a single item page. Item
// pages carry either a <video> source, a full-size <img>, or a download
// anchor pointing at the CDN.
func ExtractBunkrItem(doc *goquery.Document, base *url.URL) (Media, bool) {
	if src, ok := doc.Find("video source[src]").First().Attr("src"); ok {
		full := resolve(base, src)
		return Media{URL: full, Kind: KindVideo}, full != ""
	}
	if src, ok := doc.Find("video[src]").First().Attr("src"); ok {
		full := resolve(base, src)
		return Media{URL: full, Kind: KindVideo}, full != ""
	}
	if src, ok := doc.Find("img.max-h-full, img.grid-images_box-img").First().Attr("src"); ok {
		full := resolve(base, src)
		return Media{URL: full, Kind: KindImage}, full != ""
	}
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "get.bunkr") || strings.Contains(strings.ToLower(s.Text()), "download") && strings.HasPrefix(href, "http") {
			found = href
			return false
		}
		return true
	})
	if found != "" {
		full := resolve(base, found)
		return Media{URL: full, Kind: classifyURL(full)}, full != ""
	}
	if content, ok := doc.Find("meta[property='og:image']").First().Attr("content"); ok && content != "" {
		return Media{URL: content, Kind: KindImage}, true
	}
	return Media{}, false
}

// PageTitle reads the first h1 matching the given selector, used for folder
// labels on album and profile pages.
func PageTitle(doc *goquery.Document, selector, fallback string) string {
	title := strings.TrimSpace(doc.Find(selector).First().Text())
	if title == "" {
		return fallback
	}
	return title
}
