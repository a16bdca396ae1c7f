// Package forum crawls XenForo-style boards (phica.eu, simpcity.su): a
// thread's pages are walked in order, attachments and lightbox images are
// scheduled into img/ and videos/ subfolders, and links to known external
// file hosts are collected and dispatched to those hosts' drivers at the end
// of the thread. That dispatch is how one thread download fans out into
// transfers from several hosts.
package forum

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/killerciao/CoomerDLEnhanced/downloaders/bunkr"
	"github.com/killerciao/CoomerDLEnhanced/downloaders/gofile"
	"github.com/killerciao/CoomerDLEnhanced/downloaders/pixeldrain"
	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/naming"
	"github.com/killerciao/CoomerDLEnhanced/internal/scheduler"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/internal/transfer"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

type Downloader struct {
	sess      *session.Session
	sched     *scheduler.Scheduler
	client    *transfer.Client
	log       zerolog.Logger
	selectors links.ThreadSelectors

	// Dispatch hands one collected external link to its host's driver.
	// Overridable in tests; nil selects the real drivers.
	Dispatch func(ext links.External) error
}

func New(sess *session.Session, sched *scheduler.Scheduler, client *transfer.Client) *Downloader {
	d := &Downloader{
		sess:      sess,
		sched:     sched,
		client:    client,
		log:       utils.GetLogger("forum"),
		selectors: links.DefaultThreadSelectors(),
	}
	d.Dispatch = d.dispatchHost
	return d
}

// NewClient builds a transfer client for a board. Boards behind a login wall
// need session cookies; cookiesFile points at a JSON export of them and may
// be empty.
func NewClient(referer, cookiesFile string) (*transfer.Client, error) {
	var cookies []*http.Cookie
	if cookiesFile != "" {
		loaded, err := LoadCookies(cookiesFile)
		if err != nil {
			return nil, err
		}
		cookies = loaded
	}
	return transfer.New(transfer.Options{
		Referer:  referer,
		Cookies:  cookies,
		PageRate: 1,
	}), nil
}

// LoadCookies reads a browser-exported cookie list: [{"name":..,"value":..}].
func LoadCookies(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cookies file: %w", err)
	}
	var entries []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing cookies file: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(entries))
	for _, e := range entries {
		cookies = append(cookies, &http.Cookie{Name: e.Name, Value: e.Value})
	}
	return cookies, nil
}

// LoadSelectors applies selector overrides from a handlers file on top of the
// defaults, for boards whose theme renames the stock classes.
func (d *Downloader) LoadSelectors(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading handlers file: %w", err)
	}
	sel := links.DefaultThreadSelectors()
	if err := json.Unmarshal(data, &sel); err != nil {
		return fmt.Errorf("parsing handlers file: %w", err)
	}
	d.selectors = sel
	return nil
}

// DownloadThread walks every page of a thread, schedules its media, then
// dispatches collected external links to the matching host drivers on the
// same session.
func (d *Downloader) DownloadThread(threadURL string) error {
	doc, base, err := d.client.FetchDocument(threadURL)
	if err != nil {
		return fmt.Errorf("fetching thread: %w", err)
	}
	title := links.ThreadTitle(doc, d.selectors)
	if title == "" {
		return fmt.Errorf("thread title not found on %s", threadURL)
	}
	folder := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(threadURL, title))
	imgFolder := filepath.Join(folder, "img")
	videoFolder := filepath.Join(folder, "videos")
	d.sess.Log(fmt.Sprintf("Processing thread: %s", title))

	var external []links.External
	pageURL := threadURL
	visited := map[string]bool{pageURL: true}
	for {
		res := links.ExtractThread(doc, base, d.selectors)
		for _, m := range res.Media {
			if d.sess.Cancelled() {
				break
			}
			dest := d.mediaDest(m, imgFolder, videoFolder)
			d.sched.Schedule(m, dest, pageURL, d.client)
		}
		for _, ext := range res.External {
			// Session-scoped dedup: the same album linked from five posts
			// is dispatched once.
			if d.sess.MarkSeen(ext.URL) {
				d.sess.Log(fmt.Sprintf("Found external link: %s", ext.URL))
				external = append(external, ext)
			}
		}
		// Visited tracking stops selector quirks that point back to an
		// earlier page from looping the crawl.
		if res.NextPage == "" || visited[res.NextPage] || d.sess.Cancelled() {
			break
		}
		visited[res.NextPage] = true
		d.sess.Log(fmt.Sprintf("Found next page: %s", res.NextPage))
		pageURL = res.NextPage
		doc, base, err = d.client.FetchDocument(pageURL)
		if err != nil {
			d.log.Warn().Err(err).Str("page", pageURL).Msg("Thread page fetch failed, stopping pagination")
			break
		}
	}

	d.dispatchExternal(external)
	return nil
}

// mediaDest names thread media by URL hash: attachment URLs on boards carry
// no stable basename, and hash names make re-runs resumable.
func (d *Downloader) mediaDest(m links.Media, imgFolder, videoFolder string) string {
	if m.Kind == links.KindVideo {
		return filepath.Join(videoFolder, naming.HashedFileName(m.URL))
	}
	return filepath.Join(imgFolder, naming.HashedFileName(m.URL))
}

// dispatchExternal hands each collected link to the driver for its host.
func (d *Downloader) dispatchExternal(external []links.External) {
	if len(external) == 0 {
		return
	}
	d.sess.Log(fmt.Sprintf("Dispatching %d external links", len(external)))
	for _, ext := range external {
		if d.sess.Cancelled() {
			return
		}
		if err := d.Dispatch(ext); err != nil {
			d.log.Warn().Err(err).Str("url", ext.URL).Str("host", ext.Host.String()).Msg("External link failed")
			d.sess.Log(fmt.Sprintf("External link failed (%s): %v", ext.URL, err))
		}
	}
}

// dispatchHost builds the matching host driver on the shared session so its
// transfers land in the same counters and honor the same cancel flag.
func (d *Downloader) dispatchHost(ext links.External) error {
	switch ext.Host {
	case links.ExternalBunkr:
		return bunkr.New(d.sess, d.sched, bunkr.NewClient()).Download(ext.URL)
	case links.ExternalGofile:
		return gofile.New(d.sess, d.sched, gofile.NewClient()).DownloadFolder(ext.URL, "")
	case links.ExternalPixeldrain:
		return pixeldrain.New(d.sess, d.sched, pixeldrain.NewClient()).Download(ext.URL)
	}
	return nil
}
