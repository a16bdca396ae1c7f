// Package bunkr crawls bunkr albums, profiles, and single item pages. The
// album grid links item pages; each item page carries the direct CDN URL of
// one asset.
package bunkr

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/naming"
	"github.com/killerciao/CoomerDLEnhanced/internal/scheduler"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/internal/transfer"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

// HostPattern matches any bunkr domain, including rotated TLDs.
var HostPattern = regexp.MustCompile(`https?://([a-z0-9-]+\.)?bunkrr?\.[a-z]{2,}`)

var itemPathPattern = regexp.MustCompile(`/(v|i|f|d)/`)

type Downloader struct {
	sess   *session.Session
	sched  *scheduler.Scheduler
	client *transfer.Client
	log    zerolog.Logger
}

func New(sess *session.Session, sched *scheduler.Scheduler, client *transfer.Client) *Downloader {
	return &Downloader{
		sess:   sess,
		sched:  sched,
		client: client,
		log:    utils.GetLogger("bunkr"),
	}
}

func NewClient() *transfer.Client {
	return transfer.New(transfer.Options{
		Referer:  "https://bunkr.site/",
		PageRate: 1,
	})
}

// IsItemURL reports whether the URL addresses a single file page rather than
// an album or profile.
func IsItemURL(rawURL string) bool {
	return itemPathPattern.MatchString(rawURL)
}

// Download routes a bunkr URL to the album or single-item path after
// rewriting legacy domains.
func (d *Downloader) Download(rawURL string) error {
	rawURL = links.CanonicalBunkrURL(rawURL)
	if IsItemURL(rawURL) {
		return d.DownloadFile(rawURL)
	}
	return d.DownloadAlbum(rawURL)
}

// DownloadAlbum crawls an album (or profile) grid and schedules every item.
func (d *Downloader) DownloadAlbum(albumURL string) error {
	albumURL = links.CanonicalBunkrURL(albumURL)
	doc, base, err := d.client.FetchDocument(albumURL)
	if err != nil {
		return fmt.Errorf("fetching album page: %w", err)
	}
	title := links.PageTitle(doc, "h1.truncate", "bunkr_album")
	folder := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(albumURL, title))

	pageURL := albumURL
	for {
		items, next := links.ExtractBunkrAlbum(doc, base)
		d.sess.Log(fmt.Sprintf("Album %q: %d items on page", title, len(items)))
		for _, item := range items {
			if d.sess.Cancelled() {
				return nil
			}
			if !d.sess.MarkSeen(item) {
				continue
			}
			if err := d.scheduleItem(item, folder); err != nil {
				d.log.Warn().Err(err).Str("item", item).Msg("Item page failed")
			}
		}
		if next == "" || next == pageURL || d.sess.Cancelled() {
			return nil
		}
		pageURL = next
		doc, base, err = d.client.FetchDocument(pageURL)
		if err != nil {
			d.log.Warn().Err(err).Str("page", pageURL).Msg("Album page fetch failed, stopping pagination")
			return nil
		}
	}
}

// DownloadProfile crawls an uploader page, which shares the album grid
// markup.
func (d *Downloader) DownloadProfile(profileURL string) error {
	return d.DownloadAlbum(profileURL)
}

// DownloadFile handles a direct link to one item page.
func (d *Downloader) DownloadFile(itemURL string) error {
	itemURL = links.CanonicalBunkrURL(itemURL)
	doc, base, err := d.client.FetchDocument(itemURL)
	if err != nil {
		return fmt.Errorf("fetching item page: %w", err)
	}
	title := links.PageTitle(doc, "h1.truncate", "bunkr_file")
	folder := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(itemURL, title))
	media, ok := links.ExtractBunkrItem(doc, base)
	if !ok {
		d.sess.Log(fmt.Sprintf("No downloadable media found on %s", itemURL))
		return nil
	}
	dest := filepath.Join(folder, naming.FileNameFromURL(media.URL))
	d.sched.Schedule(media, dest, itemURL, d.client)
	return nil
}

func (d *Downloader) scheduleItem(itemURL, folder string) error {
	doc, base, err := d.client.FetchDocument(itemURL)
	if err != nil {
		return err
	}
	media, ok := links.ExtractBunkrItem(doc, base)
	if !ok {
		return fmt.Errorf("no media element on %s", itemURL)
	}
	dest := filepath.Join(folder, naming.FileNameFromURL(media.URL))
	d.sched.Schedule(media, dest, itemURL, d.client)
	return nil
}
