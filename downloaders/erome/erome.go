// Package erome crawls erome.com: single albums and paginated profiles.
package erome

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/naming"
	"github.com/killerciao/CoomerDLEnhanced/internal/scheduler"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/internal/transfer"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

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
		log:    utils.GetLogger("erome"),
	}
}

func NewClient() *transfer.Client {
	return transfer.New(transfer.Options{
		Referer:  "https://www.erome.com/",
		PageRate: 2,
	})
}

// IsAlbumURL reports whether the URL points at a single album rather than a
// profile. Albums carry an /a/ identifier segment.
func IsAlbumURL(rawURL string) bool {
	return strings.Contains(rawURL, "/a/")
}

// DownloadAlbum schedules every asset of one album.
func (d *Downloader) DownloadAlbum(albumURL string) error {
	doc, base, err := d.client.FetchDocument(albumURL)
	if err != nil {
		return fmt.Errorf("fetching album page: %w", err)
	}
	title := links.PageTitle(doc, "h1", "erome_album")
	folder := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(albumURL, title))

	res := links.ExtractEromeAlbum(doc, base)
	if len(res.Media) == 0 {
		d.sess.Log(fmt.Sprintf("No media found on album page: %s", albumURL))
		return nil
	}
	d.sess.Log(fmt.Sprintf("Album %q: %d assets found", title, len(res.Media)))
	for _, m := range res.Media {
		dest := filepath.Join(folder, naming.FileNameFromURL(m.URL))
		d.sched.Schedule(m, dest, albumURL, d.client)
	}
	return nil
}

// DownloadProfile walks a profile's album list. With the session's
// download-all switch off, only the first page of albums is taken; otherwise
// pagination follows the profile's next links until the host runs out.
func (d *Downloader) DownloadProfile(profileURL string) error {
	pageURL := profileURL
	for pageURL != "" {
		if d.sess.Cancelled() {
			return nil
		}
		doc, base, err := d.client.FetchDocument(pageURL)
		if err != nil {
			if pageURL == profileURL {
				return fmt.Errorf("fetching profile page: %w", err)
			}
			d.log.Warn().Err(err).Str("page", pageURL).Msg("Profile page fetch failed, stopping pagination")
			return nil
		}
		albums, next := links.ExtractEromeProfile(doc, base)
		d.sess.Log(fmt.Sprintf("Profile page %s: %d albums", pageURL, len(albums)))
		for _, album := range albums {
			if d.sess.Cancelled() {
				return nil
			}
			if !d.sess.MarkSeen(album) {
				continue
			}
			if err := d.DownloadAlbum(album); err != nil {
				// One broken album page must not end the profile crawl.
				d.log.Warn().Err(err).Str("album", album).Msg("Album crawl failed")
			}
		}
		if !d.sess.Cfg.DownloadAll {
			break
		}
		pageURL = next
	}
	return nil
}
