// Package pixeldrain handles pixeldrain.com links: single files via the file
// API and lists via the list API.
package pixeldrain

import (
	"fmt"
	"net/url"
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

const defaultBase = "https://pixeldrain.com"

type Downloader struct {
	sess   *session.Session
	sched  *scheduler.Scheduler
	client *transfer.Client
	log    zerolog.Logger

	// Base overrides the production endpoint in tests.
	Base string
}

func New(sess *session.Session, sched *scheduler.Scheduler, client *transfer.Client) *Downloader {
	return &Downloader{
		sess:   sess,
		sched:  sched,
		client: client,
		log:    utils.GetLogger("pixeldrain"),
	}
}

func NewClient() *transfer.Client {
	return transfer.New(transfer.Options{
		Referer:  "https://pixeldrain.com/",
		PageRate: 2,
	})
}

func (d *Downloader) base() string {
	if d.Base != "" {
		return d.Base
	}
	return defaultBase
}

type listFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type listResponse struct {
	Title string     `json:"title"`
	Files []listFile `json:"files"`
}

// Download routes a pixeldrain URL: /u/{id} is a single file, /l/{id} a list.
func (d *Downloader) Download(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s", session.ErrUnsupportedURL, rawURL)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 {
		return fmt.Errorf("%w: %s", session.ErrUnsupportedURL, rawURL)
	}
	id := parts[len(parts)-1]
	switch parts[0] {
	case "l":
		return d.downloadList(rawURL, id)
	default:
		return d.downloadFile(id, d.sess.Cfg.DownloadFolder, id, 0)
	}
}

func (d *Downloader) downloadList(rawURL, id string) error {
	var list listResponse
	if err := d.client.FetchJSON(d.base()+"/api/list/"+id, &list); err != nil {
		return fmt.Errorf("fetching list %s: %w", id, err)
	}
	folder := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(rawURL, list.Title))
	d.sess.Log(fmt.Sprintf("List %q: %d files", list.Title, len(list.Files)))
	for _, f := range list.Files {
		if d.sess.Cancelled() {
			return nil
		}
		if err := d.downloadFile(f.ID, folder, f.Name, f.Size); err != nil {
			d.log.Warn().Err(err).Str("file", f.ID).Msg("List entry failed")
		}
	}
	return nil
}

func (d *Downloader) downloadFile(id, folder, name string, size int64) error {
	fileURL := d.base() + "/api/file/" + id + "?download"
	if name == "" {
		name = id
	}
	ext := naming.Ext("/" + name)
	dest := filepath.Join(folder, naming.Clean(name))
	d.sched.Schedule(links.Media{URL: fileURL, Kind: links.ClassifyExt(ext)}, dest, d.base()+"/", d.client)
	return nil
}
