// Package gofile walks the gofile.io content API: a guest account token, the
// wt value scraped from the site's global script, then a recursive walk of
// the folder tree scheduling each leaf file.
package gofile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
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

const defaultAPIBase = "https://api.gofile.io"
const defaultSiteBase = "https://gofile.io"

// Folder-tree hosts serve large files; bigger chunks keep syscall overhead
// down, matching the larger transfer buffer used for this host family.
const chunkSize = 1024 * 1024

type Downloader struct {
	sess   *session.Session
	sched  *scheduler.Scheduler
	client *transfer.Client
	log    zerolog.Logger

	// APIBase and SiteBase exist so tests can point the driver at a local
	// server; zero values mean production endpoints.
	APIBase  string
	SiteBase string

	token string
	wt    string
}

func New(sess *session.Session, sched *scheduler.Scheduler, client *transfer.Client) *Downloader {
	return &Downloader{
		sess:   sess,
		sched:  sched,
		client: client,
		log:    utils.GetLogger("gofile"),
	}
}

func NewClient() *transfer.Client {
	return transfer.New(transfer.Options{
		Referer:   "https://gofile.io/",
		PageRate:  2,
		ChunkSize: chunkSize,
	})
}

func (d *Downloader) apiBase() string {
	if d.APIBase != "" {
		return d.APIBase
	}
	return defaultAPIBase
}

func (d *Downloader) siteBase() string {
	if d.SiteBase != "" {
		return d.SiteBase
	}
	return defaultSiteBase
}

type accountResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

type content struct {
	Type     string             `json:"type"`
	Name     string             `json:"name"`
	Size     int64              `json:"size"`
	Link     string             `json:"link"`
	Children map[string]content `json:"children"`
	Password string             `json:"passwordStatus"`
}

type contentsResponse struct {
	Status string  `json:"status"`
	Data   content `json:"data"`
}

func (d *Downloader) ensureToken() error {
	if d.token != "" {
		return nil
	}
	var acct accountResponse
	if err := d.client.PostJSON(d.apiBase()+"/accounts", &acct); err != nil {
		return fmt.Errorf("creating guest account: %w", err)
	}
	if acct.Status != "ok" || acct.Data.Token == "" {
		return fmt.Errorf("guest account request returned status %q", acct.Status)
	}
	d.token = acct.Data.Token
	d.client.SetHeader("Authorization", "Bearer "+d.token)
	d.client.AddCookie(&http.Cookie{Name: "accountToken", Value: d.token})
	d.log.Debug().Msg("Guest token acquired")
	return nil
}

func (d *Downloader) ensureWT() error {
	if d.wt != "" {
		return nil
	}
	body, err := d.client.FetchBody(d.siteBase() + "/dist/js/global.js")
	if err != nil {
		return fmt.Errorf("fetching site script: %w", err)
	}
	const marker = `appdata.wt = "`
	idx := strings.Index(body, marker)
	if idx < 0 {
		return fmt.Errorf("wt value not present in site script")
	}
	rest := body[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return fmt.Errorf("wt value not terminated in site script")
	}
	d.wt = rest[:end]
	d.log.Debug().Msg("wt value extracted")
	return nil
}

// ContentID extracts the content identifier from a /d/ share URL.
func ContentID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// DownloadFolder resolves a share URL and schedules every file in its folder
// tree, mirroring the tree under the download folder. An optional password
// is hashed before being sent, the way the site's own client does it.
func (d *Downloader) DownloadFolder(rawURL, password string) error {
	id := ContentID(rawURL)
	if id == "" {
		return fmt.Errorf("%w: %s", session.ErrUnsupportedURL, rawURL)
	}
	if err := d.ensureToken(); err != nil {
		return err
	}
	if err := d.ensureWT(); err != nil {
		return err
	}

	contentsURL := fmt.Sprintf("%s/contents/%s?wt=%s&cache=true", d.apiBase(), id, url.QueryEscape(d.wt))
	if password != "" {
		sum := sha256.Sum256([]byte(password))
		contentsURL += "&password=" + hex.EncodeToString(sum[:])
	}
	var resp contentsResponse
	if err := d.client.FetchJSON(contentsURL, &resp); err != nil {
		return fmt.Errorf("fetching content tree: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("content request returned status %q", resp.Status)
	}
	if resp.Data.Password != "" && resp.Data.Password != "passwordOk" {
		return fmt.Errorf("folder is password protected and the password was not accepted")
	}

	if resp.Data.Type != "folder" {
		// Single-file share: no tree to mirror.
		d.scheduleFile(resp.Data, filepath.Join(d.sess.Cfg.DownloadFolder, naming.Clean(resp.Data.Name)))
		return nil
	}
	root := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(rawURL, resp.Data.Name))
	d.walk(resp.Data, root)
	return nil
}

// walk recurses the folder tree depth-first, scheduling leaves as it goes.
func (d *Downloader) walk(node content, base string) {
	if d.sess.Cancelled() {
		return
	}
	if node.Type == "folder" {
		for _, child := range node.Children {
			if d.sess.Cancelled() {
				return
			}
			d.walk(child, filepath.Join(base, naming.Clean(child.Name)))
		}
		return
	}
	// base already ends in this node's cleaned name
	d.scheduleFile(node, base)
}

func (d *Downloader) scheduleFile(node content, dest string) {
	if node.Link == "" {
		return
	}
	ext := naming.Ext("/" + node.Name)
	if ext == "" {
		ext = naming.Ext(node.Link)
	}
	d.sched.Schedule(links.Media{URL: node.Link, Kind: links.ClassifyExt(ext)}, dest, d.siteBase()+"/", d.client)
}
