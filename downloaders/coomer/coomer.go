// Package coomer crawls the coomer.su / kemono.su gallery API: paginated
// creator feeds and single posts, with media served off the site's data
// paths.
package coomer

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

// pageSize is the API's fixed page length for creator feeds.
const pageSize = 50

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
		log:    utils.GetLogger("coomer"),
	}
}

// NewClient returns a transfer client configured for the gallery hosts.
func NewClient(site string) *transfer.Client {
	return transfer.New(transfer.Options{
		Referer:  baseURL(site) + "/",
		PageRate: 2,
	})
}

func baseURL(site string) string {
	if strings.HasPrefix(site, "http://") || strings.HasPrefix(site, "https://") {
		return strings.TrimSuffix(site, "/")
	}
	return "https://" + site
}

type postFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type post struct {
	ID          string     `json:"id"`
	User        string     `json:"user"`
	Service     string     `json:"service"`
	Title       string     `json:"title"`
	File        postFile   `json:"file"`
	Attachments []postFile `json:"attachments"`
}

// DownloadCollection crawls a creator feed. With downloadAll unset only the
// page at the given offset is fetched; otherwise the offset advances by the
// API page size until the host returns an empty page.
func (d *Downloader) DownloadCollection(site, service, user, query string, downloadAll bool, offset int) error {
	base := baseURL(site)
	profileURL := fmt.Sprintf("%s/%s/user/%s", base, service, user)
	folder := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(profileURL, user))

	for {
		if d.sess.Cancelled() {
			return nil
		}
		apiURL := fmt.Sprintf("%s/api/v1/%s/user/%s?o=%d", base, service, user, offset)
		if query != "" {
			apiURL += "&q=" + url.QueryEscape(query)
		}
		d.sess.Log(fmt.Sprintf("Fetching posts for %s (offset %d)", user, offset))
		var posts []post
		if err := d.client.FetchJSON(apiURL, &posts); err != nil {
			if offset == 0 {
				// An unreachable first page means the whole session
				// cannot start; later pages only end the crawl.
				return fmt.Errorf("fetching creator feed: %w", err)
			}
			d.log.Warn().Err(err).Int("offset", offset).Msg("Page fetch failed, stopping pagination")
			return nil
		}
		if len(posts) == 0 {
			break
		}
		for i := range posts {
			d.schedulePost(base, &posts[i], folder)
		}
		if !downloadAll {
			break
		}
		offset += pageSize
	}
	return nil
}

// DownloadPost fetches and schedules a single post.
func (d *Downloader) DownloadPost(site, service, user, postID string) error {
	base := baseURL(site)
	apiURL := fmt.Sprintf("%s/api/v1/%s/user/%s/post/%s", base, service, user, postID)
	var p post
	if err := d.client.FetchJSON(apiURL, &p); err != nil {
		return fmt.Errorf("fetching post %s: %w", postID, err)
	}
	profileURL := fmt.Sprintf("%s/%s/user/%s", base, service, user)
	folder := filepath.Join(d.sess.Cfg.DownloadFolder, naming.StableDir(profileURL, user))
	d.schedulePost(base, &p, folder)
	return nil
}

func (d *Downloader) schedulePost(base string, p *post, folder string) {
	for _, f := range postMedia(p) {
		fileURL := base + f.Path
		kind := links.ClassifyExt(naming.Ext(fileURL))
		name := f.Name
		if name == "" {
			name = naming.FileNameFromURL(fileURL)
		}
		dest := filepath.Join(folder, naming.Clean(name))
		d.sched.Schedule(links.Media{URL: fileURL, Kind: kind}, dest, base+"/", d.client)
	}
}

func postMedia(p *post) []postFile {
	var files []postFile
	if p.File.Path != "" {
		files = append(files, p.File)
	}
	for _, a := range p.Attachments {
		if a.Path != "" {
			files = append(files, a)
		}
	}
	return files
}
