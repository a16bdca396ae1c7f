package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/killerciao/CoomerDLEnhanced/downloaders/bunkr"
	"github.com/killerciao/CoomerDLEnhanced/downloaders/coomer"
	"github.com/killerciao/CoomerDLEnhanced/downloaders/erome"
	"github.com/killerciao/CoomerDLEnhanced/downloaders/forum"
	"github.com/killerciao/CoomerDLEnhanced/downloaders/gofile"
	"github.com/killerciao/CoomerDLEnhanced/downloaders/pixeldrain"
	"github.com/killerciao/CoomerDLEnhanced/internal/scheduler"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

// runSession drives one session over the given URLs: resolve each root URL
// with its host's driver, wait for all queued transfers, then report. A
// first interrupt cancels cooperatively; a second one force-exits.
func runSession(cfg session.Config, urls []string) error {
	display := NewDisplay()
	sess := session.New(cfg, display)
	sched := scheduler.New(sess)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		sess.RequestCancel()
		<-sigCh
		os.Exit(1)
	}()

	display.Start()
	var resolveErr error
	for _, rawURL := range urls {
		if sess.Cancelled() {
			break
		}
		if err := dispatch(sess, sched, rawURL); err != nil {
			sess.Log(fmt.Sprintf("Failed to process %s: %v", rawURL, err))
			resolveErr = err
		}
	}
	sched.Drain()
	sum := sess.Finish()
	display.Stop()
	display.ShowSummary(sum, sess.FailedFiles())

	if sum.Cancelled {
		return session.ErrCancelled
	}
	if resolveErr != nil {
		return resolveErr
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", sum.Failed)
	}
	return nil
}

// dispatch resolves a root URL to its host driver. Unknown hosts fail here,
// before any network traffic.
func dispatch(sess *session.Session, sched *scheduler.Scheduler, rawURL string) error {
	parsed, err := u.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	host := strings.ToLower(parsed.Hostname())
	switch {
	case isCoomerHost(host):
		site, service, user, postID, query, offset, err := parseCoomerURL(parsed)
		if err != nil {
			return err
		}
		drv := coomer.New(sess, sched, coomer.NewClient(site))
		if postID != "" {
			return drv.DownloadPost(site, service, user, postID)
		}
		return drv.DownloadCollection(site, service, user, query, sess.Cfg.DownloadAll, offset)
	case strings.HasSuffix(host, "erome.com"):
		drv := erome.New(sess, sched, erome.NewClient())
		if erome.IsAlbumURL(rawURL) {
			return drv.DownloadAlbum(rawURL)
		}
		return drv.DownloadProfile(rawURL)
	case bunkr.HostPattern.MatchString(rawURL):
		return bunkr.New(sess, sched, bunkr.NewClient()).Download(rawURL)
	case strings.HasSuffix(host, "gofile.io"):
		return gofile.New(sess, sched, gofile.NewClient()).DownloadFolder(rawURL, password)
	case strings.HasSuffix(host, "pixeldrain.com"):
		return pixeldrain.New(sess, sched, pixeldrain.NewClient()).Download(rawURL)
	case strings.HasSuffix(host, "phica.eu") || strings.HasSuffix(host, "simpcity.su"):
		client, err := forum.NewClient("https://"+host+"/", cookiesFile)
		if err != nil {
			return err
		}
		drv := forum.New(sess, sched, client)
		if handlersFile != "" {
			if err := drv.LoadSelectors(handlersFile); err != nil {
				return err
			}
		}
		return drv.DownloadThread(rawURL)
	default:
		utils.PrintWarning(fmt.Sprintf("No downloader for host %s", host))
		return session.ErrUnsupportedURL
	}
}

func isCoomerHost(host string) bool {
	for _, h := range []string{"coomer.su", "kemono.su", "coomer.party", "kemono.party"} {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// parseCoomerURL splits a gallery URL into its API coordinates. Accepted
// shapes are /{service}/user/{id} and /{service}/user/{id}/post/{postID},
// with optional q (search) and o (offset) query parameters.
func parseCoomerURL(parsed *u.URL) (site, service, user, postID, query string, offset int, err error) {
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 3 || parts[1] != "user" {
		err = fmt.Errorf("unrecognized gallery path %q: %w", parsed.Path, session.ErrUnsupportedURL)
		return
	}
	site = parsed.Hostname()
	service = parts[0]
	user = parts[2]
	if len(parts) >= 5 && parts[3] == "post" {
		postID = parts[4]
	}
	query = parsed.Query().Get("q")
	if o := parsed.Query().Get("o"); o != "" {
		offset, _ = strconv.Atoi(o)
	}
	return
}
