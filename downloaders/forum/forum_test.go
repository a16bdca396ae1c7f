package forum_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killerciao/CoomerDLEnhanced/downloaders/forum"
	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/naming"
	"github.com/killerciao/CoomerDLEnhanced/internal/scheduler"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/internal/transfer"
)

type nopCallbacks struct{}

func (nopCallbacks) OnLog(string)                     {}
func (nopCallbacks) OnProgress(session.ProgressEvent) {}
func (nopCallbacks) OnGlobalProgress(int, int)        {}
func (nopCallbacks) OnComplete()                      {}

func threadServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/threads/trip.1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<h1 class="p-title-value">Road Trip</h1>
<a class="file-preview" href="/files/a.jpg">a</a>
<a class="js-lbImage" href="/files/b.mp4">b</a>
<a class="pageNav-jump--next" href="/threads/trip.1/page-2">Next</a>
</body></html>`)
	})
	mux.HandleFunc("/threads/trip.1/page-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<h1 class="p-title-value">Road Trip</h1>
<a class="file-preview" href="/files/a.jpg">a repeated</a>
<a class="file-preview" href="/files/c.png">c</a>
</body></html>`)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content:" + r.URL.Path))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadThread(t *testing.T) {
	t.Parallel()

	srv := threadServer(t)
	dir := t.TempDir()
	sess := session.New(session.Config{
		DownloadFolder: dir,
		MaxWorkers:     2,
		Filters:        links.Filters{Images: true, Videos: true, Archives: true},
	}, nopCallbacks{})
	sched := scheduler.New(sess)
	client := transfer.New(transfer.Options{RetryDelay: time.Millisecond})

	drv := forum.New(sess, sched, client)
	threadURL := srv.URL + "/threads/trip.1/"
	require.NoError(t, drv.DownloadThread(threadURL))
	sched.Drain()

	// a.jpg appears on both pages but downloads once.
	completed, _, failed, total := sess.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, completed)
	assert.Equal(t, 0, failed)

	folder := filepath.Join(dir, naming.StableDir(threadURL, "Road Trip"))
	for _, want := range []string{
		filepath.Join("img", naming.HashedFileName(srv.URL+"/files/a.jpg")),
		filepath.Join("videos", naming.HashedFileName(srv.URL+"/files/b.mp4")),
		filepath.Join("img", naming.HashedFileName(srv.URL+"/files/c.png")),
	} {
		_, err := os.Stat(filepath.Join(folder, want))
		assert.NoError(t, err, want)
	}
}

func TestDownloadThreadExternalDispatch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/threads/links.2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<h1 class="p-title-value">Link Dump</h1>
<a href="https://bunkr.su/a/legacy1">album</a>
<a href="https://gofile.io/d/AbC">folder</a>
<a class="pageNav-jump--next" href="/threads/links.2/page-2">Next</a>
</body></html>`)
	})
	mux.HandleFunc("/threads/links.2/page-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<h1 class="p-title-value">Link Dump</h1>
<a href="https://bunkr.ac/a/legacy1">album repeated, canonical form</a>
<a href="https://pixeldrain.com/u/xyz">file</a>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess := session.New(session.Config{
		DownloadFolder: t.TempDir(),
		Filters:        links.Filters{Images: true, Videos: true, Archives: true},
	}, nopCallbacks{})
	sched := scheduler.New(sess)
	drv := forum.New(sess, sched, transfer.New(transfer.Options{RetryDelay: time.Millisecond}))

	var dispatched []links.External
	drv.Dispatch = func(ext links.External) error {
		dispatched = append(dispatched, ext)
		return nil
	}

	require.NoError(t, drv.DownloadThread(srv.URL+"/threads/links.2/"))
	sched.Drain()

	// The legacy-domain link on page one and its canonical twin on page two
	// collapse to a single dispatch.
	require.Len(t, dispatched, 3)
	assert.Equal(t, links.External{Host: links.ExternalBunkr, URL: "https://bunkr.ac/a/legacy1"}, dispatched[0])
	assert.Equal(t, links.ExternalGofile, dispatched[1].Host)
	assert.Equal(t, links.ExternalPixeldrain, dispatched[2].Host)
}

func TestDownloadThreadPaginationCycle(t *testing.T) {
	t.Parallel()

	// Page two's next link points back to page one.
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/threads/loop.3/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		fmt.Fprint(w, `<html><body>
<h1 class="p-title-value">Loop</h1>
<a class="file-preview" href="/files/one.jpg">one</a>
<a class="pageNav-jump--next" href="/threads/loop.3/page-2">Next</a>
</body></html>`)
	})
	mux.HandleFunc("/threads/loop.3/page-2", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		fmt.Fprint(w, `<html><body>
<h1 class="p-title-value">Loop</h1>
<a class="file-preview" href="/files/two.jpg">two</a>
<a class="pageNav-jump--next" href="/threads/loop.3/">Next</a>
</body></html>`)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess := session.New(session.Config{
		DownloadFolder: t.TempDir(),
		Filters:        links.Filters{Images: true, Videos: true, Archives: true},
	}, nopCallbacks{})
	sched := scheduler.New(sess)
	drv := forum.New(sess, sched, transfer.New(transfer.Options{RetryDelay: time.Millisecond}))

	require.NoError(t, drv.DownloadThread(srv.URL+"/threads/loop.3/"))
	sched.Drain()

	assert.Equal(t, int32(2), pageHits.Load(), "each page is fetched exactly once")
	completed, _, _, total := sess.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, completed)
}

func TestDownloadThreadMissingTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>not a thread</p></body></html>`)
	}))
	defer srv.Close()

	sess := session.New(session.Config{DownloadFolder: t.TempDir()}, nopCallbacks{})
	sched := scheduler.New(sess)
	drv := forum.New(sess, sched, transfer.New(transfer.Options{RetryDelay: time.Millisecond}))
	assert.Error(t, drv.DownloadThread(srv.URL+"/threads/x.1/"))
}

func TestLoadCookies(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"xf_session","value":"abc"},{"name":"xf_user","value":"u1"}]`), 0644))

	cookies, err := forum.LoadCookies(path)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "xf_session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := forum.LoadCookies(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		t.Parallel()
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x"}`), 0644))
		_, err := forum.LoadCookies(bad)
		assert.Error(t, err)
	})
}

func TestLoadSelectors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "handlers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"thread_title":"h1.custom-title","attachments_selector":"a.dl"}`), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/x.jpg" {
			w.Write([]byte("x"))
			return
		}
		fmt.Fprint(w, `<html><body>
<h1 class="custom-title">Custom Board</h1>
<a class="dl" href="/files/x.jpg">x</a>
</body></html>`)
	}))
	defer srv.Close()

	sess := session.New(session.Config{
		DownloadFolder: t.TempDir(),
		Filters:        links.Filters{Images: true},
	}, nopCallbacks{})
	sched := scheduler.New(sess)
	drv := forum.New(sess, sched, transfer.New(transfer.Options{RetryDelay: time.Millisecond}))
	require.NoError(t, drv.LoadSelectors(path))

	require.NoError(t, drv.DownloadThread(srv.URL+"/threads/c.1/"))
	sched.Drain()

	completed, _, _, total := sess.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, completed)
}
