package scheduler_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/scheduler"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/internal/transfer"
)

type nopCallbacks struct{}

func (nopCallbacks) OnLog(string)                  {}
func (nopCallbacks) OnProgress(session.ProgressEvent) {}
func (nopCallbacks) OnGlobalProgress(int, int)     {}
func (nopCallbacks) OnComplete()                   {}

func TestSchedule(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	sess := session.New(session.Config{
		DownloadFolder: dir,
		MaxWorkers:     2,
		Filters:        links.Filters{Images: true},
	}, nopCallbacks{})
	sched := scheduler.New(sess)
	client := transfer.New(transfer.Options{RetryDelay: time.Millisecond})

	t.Run("filtered media is not counted", func(t *testing.T) {
		ok := sched.Schedule(links.Media{URL: srv.URL + "/v.mp4", Kind: links.KindVideo}, filepath.Join(dir, "v.mp4"), "", client)
		assert.False(t, ok)
		_, _, _, total := sess.Counts()
		assert.Equal(t, 0, total)
	})

	t.Run("accepted media downloads once", func(t *testing.T) {
		ok := sched.Schedule(links.Media{URL: srv.URL + "/p.jpg", Kind: links.KindImage}, filepath.Join(dir, "p.jpg"), "", client)
		assert.True(t, ok)
		// Same URL again is a duplicate.
		ok = sched.Schedule(links.Media{URL: srv.URL + "/p.jpg", Kind: links.KindImage}, filepath.Join(dir, "p.jpg"), "", client)
		assert.False(t, ok)

		sched.Drain()
		completed, _, _, total := sess.Counts()
		assert.Equal(t, 1, total)
		assert.Equal(t, 1, completed)
		data, err := os.ReadFile(filepath.Join(dir, "p.jpg"))
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), data)
	})
}

func TestScheduleAfterCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sess := session.New(session.Config{
		DownloadFolder: dir,
		Filters:        links.Filters{Images: true},
	}, nopCallbacks{})
	sched := scheduler.New(sess)
	client := transfer.New(transfer.Options{})

	sess.RequestCancel()
	ok := sched.Schedule(links.Media{URL: "https://example.com/p.jpg", Kind: links.KindImage}, filepath.Join(dir, "p.jpg"), "", client)
	assert.False(t, ok)
	_, _, _, total := sess.Counts()
	assert.Equal(t, 0, total)
}
