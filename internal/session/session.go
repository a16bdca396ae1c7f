// Package session holds the shared state of one user-initiated download:
// counters, the seen-URL set, the cancel flag, and the callback surface the
// embedding layer observes. A Session is created per root URL and torn down
// when the crawl reaches a terminal state (done, cancelled, or error).
package session

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

var (
	ErrNoDownloadFolder = errors.New("no download folder configured")
	ErrUnsupportedURL   = errors.New("unrecognized or unsupported URL")
	ErrCancelled        = errors.New("download cancelled")
)

// ProgressEvent reports byte-level progress for a single file. Emitted on
// every received chunk; only the latest value per FileID is meaningful.
type ProgressEvent struct {
	FileID     string
	Path       string
	Downloaded int64
	Total      int64
	Speed      float64 // bytes per second
	ETA        time.Duration
}

// Callbacks is the capability surface exposed to the embedding layer (CLI
// display, tests). Implementations must tolerate calls from multiple
// goroutines.
type Callbacks interface {
	OnLog(message string)
	OnProgress(ev ProgressEvent)
	OnGlobalProgress(completed, total int)
	OnComplete()
}

// Task is one queued single-file transfer. Immutable once scheduled.
type Task struct {
	FileID  string
	URL     string
	Dest    string
	Size    int64 // expected size, 0 when unknown
	Referer string
}

// Config is the per-session bundle handed in by the caller.
type Config struct {
	DownloadFolder string
	MaxWorkers     int
	Filters        links.Filters
	DownloadAll    bool
}

const defaultNotifyInterval = 10 * time.Second

// Session is safe for concurrent use by the driver goroutine and all workers.
type Session struct {
	Cfg       Config
	cb        Callbacks
	startTime time.Time

	cancelled  atomic.Bool
	cancelOnce sync.Once
	onCancel   []func()
	cancelMu   sync.Mutex

	total     atomic.Int64
	completed atomic.Int64

	mu      sync.Mutex
	seen    map[string]bool
	skipped []string
	failed  []string

	logMu      sync.Mutex
	logBuf     []string
	notifyStop chan struct{}
	notifyWg   sync.WaitGroup
}

func New(cfg Config, cb Callbacks) *Session {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	s := &Session{
		Cfg:        cfg,
		cb:         cb,
		startTime:  time.Now(),
		seen:       make(map[string]bool),
		notifyStop: make(chan struct{}),
	}
	s.startNotifier(defaultNotifyInterval)
	return s
}

// NewWithNotifyInterval exists for tests that need a fast flush cycle.
func NewWithNotifyInterval(cfg Config, cb Callbacks, interval time.Duration) *Session {
	s := New(cfg, cb)
	close(s.notifyStop)
	s.notifyWg.Wait()
	s.notifyStop = make(chan struct{})
	s.startNotifier(interval)
	return s
}

// Workers log through here instead of calling the log callback directly; a
// single notifier goroutine flushes the buffer periodically so concurrent
// workers never interleave output.
func (s *Session) Log(message string) {
	log := utils.GetLogger("session")
	log.Info().Msg(message)
	s.logMu.Lock()
	s.logBuf = append(s.logBuf, message)
	s.logMu.Unlock()
}

func (s *Session) startNotifier(interval time.Duration) {
	s.notifyWg.Add(1)
	go func() {
		defer s.notifyWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.FlushLogs()
			case <-s.notifyStop:
				return
			}
		}
	}()
}

// FlushLogs delivers buffered log lines to the callback in one batch.
func (s *Session) FlushLogs() {
	s.logMu.Lock()
	if len(s.logBuf) == 0 {
		s.logMu.Unlock()
		return
	}
	batch := strings.Join(s.logBuf, "\n")
	s.logBuf = nil
	s.logMu.Unlock()
	if s.cb != nil {
		s.cb.OnLog(batch)
	}
}

// OnCancel registers a hook to run once when cancellation is requested.
// The lifecycle controller uses this to shut the worker pool down.
func (s *Session) OnCancel(fn func()) {
	s.cancelMu.Lock()
	s.onCancel = append(s.onCancel, fn)
	s.cancelMu.Unlock()
}

// RequestCancel sets the shared cancel flag. Idempotent; callable from any
// goroutine while transfers are in flight.
func (s *Session) RequestCancel() {
	s.cancelled.Store(true)
	s.cancelOnce.Do(func() {
		s.Log("Download cancelled by user")
		s.cancelMu.Lock()
		hooks := s.onCancel
		s.cancelMu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
}

func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// MarkSeen records a URL in the session-scoped dedup set and reports whether
// it was newly added.
func (s *Session) MarkSeen(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[rawURL] {
		return false
	}
	s.seen[rawURL] = true
	return true
}

func (s *Session) Seen(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[rawURL]
}

// AddTotal counts newly scheduled tasks.
func (s *Session) AddTotal(n int) {
	s.total.Add(int64(n))
}

func (s *Session) Progress(ev ProgressEvent) {
	if s.cb != nil {
		s.cb.OnProgress(ev)
	}
}

func (s *Session) globalProgress() {
	if s.cb != nil {
		s.cb.OnGlobalProgress(int(s.completed.Load()), int(s.total.Load()))
	}
}

// MarkCompleted resolves a task as successfully downloaded.
func (s *Session) MarkCompleted(path string) {
	s.completed.Add(1)
	s.globalProgress()
}

// MarkSkipped resolves a task as already present on disk.
func (s *Session) MarkSkipped(path string) {
	s.mu.Lock()
	s.skipped = append(s.skipped, path)
	s.mu.Unlock()
	s.globalProgress()
}

// MarkFailed resolves a task as failed after its retry budget was exhausted.
func (s *Session) MarkFailed(path string) {
	s.mu.Lock()
	s.failed = append(s.failed, path)
	s.mu.Unlock()
	s.globalProgress()
}

// Counts returns (completed, skipped, failed, total) as of this instant.
func (s *Session) Counts() (completed, skipped, failed, total int) {
	s.mu.Lock()
	skipped = len(s.skipped)
	failed = len(s.failed)
	s.mu.Unlock()
	return int(s.completed.Load()), skipped, failed, int(s.total.Load())
}

// FailedFiles returns a copy of the ordered failed list.
func (s *Session) FailedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failed...)
}

// SkippedFiles returns a copy of the ordered skipped list.
func (s *Session) SkippedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.skipped...)
}

func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// Summary describes the terminal state of a session.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Total     int
	Elapsed   time.Duration
	Cancelled bool
}

// Finish flushes buffered logs, stops the notifier, emits the end-of-session
// summary, and fires the completion callback. Safe to call exactly once after
// the crawl reaches a terminal state.
func (s *Session) Finish() Summary {
	completed, skipped, failed, total := s.Counts()
	sum := Summary{
		Completed: completed,
		Skipped:   skipped,
		Failed:    failed,
		Total:     total,
		Elapsed:   s.Elapsed().Round(time.Millisecond),
		Cancelled: s.Cancelled(),
	}
	state := "completed"
	if sum.Cancelled {
		state = "cancelled"
	} else if sum.Failed > 0 {
		state = "completed with errors"
	}
	log := utils.GetLogger("session")
	log.Info().
		Int("completed", sum.Completed).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Int("total", sum.Total).
		Dur("elapsed", sum.Elapsed).
		Msgf("Session %s", state)
	close(s.notifyStop)
	s.notifyWg.Wait()
	s.FlushLogs()
	if s.cb != nil {
		s.cb.OnComplete()
	}
	return sum
}
