// Package scheduler connects the worker pool to session state: it accepts
// discovered media links, applies content filters and session-wide dedup,
// and submits the surviving links as transfer tasks. All crawl drivers share
// one Scheduler per session, so pool and retry logic exist exactly once.
package scheduler

import (
	"github.com/google/uuid"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/pool"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/internal/transfer"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

type Scheduler struct {
	sess *session.Session
	pool *pool.Pool
}

// New builds a scheduler for the session and wires cancellation: the moment
// the session's cancel flag is set, the pool stops handing out queued tasks.
func New(sess *session.Session) *Scheduler {
	p := pool.New(sess.Cfg.MaxWorkers)
	sess.OnCancel(func() {
		p.Shutdown(false)
	})
	return &Scheduler{sess: sess, pool: p}
}

// Schedule turns one discovered media link into a queued transfer task.
// Returns false when the link is filtered out, already handled this session,
// or the session is shutting down. Accepted links are counted toward the
// session total before the task starts.
func (s *Scheduler) Schedule(m links.Media, dest, referer string, client *transfer.Client) bool {
	if !s.sess.Cfg.Filters.Allow(m.Kind) {
		return false
	}
	if s.sess.Cancelled() {
		return false
	}
	if !s.sess.MarkSeen(m.URL) {
		return false
	}
	task := session.Task{
		FileID:  uuid.NewString(),
		URL:     m.URL,
		Dest:    dest,
		Referer: referer,
	}
	s.sess.AddTotal(1)
	sess := s.sess
	if !s.pool.Submit(func() {
		client.Download(sess, task)
	}) {
		log := utils.GetLogger("scheduler")
		log.Debug().Str("url", m.URL).Msg("Pool rejected task, session shutting down")
		return false
	}
	return true
}

// Drain waits for every queued task to resolve. Call from the driver
// goroutine once discovery is finished.
func (s *Scheduler) Drain() {
	s.pool.Drain()
}

// Shutdown aborts queued-but-not-started tasks without waiting.
func (s *Scheduler) Shutdown() {
	s.pool.Shutdown(false)
}
