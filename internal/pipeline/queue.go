package pipeline

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/mail"
	"go.uber.org/zap"
)

// SubmitResult reports how a submission was admitted. Success means a
// processing slot was free; Queued means the email waits in the overflow
// queue. Nothing is ever dropped.
type SubmitResult struct {
	Success bool
	Queued  bool
}

type job struct {
	tenantID snowflake.ID
	msg      mail.IncomingEmail
}

// Submitter admits emails into the pipeline with a fixed number of
// concurrent processing slots and an unbounded FIFO overflow queue. A slot
// that frees up pulls the oldest queued email before accepting new work.
// Processing runs under the submitter's own context, never the caller's: a
// submission outlives the HTTP request that delivered it.
type Submitter struct {
	proc *Processor
	log  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	active   int
	capacity int
	overflow []job
	closed   bool
	wg       sync.WaitGroup
}

func NewSubmitter(proc *Processor, log *zap.Logger, capacity int) *Submitter {
	if capacity <= 0 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Submitter{
		proc:     proc,
		log:      log.Named("pipeline.submitter"),
		baseCtx:  ctx,
		cancel:   cancel,
		capacity: capacity,
	}
}

// Submit admits one email. The caller's context gates admission only;
// processing happens asynchronously under the submitter's own context, so the
// email survives the request ending. The result only says whether the email
// got a slot immediately or was queued behind others.
func (s *Submitter) Submit(ctx context.Context, tenantID snowflake.ID, msg mail.IncomingEmail) SubmitResult {
	if ctx.Err() != nil {
		return SubmitResult{}
	}
	j := job{tenantID: tenantID, msg: msg}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return SubmitResult{}
	}
	if s.active < s.capacity {
		s.active++
		s.wg.Add(1)
		s.mu.Unlock()
		go s.run(j)
		return SubmitResult{Success: true}
	}
	s.overflow = append(s.overflow, j)
	depth := len(s.overflow)
	s.mu.Unlock()

	s.proc.metrics.SetQueueDepth(depth)
	return SubmitResult{Queued: true}
}

// PendingLen reports the overflow queue length.
func (s *Submitter) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.overflow)
}

// Wait blocks until all admitted and queued emails have been processed.
func (s *Submitter) Wait() {
	s.wg.Wait()
}

// Close stops admitting new emails. Queued work still drains.
func (s *Submitter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Stop closes the submitter and cancels in-flight processing.
func (s *Submitter) Stop() {
	s.Close()
	s.cancel()
}

func (s *Submitter) run(j job) {
	defer s.wg.Done()

	if _, err := s.proc.ProcessEmail(s.baseCtx, j.tenantID, j.msg); err != nil {
		s.log.Error("email processing failed",
			zap.String("tenant_id", j.tenantID.String()),
			zap.String("message_id", j.msg.MessageID),
			zap.Error(err))
	}

	s.mu.Lock()
	if len(s.overflow) > 0 {
		next := s.overflow[0]
		s.overflow = s.overflow[1:]
		depth := len(s.overflow)
		s.wg.Add(1)
		s.mu.Unlock()
		s.proc.metrics.SetQueueDepth(depth)
		go s.run(next)
		return
	}
	s.active--
	s.mu.Unlock()
}
