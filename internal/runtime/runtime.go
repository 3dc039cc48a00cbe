// Package runtime implements the cooperative task set: a single link
// task that owns the Target Service (and through it, the Session and
// Pin Driver), reached only via a bounded request channel, plus
// independent keepalive and auto-connect tasks that enqueue onto the
// same channel.
//
// A periodic ticker feeding a shared processor, same as the keepalive
// task below, composed with one object owning the single shared
// transport that every higher-level caller funnels through.
package runtime

import (
	"context"

	"github.com/airfrog/airfrog/internal/target"
	log "github.com/sirupsen/logrus"
)

// RequestQueueSize is the bounded capacity of the link task's request
// channel.
const RequestQueueSize = 32

// Request is one unit of work destined for the link task. Op runs with
// exclusive access to the Target Service; Reply is a one-shot channel
// the link task closes once Op has run (Op itself carries any result
// back to the submitter).
type Request struct {
	Op    func(*target.Service)
	Reply chan struct{}
}

// Runtime owns the Target Service and the request channel that
// serializes every SWD-facing operation onto a single goroutine (the
// link task).
type Runtime struct {
	svc   *target.Service
	reqCh chan Request
}

// New builds a Runtime around svc with a bounded request queue.
func New(svc *target.Service) *Runtime {
	return &Runtime{svc: svc, reqCh: make(chan Request, RequestQueueSize)}
}

// Service exposes the Target Service for tasks that only need to read
// state Service already serializes internally (Status is safe to call
// directly; mutating operations should go through Submit so they are
// strictly ordered with everything else on the channel).
func (r *Runtime) Service() *target.Service { return r.svc }

// Submit enqueues op and blocks until the link task has run it and
// closed the request's Reply channel. If ctx is canceled before the link task
// dequeues the request, the caller gives up waiting but the request --
// once delivered -- still runs to completion and its reply is discarded.
func (r *Runtime) Submit(ctx context.Context, op func(*target.Service)) {
	req := Request{Op: op, Reply: make(chan struct{})}
	select {
	case r.reqCh <- req:
	case <-ctx.Done():
		log.Debugf("[RUNTIME] request dropped before delivery: %v", ctx.Err())
		return
	}
	select {
	case <-req.Reply:
	case <-ctx.Done():
		log.Debugf("[RUNTIME] caller gave up waiting for reply: %v", ctx.Err())
	}
}

// RunLinkTask is the link task's body: the sole goroutine permitted to
// call into svc's mutating operations, serving requests FIFO until ctx is
// canceled.
func (r *Runtime) RunLinkTask(ctx context.Context) {
	log.Infof("[RUNTIME] link task started")
	for {
		select {
		case req := <-r.reqCh:
			req.Op(r.svc)
			close(req.Reply)
		case <-ctx.Done():
			log.Infof("[RUNTIME] link task stopping: %v", ctx.Err())
			return
		}
	}
}
