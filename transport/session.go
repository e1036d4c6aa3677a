package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"egm_trajectory/types"
)

// Handler produces the reference for one feedback sample.
type Handler interface {
	Callback(types.Inputs) types.Output
}

// Options tune a Session.
type Options struct {
	// Deadline is the time budget between receiving feedback and sending the reference.
	// Zero disables overrun reporting.
	Deadline time.Duration
}

// Stats counts what a Session has seen.
type Stats struct {
	Sessions     uint64
	Frames       uint64
	DecodeErrors uint64
	Overruns     uint64
	Active       bool
	LastCycle    time.Duration
	MaxCycle     time.Duration
}

// Session pumps frames between a Link and a Handler. A session starts with the first frame
// after Run begins or after a read timeout; that frame is handed on with FirstMessage set.
type Session struct {
	link    Link
	handler Handler
	opts    Options
	logger  logging.Logger

	mu      sync.Mutex
	stats   Stats
	lastSeq uint32
}

// NewSession returns a session serving link with handler. Nothing is read until Run.
func NewSession(link Link, handler Handler, opts Options, logger logging.Logger) *Session {
	return &Session{link: link, handler: handler, opts: opts, logger: logger}
}

// Stats returns a copy of the counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run serves frames until ctx is done or the link fails. It returns nil on cancellation.
func (s *Session) Run(ctx context.Context) error {
	for {
		data, err := s.link.Read(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrTimeout):
			s.endSession()
			continue
		case err != nil:
			return errors.Wrap(err, "failed to read feedback")
		}

		if err := s.serve(data); err != nil {
			return err
		}
	}
}

func (s *Session) endSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.Active {
		s.logger.Infof("Session ended after %d frames without feedback", s.stats.Frames)
		s.stats.Active = false
	}
}

func (s *Session) serve(data []byte) error {
	start := time.Now()
	frame, err := DecodeFeedback(data)
	if err != nil {
		s.mu.Lock()
		s.stats.DecodeErrors++
		s.mu.Unlock()
		s.logger.Debugf("Dropping frame: %v", err)
		return nil
	}

	s.mu.Lock()
	first := !s.stats.Active
	if first {
		s.stats.Sessions++
		s.stats.Active = true
		s.logger.Infof("Session %d started in %s mode", s.stats.Sessions, frame.Feedback.Mode)
	} else if frame.Sequence != s.lastSeq+1 {
		s.logger.Debugf("Feedback sequence jumped from %d to %d", s.lastSeq, frame.Sequence)
	}
	s.lastSeq = frame.Sequence
	s.mu.Unlock()

	out := s.handler.Callback(types.Inputs{Feedback: frame.Feedback, FirstMessage: first})
	reply, err := EncodeReference(ReferenceFrame{Sequence: frame.Sequence, Output: out})
	if err != nil {
		return err
	}
	if err := s.link.Write(reply); err != nil {
		return errors.Wrap(err, "failed to send reference")
	}

	elapsed := time.Since(start)
	s.mu.Lock()
	s.stats.Frames++
	s.stats.LastCycle = elapsed
	if elapsed > s.stats.MaxCycle {
		s.stats.MaxCycle = elapsed
	}
	overrun := s.opts.Deadline > 0 && elapsed > s.opts.Deadline
	if overrun {
		s.stats.Overruns++
	}
	s.mu.Unlock()

	if overrun {
		s.logger.Warnf("Cycle %d took %s, over the %s deadline", frame.Sequence, elapsed, s.opts.Deadline)
	}
	return nil
}
