package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"

	"egm_trajectory/transport"
	"egm_trajectory/types"
)

// Controller produces a reference for each feedback sample.
type Controller interface {
	Callback(types.Inputs) types.Output
}

// Run calls controller directly once per period until ctx is done or, when cycles is positive,
// that many cycles have run. A zero period runs as fast as possible. It returns the number of
// cycles run.
func Run(ctx context.Context, robot *Robot, controller Controller, period time.Duration, cycles int) int {
	n := 0
	for cycles <= 0 || n < cycles {
		if ctx.Err() != nil {
			return n
		}
		out := controller.Callback(types.Inputs{Feedback: robot.Feedback(), FirstMessage: n == 0})
		robot.Apply(out)
		n++
		if period > 0 && !goutils.SelectContextOrWait(ctx, period) {
			return n
		}
	}
	return n
}

// Peer plays the robot controller's side of a transport link: it sends feedback each period
// and applies whatever reference comes back.
type Peer struct {
	robot  *Robot
	link   transport.Link
	period time.Duration
	logger logging.Logger

	seq    uint32
	missed atomic.Uint64
	cycles atomic.Uint64
}

// NewPeer returns a peer sending robot feedback over link every period.
func NewPeer(robot *Robot, link transport.Link, period time.Duration, logger logging.Logger) *Peer {
	return &Peer{robot: robot, link: link, period: period, logger: logger}
}

// Cycles returns how many references were applied.
func (p *Peer) Cycles() uint64 {
	return p.cycles.Load()
}

// Missed returns how many feedback frames went unanswered.
func (p *Peer) Missed() uint64 {
	return p.missed.Load()
}

// Run exchanges frames until ctx is done or the link fails. It returns nil on cancellation.
func (p *Peer) Run(ctx context.Context) error {
	for {
		if err := p.exchange(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if p.period > 0 && !goutils.SelectContextOrWait(ctx, p.period) {
			return nil
		}
	}
}

func (p *Peer) exchange(ctx context.Context) error {
	p.seq++
	data, err := transport.EncodeFeedback(transport.FeedbackFrame{Sequence: p.seq, Feedback: p.robot.Feedback()})
	if err != nil {
		return err
	}
	if err := p.link.Write(data); err != nil {
		return errors.Wrap(err, "failed to send feedback")
	}

	for {
		reply, err := p.link.Read(ctx)
		if errors.Is(err, transport.ErrTimeout) {
			p.missed.Add(1)
			p.logger.Debugf("No reference for frame %d", p.seq)
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read reference")
		}
		ref, err := transport.DecodeReference(reply)
		if err != nil {
			p.logger.Debugf("Dropping reference: %v", err)
			continue
		}
		if ref.Sequence != p.seq {
			// A late answer to an earlier frame.
			continue
		}
		p.robot.Apply(ref.Output)
		p.cycles.Add(1)
		return nil
	}
}
