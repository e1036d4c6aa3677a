package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"egm_trajectory/types"
)

type recordingHandler struct {
	mu     sync.Mutex
	inputs []types.Inputs
	delay  time.Duration
}

func (h *recordingHandler) Callback(in types.Inputs) types.Output {
	time.Sleep(h.delay)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputs = append(h.inputs, in)
	return types.Output{Mode: in.Feedback.Mode, Robot: in.Feedback.Robot.Clone()}
}

func (h *recordingHandler) firstMessages() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []bool
	for _, in := range h.inputs {
		out = append(out, in.FirstMessage)
	}
	return out
}

func sendFeedback(t *testing.T, robot Link, seq uint32, joint float64) ReferenceFrame {
	t.Helper()
	data, err := EncodeFeedback(FeedbackFrame{
		Sequence: seq,
		Feedback: types.Feedback{
			Mode:  types.ModeJoint,
			Time:  float64(seq) * 0.004,
			Robot: types.RobotState{Joints: types.JointState{Position: types.Joints{joint}, Velocity: types.Joints{0}}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, robot.Write(data))

	reply, err := robot.Read(context.Background())
	require.NoError(t, err)
	ref, err := DecodeReference(reply)
	require.NoError(t, err)
	return ref
}

func startSession(t *testing.T, link Link, handler Handler, opts Options) (*Session, func()) {
	t.Helper()
	s := NewSession(link, handler, opts, logging.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return s, func() {
		cancel()
		assert.NoError(t, <-done)
	}
}

func TestSessionAnswersFeedback(t *testing.T) {
	robot, engine := NewPipe(100 * time.Millisecond)
	handler := &recordingHandler{}
	s, stop := startSession(t, engine, handler, Options{})

	for seq := uint32(1); seq <= 3; seq++ {
		ref := sendFeedback(t, robot, seq, float64(seq))
		assert.Equal(t, seq, ref.Sequence)
		assert.Equal(t, types.Joints{float64(seq)}, ref.Output.Robot.Joints.Position)
	}
	stop()

	assert.Equal(t, []bool{true, false, false}, handler.firstMessages())
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Sessions)
	assert.Equal(t, uint64(3), stats.Frames)
}

func TestSessionTimeoutStartsNewSession(t *testing.T) {
	robot, engine := NewPipe(30 * time.Millisecond)
	handler := &recordingHandler{}
	s, stop := startSession(t, engine, handler, Options{})

	sendFeedback(t, robot, 1, 0)
	sendFeedback(t, robot, 2, 0)
	require.Eventually(t, func() bool { return !s.Stats().Active }, time.Second, 5*time.Millisecond)
	sendFeedback(t, robot, 3, 0)
	stop()

	assert.Equal(t, []bool{true, false, true}, handler.firstMessages())
	assert.Equal(t, uint64(2), s.Stats().Sessions)
}

func TestSessionDropsGarbage(t *testing.T) {
	robot, engine := NewPipe(100 * time.Millisecond)
	handler := &recordingHandler{}
	s, stop := startSession(t, engine, handler, Options{})

	require.NoError(t, robot.Write([]byte("not json")))
	sendFeedback(t, robot, 1, 0)
	stop()

	assert.Equal(t, uint64(1), s.Stats().DecodeErrors)
	assert.Equal(t, []bool{true}, handler.firstMessages())
}

func TestSessionCountsOverruns(t *testing.T) {
	robot, engine := NewPipe(100 * time.Millisecond)
	handler := &recordingHandler{delay: 5 * time.Millisecond}
	s, stop := startSession(t, engine, handler, Options{Deadline: time.Millisecond})

	sendFeedback(t, robot, 1, 0)
	stop()

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Overruns)
	assert.GreaterOrEqual(t, stats.MaxCycle, 5*time.Millisecond)
}

func TestSessionReturnsLinkErrors(t *testing.T) {
	robot, engine := NewPipe(100 * time.Millisecond)
	s := NewSession(engine, &recordingHandler{}, Options{}, logging.NewTestLogger(t))
	engine.Close()
	robot.Close()
	assert.ErrorIs(t, s.Run(context.Background()), ErrClosed)
}

func TestUDPLinkRoundTrip(t *testing.T) {
	server, err := ListenUDP("127.0.0.1:0", 200*time.Millisecond)
	require.NoError(t, err)
	defer server.Close()

	client, err := DialUDP(server.LocalAddr().String(), 200*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()

	assert.Error(t, server.Write([]byte("early")), "no peer known yet")

	handler := &recordingHandler{}
	_, stop := startSession(t, server, handler, Options{})
	ref := sendFeedback(t, client, 7, 12.5)
	stop()

	assert.Equal(t, uint32(7), ref.Sequence)
	assert.Equal(t, types.Joints{12.5}, ref.Output.Robot.Joints.Position)

	_, err = client.Read(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}
