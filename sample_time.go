package egm_trajectory

import "egm_trajectory/motion"

// sampleTimeSmoothing weights a new measured cycle against the running estimate.
const sampleTimeSmoothing = 0.1

// maxSampleGap bounds the feedback time deltas accepted as a controller cycle; longer gaps
// are dropouts, not cycles.
const maxSampleGap = 0.5

// sampleTimeEstimator reports the controller cycle for the motion step, either as the
// configured value or as a moving average of feedback timestamp deltas.
type sampleTimeEstimator struct {
	measured bool
	fixed    float64

	estimate float64
	lastTime float64
	hasLast  bool
}

func newSampleTimeEstimator(cfg TrajectoryConfiguration) *sampleTimeEstimator {
	e := &sampleTimeEstimator{}
	e.configure(cfg)
	return e
}

func (e *sampleTimeEstimator) configure(cfg TrajectoryConfiguration) {
	e.measured = cfg.SampleTimePolicy == SampleTimeMeasured
	e.fixed = cfg.SampleTimeS
	if e.fixed < motion.LowestSampleTime {
		e.fixed = motion.LowestSampleTime
	}
	e.reset()
}

// reset drops the timestamp history at the start of a session.
func (e *sampleTimeEstimator) reset() {
	e.estimate = e.fixed
	e.hasLast = false
}

// update folds in the timestamp of a new feedback sample and returns the current estimate.
func (e *sampleTimeEstimator) update(feedbackTime float64) float64 {
	if !e.measured {
		return e.fixed
	}
	if e.hasLast {
		if dt := feedbackTime - e.lastTime; dt > 0 && dt <= maxSampleGap {
			e.estimate += sampleTimeSmoothing * (dt - e.estimate)
		}
	}
	e.lastTime = feedbackTime
	e.hasLast = true
	if e.estimate < motion.LowestSampleTime {
		e.estimate = motion.LowestSampleTime
	}
	return e.estimate
}
