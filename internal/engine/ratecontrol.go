package engine

import "time"

// maxRateAdjust bounds the speed correction around 1.0. Clock drift
// between consumer devices is a few hundred ppm; a 5 percent window
// leaves room for the controller to catch up after a stall.
const maxRateAdjust = 0.05

// rateController turns the playback buffer fill level into a capture
// speed correction. The processing worker feeds it once per chunk; it
// averages over the adjust period and emits a proportional correction
// towards the target level.
type rateController struct {
	targetLevel float64 // frames
	period      time.Duration
	gain        float64

	sum     float64
	count   int
	lastOut time.Time
}

func newRateController(targetLevel int, adjustPeriodSeconds float64) *rateController {
	return &rateController{
		targetLevel: float64(targetLevel),
		period:      time.Duration(adjustPeriodSeconds * float64(time.Second)),
		gain:        0.0005,
		lastOut:     time.Now(),
	}
}

// sample records one buffer level observation. When a full adjust period
// has been observed it returns the new speed and true.
func (rc *rateController) sample(bufferLevel int, now time.Time) (speed float64, ok bool) {
	rc.sum += float64(bufferLevel)
	rc.count++
	if now.Sub(rc.lastOut) < rc.period || rc.count == 0 {
		return 0, false
	}
	avg := rc.sum / float64(rc.count)
	rc.sum = 0
	rc.count = 0
	rc.lastOut = now

	// Buffer above target means playback is consuming too slowly relative
	// to capture: slow capture down, and vice versa.
	speed = 1.0 + rc.gain*(rc.targetLevel-avg)
	if speed > 1.0+maxRateAdjust {
		speed = 1.0 + maxRateAdjust
	} else if speed < 1.0-maxRateAdjust {
		speed = 1.0 - maxRateAdjust
	}
	return speed, true
}
