// ABOUTME: Clock offset and round-trip estimation against a console feed
// ABOUTME: Smooths NTP-style samples and grades the link from its RTT
package sync

import (
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// Samples slower than this are discarded
	maxRTT = 100_000

	// Offsets further than this from the estimate are treated as clock jumps
	maxResidual = 50_000

	goodRTT = 50_000

	lostAfter = 5 * time.Second

	smoothing = 0.1
)

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	case QualityLost:
		return "lost"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Estimator tracks the server clock relative to the local one.
// All timestamps are microseconds.
type Estimator struct {
	mu       sync.RWMutex
	offset   int64 // server - client
	rtt      int64
	quality  Quality
	lastSync time.Time
	samples  int

	now func() time.Time
}

// NewEstimator creates an estimator with no samples
func NewEstimator() *Estimator {
	return &Estimator{
		quality: QualityLost,
		now:     time.Now,
	}
}

// Observe folds in one exchange: t1 client send, t2 server receive,
// t3 server send, t4 client receive. It reports whether the sample was used.
func (e *Estimator) Observe(t1, t2, t3, t4 int64) bool {
	rtt, measured := calculateOffset(t1, t2, t3, t4)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rtt = rtt
	if rtt < 0 || rtt > maxRTT {
		log.Printf("Discarding sync sample: RTT %dμs", rtt)
		return false
	}

	if e.samples > 0 {
		residual := measured - e.offset
		if residual > maxResidual || residual < -maxResidual {
			log.Printf("Discarding sync sample: residual %dμs", residual)
			return false
		}
		e.offset += int64(smoothing * float64(residual))
	} else {
		e.offset = measured
	}

	e.samples++
	e.lastSync = e.now()
	if rtt < goodRTT {
		e.quality = QualityGood
	} else {
		e.quality = QualityDegraded
	}
	return true
}

// calculateOffset computes RTT and clock offset
func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)

	// Positive means the server clock is ahead
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return
}

// Stats returns the current estimate
func (e *Estimator) Stats() (offset, rtt int64, quality Quality) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.offset, e.rtt, e.quality
}

// CheckQuality marks the estimate lost when no sample arrived recently
func (e *Estimator) CheckQuality() Quality {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.samples == 0 || e.now().Sub(e.lastSync) > lostAfter {
		e.quality = QualityLost
	}
	return e.quality
}

// ToServer converts a local timestamp to the server clock
func (e *Estimator) ToServer(clientMicros int64) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return clientMicros + e.offset
}
