package transport

import (
	"time"

	"golang.org/x/time/rate"
)

// pacer spreads a connection's congestion-window-gated transmissions over
// roughly one RTT instead of bursting the whole window back-to-back,
// reusing the token-bucket shape of nishisan-dev-n-backup's
// ThrottledWriter (internal/agent/throttle.go) over a byte budget instead
// of an io.Writer.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer() pacer {
	return pacer{limiter: rate.NewLimiter(rate.Inf, initialCongestionWindow)}
}

// retune recomputes the pacing rate from the current congestion window and
// RTT estimate: cwnd bytes should drain over about one smoothed RTT, per
// RFC 9002 appendix A.7's pacing guidance.
func (p *pacer) retune(cwnd uint64, smoothedRTT time.Duration) {
	if smoothedRTT <= 0 || cwnd == 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	bytesPerSecond := float64(cwnd) / smoothedRTT.Seconds()
	p.limiter.SetLimit(rate.Limit(bytesPerSecond))
	p.limiter.SetBurst(int(cwnd))
}

// allow reports whether n more bytes may be sent right now without
// exceeding the paced rate. It never blocks: the core's scheduling model
// (§5) is non-blocking, so a caller that gets false simply leaves the
// bytes queued for the next timer tick or outgoing Read call.
func (p *pacer) allow(now time.Time, n int) bool {
	return p.limiter.AllowN(now, n)
}
