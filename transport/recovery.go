package transport

import "time"

// Loss detection and congestion control constants (RFC 9002).
const (
	maxDatagramSize          = 1200
	initialCongestionWindow  = 10 * maxDatagramSize
	minimumCongestionWindow  = 2 * maxDatagramSize
	lossReorderingThreshold  = 3
	timeThresholdNumerator   = 9
	timeThresholdDenominator = 8
	granularity              = time.Millisecond
	initialRTT               = 333 * time.Millisecond
	persistentCongestionPTOs = 3
)

// sentPacket is an in-flight packet's bookkeeping entry, tracked until it
// is acknowledged, declared lost, or its packet-number space is dropped.
type sentPacket struct {
	pn           uint64
	size         uint64
	ackEliciting bool
	inFlight     bool
	timeSent     time.Time
	frames       []frame
}

// lossRecovery implements RFC 9002's loss detection (largest-acked +
// time/packet reordering thresholds) and a New Reno congestion controller,
// shared across the three packet-number spaces.
type lossRecovery struct {
	sent        [packetSpaceCount]map[uint64]*sentPacket
	ackedFrames [packetSpaceCount][]frame
	lost        [packetSpaceCount][]frame

	largestAcked    [packetSpaceCount]uint64
	hasLargestAcked [packetSpaceCount]bool

	minRTT      time.Duration
	latestRTT   time.Duration
	smoothedRTT time.Duration
	rttVar      time.Duration
	maxAckDelay time.Duration
	rttSampled  bool

	ptoCount int
	probes   int

	lossDetectionTimer time.Time

	bytesInFlight     uint64
	congestionWindow  uint64
	ssthresh          uint64
	recoveryStartTime time.Time

	// ECN verification state (§4.4): counts of ECT(0)/ECT(1)/CE the peer
	// has reported seeing from us, per space, plus how many packets we
	// have sent in that space in total (the upper bound those counts must
	// respect). ecnDisabled latches permanently once the peer's reports
	// go inconsistent, per RFC 9000 §13.4.2.
	sentCount   [packetSpaceCount]uint64
	peerECN     [packetSpaceCount]ecnCounts
	ecnDisabled bool
}

func (r *lossRecovery) init(now time.Time) {
	for i := range r.sent {
		r.sent[i] = make(map[uint64]*sentPacket)
	}
	r.smoothedRTT = initialRTT
	r.rttVar = initialRTT / 2
	r.congestionWindow = initialCongestionWindow
	r.ssthresh = ^uint64(0)
}

func (r *lossRecovery) onPacketSent(op *outgoingPacket, space packetSpace) {
	sp := &sentPacket{
		pn:           op.pn,
		size:         op.size,
		ackEliciting: op.ackEliciting,
		inFlight:     op.ackEliciting,
		timeSent:     op.timeSent,
		frames:       op.frames,
	}
	r.sent[space][op.pn] = sp
	r.sentCount[space]++
	if sp.inFlight {
		r.bytesInFlight += sp.size
	}
	r.setLossDetectionTimer(op.timeSent)
}

// onAckReceived processes a newly-received ACK: retires acknowledged
// packets (handing their frames to drainAcked), samples RTT from the
// largest newly-acked packet, runs loss detection, and advances the
// congestion window.
func (r *lossRecovery) onAckReceived(acked *rangeSet, ackDelay time.Duration, space packetSpace, ecn *ecnCounts, now time.Time) {
	if acked.empty() {
		return
	}
	largest, _ := acked.largest()
	if !r.hasLargestAcked[space] || largest > r.largestAcked[space] {
		r.largestAcked[space] = largest
		r.hasLargestAcked[space] = true
	}
	var newlyAckedLargest *sentPacket
	for pn, sp := range r.sent[space] {
		if !acked.contains(pn) {
			continue
		}
		delete(r.sent[space], pn)
		r.ackedFrames[space] = append(r.ackedFrames[space], sp.frames...)
		if sp.inFlight {
			if r.bytesInFlight >= sp.size {
				r.bytesInFlight -= sp.size
			} else {
				r.bytesInFlight = 0
			}
			r.updateCongestionWindow(sp, now)
		}
		if pn == largest {
			newlyAckedLargest = sp
		}
	}
	if newlyAckedLargest != nil && newlyAckedLargest.ackEliciting {
		r.updateRTT(now.Sub(newlyAckedLargest.timeSent), ackDelay)
	}
	if ecn != nil && newlyAckedLargest != nil {
		r.processECN(space, ecn, newlyAckedLargest, now)
	}
	r.detectLostPackets(space, now)
	r.ptoCount = 0
	r.setLossDetectionTimer(now)
}

func (r *lossRecovery) updateRTT(sample, ackDelay time.Duration) {
	r.latestRTT = sample
	if !r.rttSampled {
		r.minRTT = sample
		r.smoothedRTT = sample
		r.rttVar = sample / 2
		r.rttSampled = true
		return
	}
	if sample < r.minRTT {
		r.minRTT = sample
	}
	adjusted := sample
	if adjusted-r.minRTT > ackDelay {
		adjusted -= ackDelay
	}
	diff := r.smoothedRTT - adjusted
	if diff < 0 {
		diff = -diff
	}
	r.rttVar = (r.rttVar*3 + diff) / 4
	r.smoothedRTT = (r.smoothedRTT*7 + adjusted) / 8
}

// updateCongestionWindow applies New Reno slow-start/congestion-avoidance
// growth for one newly-acked, previously-in-flight packet.
func (r *lossRecovery) updateCongestionWindow(sp *sentPacket, now time.Time) {
	if r.inCongestionRecovery(sp.timeSent) {
		return
	}
	if r.congestionWindow < r.ssthresh {
		r.congestionWindow += sp.size
	} else {
		r.congestionWindow += maxDatagramSize * sp.size / r.congestionWindow
	}
}

func (r *lossRecovery) inCongestionRecovery(sentTime time.Time) bool {
	return !r.recoveryStartTime.IsZero() && !sentTime.After(r.recoveryStartTime)
}

// processECN validates a peer-reported ECT(0)/ECT(1)/CE section against
// what it has previously reported for this space (§4.4). Counts must never
// decrease and must never exceed the number of packets we have ever sent
// in the space; either violation means the path or the peer is mangling
// the ECN signal, so ECN use is disabled for the rest of the connection.
// Otherwise, an increase in the CE count is itself a congestion signal,
// treated the same as a lost packet (§4.3).
func (r *lossRecovery) processECN(space packetSpace, ecn *ecnCounts, largest *sentPacket, now time.Time) {
	if r.ecnDisabled {
		return
	}
	prev := r.peerECN[space]
	if ecn.ect0 < prev.ect0 || ecn.ect1 < prev.ect1 || ecn.ce < prev.ce {
		r.ecnDisabled = true
		return
	}
	if ecn.ect0+ecn.ect1+ecn.ce > r.sentCount[space] {
		r.ecnDisabled = true
		return
	}
	if ecn.ce > prev.ce {
		r.onCongestionEvent(largest.timeSent, now)
	}
	r.peerECN[space] = *ecn
}

// onCongestionEvent reacts to a newly detected loss (or ECN signal) by
// halving the window once per recovery period, New Reno style.
func (r *lossRecovery) onCongestionEvent(sentTime, now time.Time) {
	if r.inCongestionRecovery(sentTime) {
		return
	}
	r.recoveryStartTime = now
	r.congestionWindow /= 2
	if r.congestionWindow < minimumCongestionWindow {
		r.congestionWindow = minimumCongestionWindow
	}
	r.ssthresh = r.congestionWindow
}

// detectLostPackets applies the packet- and time-reordering thresholds
// (RFC 9002 §6.1) to every unacked packet in space at or below the
// largest acknowledged packet number.
func (r *lossRecovery) detectLostPackets(space packetSpace, now time.Time) {
	if !r.hasLargestAcked[space] {
		return
	}
	rtt := r.smoothedRTT
	if r.latestRTT > rtt {
		rtt = r.latestRTT
	}
	lossDelay := rtt * timeThresholdNumerator / timeThresholdDenominator
	if lossDelay < granularity {
		lossDelay = granularity
	}
	lostSendTime := now.Add(-lossDelay)
	largest := r.largestAcked[space]
	var lostEarliest, lostLatest time.Time
	sawAckElicitingLoss := false
	for pn, sp := range r.sent[space] {
		if pn > largest {
			continue
		}
		if sp.timeSent.After(lostSendTime) && largest-pn < lossReorderingThreshold {
			continue
		}
		r.lost[space] = append(r.lost[space], sp.frames...)
		delete(r.sent[space], pn)
		if sp.inFlight {
			if r.bytesInFlight >= sp.size {
				r.bytesInFlight -= sp.size
			} else {
				r.bytesInFlight = 0
			}
			r.onCongestionEvent(sp.timeSent, now)
		}
		if sp.ackEliciting {
			sawAckElicitingLoss = true
			if lostEarliest.IsZero() || sp.timeSent.Before(lostEarliest) {
				lostEarliest = sp.timeSent
			}
			if sp.timeSent.After(lostLatest) {
				lostLatest = sp.timeSent
			}
		}
	}
	if sawAckElicitingLoss {
		r.detectPersistentCongestion(lostEarliest, lostLatest)
	}
}

// detectPersistentCongestion collapses the congestion window when every
// ack-eliciting packet sent across a sufficiently long span was just
// declared lost together (§4.4, RFC 9002 §7.6): an isolated reordering-driven
// loss doesn't span long enough to trip the threshold, but a whole flight
// going unacknowledged for multiple PTOs does.
func (r *lossRecovery) detectPersistentCongestion(earliest, latest time.Time) {
	if earliest.IsZero() || latest.IsZero() || !latest.After(earliest) {
		return
	}
	pcDuration := r.smoothedRTT + 4*r.rttVar
	if pcDuration < granularity {
		pcDuration = granularity
	}
	pcDuration += r.maxAckDelay
	pcDuration *= persistentCongestionPTOs
	if latest.Sub(earliest) < pcDuration {
		return
	}
	r.congestionWindow = minimumCongestionWindow
	r.ssthresh = minimumCongestionWindow
	r.recoveryStartTime = latest
}

func (r *lossRecovery) drainAcked(space packetSpace, fn func(frame)) {
	for _, f := range r.ackedFrames[space] {
		fn(f)
	}
	r.ackedFrames[space] = r.ackedFrames[space][:0]
}

func (r *lossRecovery) drainLost(space packetSpace, fn func(frame)) {
	for _, f := range r.lost[space] {
		fn(f)
	}
	r.lost[space] = r.lost[space][:0]
}

// dropUnackedData discards all in-flight bookkeeping for space, used when
// a packet-number space is retired (Initial/Handshake key discard).
func (r *lossRecovery) dropUnackedData(space packetSpace) {
	for _, sp := range r.sent[space] {
		if sp.inFlight {
			if r.bytesInFlight >= sp.size {
				r.bytesInFlight -= sp.size
			} else {
				r.bytesInFlight = 0
			}
		}
	}
	r.sent[space] = make(map[uint64]*sentPacket)
	r.ackedFrames[space] = nil
	r.lost[space] = nil
	r.hasLargestAcked[space] = false
}

// probeTimeout computes the current PTO duration (RFC 9002 §6.2.1),
// doubling with each consecutive unacknowledged probe.
func (r *lossRecovery) probeTimeout() time.Duration {
	pto := r.smoothedRTT + 4*r.rttVar
	if pto < granularity {
		pto = granularity
	}
	pto += r.maxAckDelay
	for i := 0; i < r.ptoCount; i++ {
		pto *= 2
	}
	return pto
}

// setLossDetectionTimer arms a single shared timer for the next PTO. This
// implementation does not separately track a distinct loss-time alarm per
// space (RFC 9002 §6.2's "time threshold loss detection" alarm); instead a
// fired PTO immediately re-runs loss detection across all spaces, which
// converges to the same outcome one RTT later at most. Documented as a
// simplification since header-protection-gated packet number recovery
// (needed for tight per-space scheduling) lives outside this package.
func (r *lossRecovery) setLossDetectionTimer(now time.Time) {
	if r.bytesInFlight == 0 {
		r.lossDetectionTimer = time.Time{}
		return
	}
	r.lossDetectionTimer = now.Add(r.probeTimeout())
}

func (r *lossRecovery) onLossDetectionTimeout(now time.Time) {
	if r.lossDetectionTimer.IsZero() || now.Before(r.lossDetectionTimer) {
		return
	}
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		r.detectLostPackets(space, now)
	}
	if r.bytesInFlight > 0 {
		r.ptoCount++
		r.probes += 2
	}
	r.setLossDetectionTimer(now)
}
