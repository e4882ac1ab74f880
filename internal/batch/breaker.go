package batch

// breakerThreshold is the run of identical failures that opens the circuit.
const breakerThreshold = 3

// breakerState counts consecutive identical failures within one batch.
type breakerState struct {
	consecutive   int
	lastSignature string
}

// record feeds one item outcome and reports whether the circuit is open.
// A success resets the count; a failure with a new message restarts it at 1.
func (b *breakerState) record(err error) bool {
	if err == nil {
		b.consecutive = 0
		b.lastSignature = ""
		return false
	}
	sig := err.Error()
	if b.consecutive > 0 && sig == b.lastSignature {
		b.consecutive++
	} else {
		b.consecutive = 1
		b.lastSignature = sig
	}
	return b.consecutive >= breakerThreshold
}
