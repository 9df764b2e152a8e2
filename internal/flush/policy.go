// Package flush implements the record-count flush policy shared by all encoders.
package flush

// DefaultThreshold is the number of records written between forced flushes.
const DefaultThreshold int64 = 100_000

// Flusher forces buffered bytes toward the peer.
type Flusher interface {
	Flush() error
}

// Policy configures flush cadence.
type Policy struct {
	Threshold int64
}

// NewPolicy creates a policy; thresholds <= 0 fall back to DefaultThreshold.
func NewPolicy(threshold int64) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Policy{Threshold: threshold}
}

// ShouldFlush reports whether a counter value has reached the threshold.
func (p Policy) ShouldFlush(count int64) bool {
	return count >= p.threshold()
}

func (p Policy) threshold() int64 {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}

// Counter tracks records written by one encoding job and flushes the sink
// every Threshold records. A Counter belongs to exactly one job.
type Counter struct {
	policy  Policy
	sink    Flusher
	pending int64
	total   int64
	flushes int64
}

// NewCounter binds the policy to the job's sink.
func (p Policy) NewCounter(sink Flusher) *Counter {
	return &Counter{policy: p, sink: sink}
}

// Record accounts for one written record. When the pending count reaches
// the threshold it flushes the sink and resets the count. It reports
// whether a flush happened.
func (c *Counter) Record() (bool, error) {
	c.pending++
	c.total++
	if !c.policy.ShouldFlush(c.pending) {
		return false, nil
	}
	c.pending = 0
	if err := c.sink.Flush(); err != nil {
		return false, err
	}
	c.flushes++
	return true, nil
}

// Total returns the number of records accounted for.
func (c *Counter) Total() int64 {
	return c.total
}

// Flushes returns the number of policy flushes issued.
func (c *Counter) Flushes() int64 {
	return c.flushes
}

// Pending returns the records written since the last policy flush.
func (c *Counter) Pending() int64 {
	return c.pending
}
