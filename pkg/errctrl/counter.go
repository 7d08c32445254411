// Package errctrl implements the Error Handler & Diagnostic Counters of
// spec.md §4.9: threshold-accumulated DLL error counters that feed NMT
// transitions and mirror into the 0x1C0A-0x1C0F diagnostic OD entries
// pkg/od's BuildMandatory instantiates. Grounded on the teacher's
// pkg/emergency error-register accounting style, generalised from
// CANopen's EMCY bit-set model to DS 301's per-error CumulativeCnt/
// Threshold counter pair.
package errctrl

import "sync"

// Counter is one DLL error's CumulativeCnt/Threshold pair (spec.md §4.9):
// each observed error adds 8, each error-free cycle subtracts 1 down to a
// floor of 0. Crossing the threshold is edge-triggered — Observe only
// reports crossed on the call that pushes Cumulative strictly over
// Threshold, not on every call while already over.
type Counter struct {
	mu sync.Mutex

	threshold  uint32
	cumulative uint32
	wasOver    bool
}

// NewCounter builds a counter starting at 0 with the given threshold.
func NewCounter(threshold uint32) *Counter {
	return &Counter{threshold: threshold}
}

// Observe adds 8 to the cumulative count.
func (c *Counter) Observe() (crossed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cumulative += 8
	over := c.cumulative > c.threshold
	crossed = over && !c.wasOver
	c.wasOver = over
	return crossed
}

// Decay subtracts 1 for a cycle observed without the error.
func (c *Counter) Decay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cumulative > 0 {
		c.cumulative--
	}
	c.wasOver = c.cumulative > c.threshold
}

// Value returns the current cumulative count.
func (c *Counter) Value() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumulative
}

// Threshold returns the current threshold.
func (c *Counter) Threshold() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// SetThreshold installs a new OD-configured threshold (spec.md §4.9's
// Threshold sub-entry is ReadWrite), re-evaluating wasOver against it so a
// lowered threshold can retroactively report as already crossed on the
// next Observe/Decay.
func (c *Counter) SetThreshold(threshold uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = threshold
	c.wasOver = c.cumulative > c.threshold
}
