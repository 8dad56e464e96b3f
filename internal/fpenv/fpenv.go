// Package fpenv pins the floating-point environment while bucket boundaries
// are computed, so the same parameters produce bit-identical boundaries on
// every supported platform.
//
// On 386 the x87 control word is forced to 64-bit precision with truncating
// rounding for the duration of the scope. Everywhere else the hardware
// default already matches the reference environment and the scope is a
// no-op.
package fpenv

// Context holds the floating-point mode captured at acquisition.
type Context struct {
	saved    uint16
	restored bool
}

// Acquire forces the reference floating-point mode and captures the
// previous one. The caller must call Release on every exit path; Contexts
// may be nested, each Release restores exactly what its Acquire captured.
func Acquire() *Context {
	return acquire()
}

// Release restores the mode captured by Acquire. Safe to call more than
// once; only the first call has an effect.
func (c *Context) Release() {
	if c.restored {
		return
	}

	c.restored = true
	c.release()
}
