// Package clock supplies the time source used by services. Everything
// downstream works in UTC so billing due dates compare cleanly.
package clock

import (
	"sync/atomic"
	"time"
)

// Real reads the wall clock.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a manually advanced clock for tests. The instant is stored as
// unix nanoseconds so concurrent readers need no lock.
type Fake struct {
	nanos atomic.Int64
}

// NewFake returns a fake clock pinned to t.
func NewFake(t time.Time) *Fake {
	f := &Fake{}
	f.nanos.Store(t.UnixNano())
	return f
}

func (f *Fake) Now() time.Time {
	return time.Unix(0, f.nanos.Load()).UTC()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.nanos.Add(int64(d))
}
