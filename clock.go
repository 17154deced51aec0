package escrowd

import "time"

// Clock is the time source collaborator. Timelock decisions are a pure
// comparison against the value it returns, there is no scheduling inside
// the engine.
type Clock interface {
	Now() UnixTime
}

// CurrentClock reads the wall clock.
type CurrentClock struct{}

var _ Clock = CurrentClock{}

func (CurrentClock) Now() UnixTime {
	return AsUnixTime(time.Now())
}
