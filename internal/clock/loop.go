package clock

// loop is the handle for one polling goroutine. A ScaledClock owns at most
// one current loop; cancel and the identity check in sampleFrom are always
// performed under the clock's mutex.
type loop struct {
	done   chan struct{}
	exited chan struct{}
}

func newLoop() *loop {
	return &loop{
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// cancel asks the goroutine to exit at its next wakeup. Safe to call repeatedly.
func (l *loop) cancel() {
	select {
	case <-l.done:
		// Already cancelled
	default:
		close(l.done)
	}
}

// run is the body of the polling goroutine.
func (c *ScaledClock) run(l *loop) {
	defer close(l.exited)

	// The first sample only establishes the baseline.
	if !c.sampleFrom(l) {
		return
	}

	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.Chan():
		}
		if !c.sampleFrom(l) {
			return
		}
	}
}
