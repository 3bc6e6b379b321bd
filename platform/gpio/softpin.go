package gpio

import "sync"

// SoftPin is an in-memory platform.OutputPin, used by kernel tests and by
// hosts without a real /dev/gpiochip device (no ecosystem mock-GPIO library
// appears anywhere in the retrieval pack, so this is hand-rolled — the one
// place in platform/ that isn't backed by a third-party dependency).
type SoftPin struct {
	mu   sync.Mutex
	high bool
	log  []bool
}

// NewSoftPin returns a SoftPin starting low.
func NewSoftPin() *SoftPin {
	return &SoftPin{}
}

func (p *SoftPin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = high
	p.log = append(p.log, high)
	return nil
}

// High reports the pin's current asserted state.
func (p *SoftPin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

// History returns every value Set has recorded, in call order — what
// scenario 5's duty-cycle test asserts against.
func (p *SoftPin) History() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bool, len(p.log))
	copy(out, p.log)
	return out
}

func (p *SoftPin) Close() error { return nil }
