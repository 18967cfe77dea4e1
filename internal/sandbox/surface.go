package sandbox

import (
	"errors"
	"sync"
)

// ErrSurfaceDetached is returned when delivering to a surface that no longer exists.
var ErrSurfaceDetached = errors.New("sandbox surface detached")

// Surface is the host-side handle of the sandbox: it forwards requests to the runtime
// and tracks the size the host gives it.
type Surface struct {
	target Target

	mu       sync.Mutex
	height   int
	detached bool
}

// NewSurface wraps a runtime target.
func NewSurface(target Target) *Surface {
	return &Surface{target: target}
}

// Deliver implements Target.
func (s *Surface) Deliver(data []byte, reply *Port) error {
	if !s.Exists() {
		return ErrSurfaceDetached
	}
	return s.target.Deliver(data, reply)
}

// Resize sets the surface height in pixels.
func (s *Surface) Resize(height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = height
}

// Height returns the last height set by Resize.
func (s *Surface) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Exists reports whether the surface is still attached.
func (s *Surface) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.detached
}

// Detach removes the surface. Later deliveries fail and resizes are ignored by callers
// that check Exists.
func (s *Surface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
}
