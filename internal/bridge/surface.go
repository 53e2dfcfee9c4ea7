package bridge

import "sync"

// Surface is the shared host resource eval commands run against.
type Surface interface {
	Execute(code string) error
}

// SurfaceGuard serializes Execute against Teardown. Once Teardown returns no
// execution is in flight and none will start.
type SurfaceGuard struct {
	mu      sync.Mutex
	alive   bool
	surface Surface
}

func NewSurfaceGuard(surface Surface) *SurfaceGuard {
	return &SurfaceGuard{surface: surface, alive: surface != nil}
}

func (g *SurfaceGuard) Execute(code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return ErrSurfaceClosed
	}
	return g.surface.Execute(code)
}

func (g *SurfaceGuard) Alive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alive
}

func (g *SurfaceGuard) Teardown() {
	g.mu.Lock()
	g.alive = false
	g.mu.Unlock()
}
