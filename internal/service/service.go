// Package service runs long-living process components together.
package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Service interface {
	Run(ctx context.Context) error
}

// Func adapts function to Service.
type Func func(ctx context.Context) error

func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}

// Manager manages a collection of services. First service returning an
// error cancels context of others.
type Manager struct {
	mu       sync.Mutex
	services []Service
	group    *errgroup.Group
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds services to Manager. Must be called before Run.
func (sm *Manager) Register(s ...Service) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.services = append(sm.services, s...)
}

// Run starts all registered services concurrently.
func (sm *Manager) Run(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	group, ctx := errgroup.WithContext(ctx)
	for _, s := range sm.services {
		s := s
		group.Go(func() error {
			return s.Run(ctx)
		})
	}
	sm.group = group
}

// Wait blocks until all services stopped and returns first error.
func (sm *Manager) Wait() error {
	sm.mu.Lock()
	group := sm.group
	sm.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}
