package services

import (
	"context"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"
)

// PeriodicRefreshService recomputes the preset routes on a fixed interval so
// they stay warm in the route cache
type PeriodicRefreshService struct {
	routes   *RouteService
	interval time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewPeriodicRefreshService creates a new periodic refresh service. The
// interval should be shorter than the cache TTL.
func NewPeriodicRefreshService(routes *RouteService, interval time.Duration) *PeriodicRefreshService {
	return &PeriodicRefreshService{
		routes:   routes,
		interval: interval,
	}
}

// StartPeriodicRefresh warms every preset immediately and then once per interval
func (p *PeriodicRefreshService) StartPeriodicRefresh(ctx context.Context) error {
	ctx = logging.EnsureLogger(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	p.running = true
	p.stopChan = make(chan struct{})

	logging.Infow(ctx, "Starting periodic preset refresh", "interval", p.interval)
	go p.refreshLoop(ctx, p.stopChan)

	return nil
}

// Stop stops the refresh loop
func (p *PeriodicRefreshService) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	p.running = false
	close(p.stopChan)
}

// IsRunning returns whether periodic refresh is active
func (p *PeriodicRefreshService) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PeriodicRefreshService) refreshLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Infow(ctx, "Periodic refresh stopping due to context cancellation")
			return
		case <-stop:
			logging.Infow(ctx, "Periodic refresh stopping due to stop signal")
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh recomputes every configured preset once, replacing its cache entry,
// and returns how many succeeded
func (p *PeriodicRefreshService) Refresh(ctx context.Context) int {
	ctx = logging.EnsureLogger(ctx)
	refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	warmed := 0
	for _, preset := range p.routes.presets().Presets {
		if err := p.routes.RefreshPreset(refreshCtx, preset.ID); err != nil {
			logging.Warnw(ctx, "Periodic refresh failed", "route_id", preset.ID, "error", err)
			continue
		}
		warmed++
	}
	logging.Debugw(ctx, "Periodic refresh completed", "warmed", warmed)
	return warmed
}
