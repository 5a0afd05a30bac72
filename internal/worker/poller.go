package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"plaque-dashboard/internal/client/backend"
)

type BackendSource interface {
	HealthCheck(ctx context.Context) (*backend.HealthResponse, error)
	FetchDashboardStats(ctx context.Context) backend.DashboardStats
}

type HealthStatus struct {
	Online    bool      `json:"online"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Poller refreshes backend health and dashboard stats on independent
// tickers. Each tick overwrites the previous result.
type Poller struct {
	source   BackendSource
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	health  *HealthStatus
	stats   *backend.DashboardStats
	statsAt time.Time
}

func NewPoller(source BackendSource, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		source:   source,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Start polls once immediately, then on every tick until ctx is done.
// The returned WaitGroup completes when both loops have exited.
func (p *Poller) Start(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.loop(ctx, "health", p.RefreshHealth)
	}()
	go func() {
		defer wg.Done()
		p.loop(ctx, "stats", p.RefreshStats)
	}()
	return &wg
}

func (p *Poller) loop(ctx context.Context, name string, refresh func(context.Context)) {
	refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Str("poller", name).Msg("poller stopped")
			return
		case <-ticker.C:
			refresh(ctx)
		}
	}
}

func (p *Poller) RefreshHealth(ctx context.Context) {
	status := HealthStatus{CheckedAt: p.now()}

	resp, err := p.source.HealthCheck(ctx)
	if err != nil {
		status.Error = err.Error()
		p.log.Warn().Err(err).Msg("backend health check failed")
	} else {
		status.Online = true
		status.Status = resp.Status
		status.Message = resp.Message
	}

	p.mu.Lock()
	p.health = &status
	p.mu.Unlock()
}

func (p *Poller) RefreshStats(ctx context.Context) {
	stats := p.source.FetchDashboardStats(ctx)

	p.mu.Lock()
	p.stats = &stats
	p.statsAt = p.now()
	p.mu.Unlock()

	p.log.Debug().Str("source", string(stats.Source)).Msg("dashboard stats refreshed")
}

// Health returns ok=false until the first check has finished.
func (p *Poller) Health() (HealthStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.health == nil {
		return HealthStatus{}, false
	}
	return *p.health, true
}

func (p *Poller) Stats() (backend.DashboardStats, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stats == nil {
		return backend.DashboardStats{}, time.Time{}, false
	}
	return *p.stats, p.statsAt, true
}
