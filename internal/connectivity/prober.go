package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/logger"
)

// Prober derives connectivity from a health endpoint polled on a ticker.
// Any 2xx answer is online; errors, timeouts and other statuses are offline.
type Prober struct {
	*notifier
	url      string
	client   *http.Client
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func NewProber(url string, interval, timeout time.Duration, client *http.Client, log *slog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{
		notifier: newNotifier(false),
		url:      url,
		client:   client,
		interval: interval,
		timeout:  timeout,
		log:      logger.OrNop(log).With("component", "connectivity"),
	}
}

// Run probes immediately and then on every tick until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ticker.C:
			p.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one probe and reports its outcome.
func (p *Prober) Check(ctx context.Context) bool {
	online := p.probe(ctx)
	if p.report(online) {
		p.log.Info("connectivity changed", slog.Bool("online", online))
	}
	return online
}

func (p *Prober) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.url, nil)
	if err != nil {
		p.log.Error("invalid probe request", slog.Any("error", err))
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("probe failed", slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
