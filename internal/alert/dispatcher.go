package alert

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher fans events out to matching webhooks without blocking the caller.
type Dispatcher struct {
	configs []WebhookConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher returns nil if configs is empty; a nil *Dispatcher drops
// every event.
func NewDispatcher(configs []WebhookConfig, logger *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{configs: configs, logger: logger}
}

// Dispatch sends ev to every webhook subscribed to ev.Type.
func (d *Dispatcher) Dispatch(ev Event) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if !matches(cfg.Events, ev.Type) {
			continue
		}
		d.wg.Add(1)
		go func(cfg WebhookConfig) {
			defer d.wg.Done()
			if err := Send(context.Background(), cfg, ev); err != nil {
				d.logger.Warn("webhook delivery failed", "url", cfg.URL, "event", ev.Type, "error", err)
			}
		}(cfg)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func matches(events []string, typ string) bool {
	if len(events) == 0 {
		return typ == EventVerifyRequested
	}
	for _, e := range events {
		if e == typ || e == "*" {
			return true
		}
	}
	return false
}
