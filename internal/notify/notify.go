// Package notify delivers responder state-change events to an external
// webhook, debounced by an RFC 5882-style exponential flap-dampening
// model re-grounded here from "suppress withdrawing a route" to
// "suppress paging an operator". There is no published client for an
// arbitrary policy/audit endpoint, so delivery goes out over a plain
// HTTP POST instead of a generated RPC stub.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// DampeningConfig configures the penalty-based suppression applied before
// an event reaches the webhook.
type DampeningConfig struct {
	Enabled           bool
	SuppressThreshold float64
	ReuseThreshold    float64
	HalfLife          time.Duration
}

// DefaultDampeningConfig returns RFC 9384-style decay parameters scaled
// for an event stream of connection-state transitions rather than link
// flaps.
func DefaultDampeningConfig() DampeningConfig {
	return DampeningConfig{
		Enabled:           true,
		SuppressThreshold: 5,
		ReuseThreshold:    3,
		HalfLife:          10 * time.Second,
	}
}

// Event describes one connection or session state transition worth
// reporting to an external collaborator.
type Event struct {
	ConnectionID string    `json:"connection_id"`
	Kind         string    `json:"kind"`
	Detail       string    `json:"detail"`
	Time         time.Time `json:"time"`
}

type penalty struct {
	value      float64
	lastUpdate time.Time
	suppressed bool
}

// Notifier posts Events to a webhook URL, dampening bursts from a single
// connection so a flapping peer cannot flood the downstream collaborator.
type Notifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
	cfg    DampeningConfig

	mu       sync.Mutex
	penalties map[string]*penalty
	now      func() time.Time
}

// New constructs a Notifier that posts to url.
func New(url string, logger *slog.Logger, cfg DampeningConfig) *Notifier {
	return &Notifier{
		url:       url,
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
		cfg:       cfg,
		penalties: make(map[string]*penalty),
		now:       time.Now,
	}
}

// Notify delivers ev unless its connection is currently suppressed by the
// dampening policy. A suppressed event still updates the penalty so the
// connection can recover once it decays below ReuseThreshold.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if n.cfg.Enabled && n.shouldSuppress(ev.ConnectionID) {
		n.logger.Debug("notify: event suppressed by dampening", "connection_id", ev.ConnectionID, "kind", ev.Kind)
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// shouldSuppress applies an exponential-decay penalty per connection,
// keyed by connection id instead of peer address.
func (n *Notifier) shouldSuppress(connectionID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, ok := n.penalties[connectionID]
	if !ok {
		p = &penalty{lastUpdate: n.now()}
		n.penalties[connectionID] = p
	}

	elapsed := n.now().Sub(p.lastUpdate).Seconds()
	halfLife := n.cfg.HalfLife.Seconds()
	if halfLife > 0 {
		p.value *= math.Pow(0.5, elapsed/halfLife)
	}
	p.value++
	p.lastUpdate = n.now()

	if p.value >= n.cfg.SuppressThreshold {
		p.suppressed = true
	} else if p.value <= n.cfg.ReuseThreshold {
		p.suppressed = false
	}
	return p.suppressed
}
