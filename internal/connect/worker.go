package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DispatchResult reports what happened to a payload.
type DispatchResult struct {
	Route     string `json:"route"`
	Delivered bool   `json:"delivered"`
	NotBuilt  bool   `json:"notBuilt,omitempty"`
	Status    int    `json:"status,omitempty"`
}

// Dispatcher delivers payloads to route workers.
type Dispatcher struct {
	registry   *Registry
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDispatcher(registry *Registry, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:   registry,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "dispatch"),
	}
}

// Dispatch POSTs the payload to the route's worker. A not_built route is a
// successful no-op at this layer; the caller tells the sender by email.
// Exactly one delivery attempt is made.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) (DispatchResult, error) {
	route, ok := d.registry.Get(payload.Route)
	if !ok {
		return DispatchResult{Route: payload.Route}, fmt.Errorf("%w: %q", ErrRouteUnknown, payload.Route)
	}
	if route.Status == StatusNotBuilt {
		d.logger.Info("route not built", "route", route.Name)
		return DispatchResult{Route: route.Name, NotBuilt: true}, nil
	}
	if route.Target != TargetWorker {
		return DispatchResult{Route: route.Name}, fmt.Errorf("route %q is not a worker route", route.Name)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return DispatchResult{Route: route.Name}, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.Endpoint, bytes.NewReader(body))
	if err != nil {
		return DispatchResult{Route: route.Name}, fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return DispatchResult{Route: route.Name}, fmt.Errorf("worker %s: %w", route.Name, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Error("worker rejected payload", "route", route.Name, "status", resp.StatusCode, "body", string(respBody))
		return DispatchResult{Route: route.Name, Status: resp.StatusCode},
			fmt.Errorf("worker %s returned status %d", route.Name, resp.StatusCode)
	}
	d.logger.Info("payload delivered", "route", route.Name, "status", resp.StatusCode)
	return DispatchResult{Route: route.Name, Delivered: true, Status: resp.StatusCode}, nil
}
