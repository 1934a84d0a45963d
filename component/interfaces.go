package component

import "context"

// Component is a piece of infrastructure with a lifecycle: a tracker
// backend, the engine, the HTTP server. A Registry starts components in
// registration order and stops them in reverse.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	// Stop releases resources. It is called once, even when Start failed.
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// HealthStatus is ordered: healthy < degraded < unhealthy.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

// Health is one component's health report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Overall is the worst status among results. No results count as healthy;
// an unknown status counts as unhealthy.
func Overall(results []Health) HealthStatus {
	worst := StatusHealthy
	for _, h := range results {
		switch r := h.Status.rank(); {
		case r == 2:
			return StatusUnhealthy
		case r > worst.rank():
			worst = h.Status
		}
	}
	return worst
}

// Description is what the startup summary prints for a component.
type Description struct {
	Name    string // display name; Name() when empty
	Type    string // e.g. "tracker", "server"
	Details string
	Port    int
}

// Describable components appear in the startup summary.
type Describable interface {
	Describe() Description
}

// Route is one HTTP route as listed in the startup summary.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider is implemented by components that serve HTTP routes.
type RouteProvider interface {
	Routes() []Route
}
