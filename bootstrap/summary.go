package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/pipeflow/component"
)

// Summary renders the startup report of an App.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	pipelines       []string
}

// NewSummary creates a summary for the named service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackPipelines records the pipeline ids the process can serve.
func (s *Summary) TrackPipelines(ids []string) {
	s.pipelines = append(s.pipelines[:0], ids...)
}

// Write prints the summary to w. Infrastructure comes from Describable
// components, routes from RouteProviders and the health block is live.
func (s *Summary) Write(ctx context.Context, w io.Writer, registry *component.Registry) {
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry == nil {
		fmt.Fprintln(w)
		return
	}

	if descs := registry.Describe(); len(descs) > 0 {
		fmt.Fprintf(w, "\nInfrastructure\n")
		for i, d := range descs {
			details := d.Details
			if d.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s [%s] %s: %s\n", branch(i, len(descs)), d.Type, d.Name, details)
		}
	}

	if len(s.pipelines) > 0 {
		fmt.Fprintf(w, "\nPipelines (%d)\n", len(s.pipelines))
		for i, id := range s.pipelines {
			fmt.Fprintf(w, "   %s %s\n", branch(i, len(s.pipelines)), id)
		}
	}

	var routes []component.Route
	for _, c := range registry.All() {
		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}
	if len(routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s -> %s\n", branch(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	results := registry.HealthAll(ctx)
	if len(results) > 0 {
		healthy := 0
		fmt.Fprintf(w, "\nHealth\n")
		for i, h := range results {
			msg := ""
			if h.Message != "" {
				msg = " - " + h.Message
			}
			if h.Status == component.StatusHealthy {
				healthy++
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(results)), healthMark(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
		}
		fmt.Fprintf(w, "\n%d/%d components healthy\n", healthy, len(results))
	}
	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthMark(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
