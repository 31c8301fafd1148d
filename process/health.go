package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/kalikit/observability"
	"github.com/kbukum/kalikit/provider"
)

var _ observability.HealthChecker = (*Executor)(nil)

// CheckHealth reports the isolation backend. A strict executor that cannot
// enforce memory ceilings is down, since it refuses every invocation; any
// other gap is degraded.
func (e *Executor) CheckHealth(ctx context.Context) observability.Health {
	caps := e.isolator.Capabilities()
	h := observability.Health{
		Name:   "isolator",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"backend":     e.isolator.Name(),
			"enforcement": e.cfg.Isolation.Enforcement,
			"network":     strconv.FormatBool(caps.Network),
			"memory":      strconv.FormatBool(caps.Memory),
		},
	}

	var gaps []string
	if !caps.Network {
		gaps = append(gaps, "network")
	}
	if !caps.Memory {
		gaps = append(gaps, "memory")
	}
	switch {
	case !e.isolator.IsAvailable(ctx):
		h.Status = observability.HealthStatusDown
		h.Message = "isolation backend unavailable"
	case e.cfg.Isolation.Strict() && !caps.Memory:
		h.Status = observability.HealthStatusDown
		h.Message = "strict enforcement without memory isolation refuses every invocation"
	case len(gaps) > 0:
		h.Status = observability.HealthStatusDegraded
		h.Message = fmt.Sprintf("no %s isolation", strings.Join(gaps, " or "))
	}

	if hc, ok := e.isolator.(provider.HealthChecker); ok {
		ph := hc.Health(ctx)
		if ph.Status == provider.StatusUnavailable {
			h.Status = observability.HealthStatusDown
		}
		if ph.Message != "" && h.Message == "" {
			h.Message = ph.Message
		}
		for k, v := range ph.Details {
			h.Details[k] = fmt.Sprint(v)
		}
	}
	return h
}
