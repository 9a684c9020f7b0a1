// Package healthhttp serves the JSON health endpoint on the public API.
// The plaintext /-/healthy and /-/ready probes live on the ops listener;
// this endpoint is richer and meant for the admin dashboard.
package healthhttp

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// ServiceCheck reports one dependency's reachability.
type ServiceCheck func(ctx context.Context) error

type payload struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Handler reports overall status plus a per-service breakdown. Degraded
// dependencies turn the response 503 so load balancers see it too.
func Handler(services map[string]ServiceCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := payload{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services:  map[string]string{},
		}

		status := http.StatusOK
		for name, check := range services {
			if err := check(r.Context()); err != nil {
				p.Services[name] = "unavailable"
				p.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			p.Services[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(p)
	}
}
