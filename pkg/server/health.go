package server

import (
	"context"
	"net/http"
	"time"
)

type serviceStatus struct {
	Healthy       bool    `json:"healthy"`
	ResponseTimeMs *int64 `json:"responseTimeMs,omitempty"`
	Error         string  `json:"error,omitempty"`
}

func checkedStatus(ctx context.Context, check func(context.Context) error) serviceStatus {
	start := time.Now()
	if err := check(ctx); err != nil {
		return serviceStatus{Healthy: false, Error: err.Error()}
	}
	elapsed := time.Since(start).Milliseconds()
	return serviceStatus{Healthy: true, ResponseTimeMs: &elapsed}
}

type healthServices struct {
	Database serviceStatus `json:"database"`
	RPC      serviceStatus `json:"rpc"`
	Indexer  serviceStatus `json:"indexer"`
	DA       serviceStatus `json:"da"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

// HandleHealth handles GET /health, running independent reachability
// checks against the database, every registered chain RPC, the indexer,
// and the data-availability layer.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	database := checkedStatus(ctx, h.client.Ping)

	rpc := checkedStatus(ctx, func(ctx context.Context) error {
		for _, tag := range h.chains.Tags() {
			gateway, err := h.chains.Get(tag)
			if err != nil {
				return err
			}
			if _, err := gateway.GetPaymentCount(ctx, [32]byte{}); err != nil {
				return err
			}
		}
		return nil
	})

	indexerStatus := checkedStatus(ctx, func(ctx context.Context) error {
		healthy, err := h.indexer.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !healthy {
			return errIndexerUnhealthy
		}
		return nil
	})

	daStatus := checkedStatus(ctx, func(ctx context.Context) error {
		healthy, err := h.da.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !healthy {
			return errDAUnhealthy
		}
		return nil
	})

	status := "healthy"
	if !(database.Healthy && rpc.Healthy && indexerStatus.Healthy && daStatus.Healthy) {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: healthServices{
			Database: database,
			RPC:      rpc,
			Indexer:  indexerStatus,
			DA:       daStatus,
		},
	})
}
