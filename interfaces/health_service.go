package interfaces

import "context"

type HealthStatus struct {
	Status             string `json:"status"`
	Ready              bool   `json:"ready"`
	BlockHeight        uint64 `json:"blockHeight"`
	PendingValidations int    `json:"pendingValidations"`
	UptimeSeconds      int64  `json:"uptimeSeconds"`
	Version            string `json:"version"`
}

type HealthService interface {
	Check(ctx context.Context) (*HealthStatus, error)
}
