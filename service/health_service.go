package service

import (
	"context"
	"time"

	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/interfaces"
)

const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

type HealthServiceImpl struct {
	chain     interfaces.Chain
	registry  interfaces.ValidationRegistry
	startedAt time.Time
	version   string
}

func NewHealthService(chain interfaces.Chain, registry interfaces.ValidationRegistry, version string) *HealthServiceImpl {
	return &HealthServiceImpl{chain: chain, registry: registry, startedAt: time.Now(), version: version}
}

func (hs *HealthServiceImpl) Check(ctx context.Context) (*interfaces.HealthStatus, error) {
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeInternal, ctx.Err(), "health check timeout")
	default:
	}

	st := &interfaces.HealthStatus{
		Status:        StatusNotServing,
		UptimeSeconds: int64(time.Since(hs.startedAt).Seconds()),
		Version:       hs.version,
	}
	if hs.registry != nil {
		st.PendingValidations = hs.registry.Len()
	}
	if hs.chain == nil || !hs.chain.Ready() {
		return st, nil
	}
	height, err := hs.chain.Height()
	if err != nil {
		return st, nil
	}
	st.Ready = true
	st.BlockHeight = height
	st.Status = StatusServing
	return st, nil
}
