package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"payflow/internal/domain/payment"
	payflow_errors "payflow/pkg/errors"
	"payflow/pkg/logger"
)

// Gateway is the external capability that actually moves money. The
// coordinator only consumes its boolean verdict; latency and timeouts are
// bounded by the caller's context.
type Gateway interface {
	Attempt(ctx context.Context, p *payment.Payment) (bool, error)
	CheckStatus(ctx context.Context, gatewayRef string) (string, error)
	Refund(ctx context.Context, p *payment.Payment, reason string) (bool, error)
}

// SimulatedGateway stands in for a real acquirer integration. It sleeps
// 100-500ms and approves at a configurable rate.
type SimulatedGateway struct {
	approvalRate float64
	log          *logger.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulatedGateway(approvalRate float64, log *logger.Logger) *SimulatedGateway {
	return &SimulatedGateway{
		approvalRate: approvalRate,
		log:          log,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *SimulatedGateway) Attempt(ctx context.Context, p *payment.Payment) (bool, error) {
	g.mu.Lock()
	latency := 100*time.Millisecond + time.Duration(g.rnd.Int63n(int64(400*time.Millisecond)))
	approved := g.rnd.Float64() < g.approvalRate
	g.mu.Unlock()

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
	}

	if approved {
		g.log.Infof("gateway approved payment %s", p.ID)
	} else {
		g.log.Warnf("gateway declined payment %s", p.ID)
	}
	return approved, nil
}

// CheckStatus would reconcile against the acquirer; there is no
// implementation behind it yet.
func (g *SimulatedGateway) CheckStatus(ctx context.Context, gatewayRef string) (string, error) {
	return "", payflow_errors.ErrNotImplemented
}

// Refund always reports success. It is a stub and nothing in the refund
// path depends on its verdict; the ledger transition is the source of
// truth.
func (g *SimulatedGateway) Refund(ctx context.Context, p *payment.Payment, reason string) (bool, error) {
	g.log.Infof("gateway refund stub for payment %s: %s", p.ID, reason)
	return true, nil
}
