// Package gateway holds the simulated payment provider and top-up fulfiller.
// Both sit behind ports interfaces so real integrations can replace them.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/rs/zerolog"
)

// Charge purposes.
const (
	PurposeDeposit = "deposit"
	PurposeOrder   = "order"
)

// ErrDeliveryUnavailable is a transient fulfilment failure; the task is retried.
var ErrDeliveryUnavailable = errors.New("top-up provider unavailable")

// SimulatorConfig tunes the simulated provider.
type SimulatorConfig struct {
	DepositSuccessRate float64
	OrderSuccessRate   float64
	Latency            time.Duration
}

// SimulatedGateway implements ports.PaymentGateway with a random verdict.
type SimulatedGateway struct {
	cfg   SimulatorConfig
	roll  func() float64
	clock func() time.Time
	log   zerolog.Logger
}

func NewSimulatedGateway(cfg SimulatorConfig, log zerolog.Logger) *SimulatedGateway {
	return &SimulatedGateway{cfg: cfg, roll: rand.Float64, clock: time.Now, log: log}
}

// Charge waits for the configured latency, then approves with the success
// rate of the request's purpose.
func (g *SimulatedGateway) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	if g.cfg.Latency > 0 {
		timer := time.NewTimer(g.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("charge %s: %w", req.Reference, ctx.Err())
		case <-timer.C:
		}
	}

	rate := g.cfg.OrderSuccessRate
	if req.Purpose == PurposeDeposit {
		rate = g.cfg.DepositSuccessRate
	}

	if g.roll() >= rate {
		g.log.Info().
			Str("reference", req.Reference).
			Str("purpose", req.Purpose).
			Str("amount", req.Amount.StringFixed(2)).
			Msg("simulated charge declined")
		return &ports.ChargeResult{Approved: false, Message: "Payment declined by provider"}, nil
	}

	return &ports.ChargeResult{
		Approved:      true,
		TransactionID: domain.NewReferenceID("PAY", g.clock()),
		Message:       "Payment processed successfully",
	}, nil
}

// SimulatedFulfiller implements ports.Fulfiller.
type SimulatedFulfiller struct {
	failureRate float64
	roll        func() float64
}

func NewSimulatedFulfiller(failureRate float64) *SimulatedFulfiller {
	return &SimulatedFulfiller{failureRate: failureRate, roll: rand.Float64}
}

func (f *SimulatedFulfiller) Deliver(_ context.Context, order *domain.Order, _ *domain.Product) (string, error) {
	if f.failureRate > 0 && f.roll() < f.failureRate {
		return "", ErrDeliveryUnavailable
	}
	return fmt.Sprintf("Delivered to player %s", order.GameID), nil
}
