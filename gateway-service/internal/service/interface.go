package service

import "context"

// GatewayService runs the realtime side of one gateway instance.
type GatewayService interface {
	// Start establishes the bus subscriptions and marks the instance
	// ready. It fails if the bus cannot be reached.
	Start(ctx context.Context) error
	// Run blocks until ctx is done or the bus is lost. Losing the bus
	// evicts every session and returns a non-nil error.
	Run(ctx context.Context) error
	// Stop marks the instance not ready and closes every session.
	Stop(ctx context.Context) error
}
