package registry

import (
	"context"
	"time"
)

// Instance is what a gateway advertises about itself.
type Instance struct {
	ID          string    `json:"id"`
	HTTPAddress string    `json:"http_address"`
	GRPCAddress string    `json:"grpc_address"`
	Sessions    int       `json:"sessions"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Registry publishes the set of live gateway instances. Entries expire on
// their own when an instance stops heartbeating.
type Registry interface {
	Register(ctx context.Context, inst Instance) error
	Deregister(ctx context.Context) error
	List(ctx context.Context) ([]Instance, error)
	// StartHeartbeat refreshes the entry, updating the session count from
	// sessions on every beat.
	StartHeartbeat(ctx context.Context, sessions func() int) error
	StopHeartbeat()
	Close() error
}
