package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name the gateway reports under.
const ServiceName = "chat.gateway"

// State tracks whether the gateway may accept connections. It starts
// not ready and mirrors every change into the gRPC health server.
type State struct {
	ready  atomic.Bool
	reason atomic.Value
	grpc   *health.Server
}

func New() *State {
	s := &State{grpc: health.NewServer()}
	s.SetNotServing("starting")
	return s
}

// SetServing marks the gateway ready.
func (s *State) SetServing() {
	s.ready.Store(true)
	s.reason.Store("")
	s.grpc.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.grpc.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// SetNotServing marks the gateway not ready with a reason for operators.
func (s *State) SetNotServing(reason string) {
	s.ready.Store(false)
	s.reason.Store(reason)
	s.grpc.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpc.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Ready reports whether new connections may be accepted.
func (s *State) Ready() bool {
	return s.ready.Load()
}

// GRPC returns the health server to register on a gRPC server.
func (s *State) GRPC() *health.Server {
	return s.grpc
}

// LiveHandler always answers 200 while the process runs.
func (s *State) LiveHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ReadyHandler answers 200 when ready and 503 otherwise.
func (s *State) ReadyHandler(w http.ResponseWriter, _ *http.Request) {
	reason, _ := s.reason.Load().(string)
	status := http.StatusOK
	if !s.Ready() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"ready":  s.Ready(),
		"reason": reason,
	})
}
