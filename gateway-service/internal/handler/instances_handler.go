package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// InstanceLister is the read side of the instance registry.
type InstanceLister interface {
	List(ctx context.Context) ([]registry.Instance, error)
}

// InstancesHandler lets operators see every live gateway and its session
// count.
type InstancesHandler struct {
	registry InstanceLister
}

func NewInstancesHandler(reg InstanceLister) *InstancesHandler {
	return &InstancesHandler{registry: reg}
}

type instancesResponse struct {
	Instances []registry.Instance `json:"instances"`
	Sessions  int                 `json:"sessions"`
}

func (h *InstancesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/instances", h.ListInstances).Methods(http.MethodGet)
}

func (h *InstancesHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.registry.List(r.Context())
	if err != nil {
		l := log.Ctx(r.Context())
		l.Error().Err(err).Msg("failed to list gateway instances")
		http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := instancesResponse{Instances: instances}
	if resp.Instances == nil {
		resp.Instances = []registry.Instance{}
	}
	for _, inst := range instances {
		resp.Sessions += inst.Sessions
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
