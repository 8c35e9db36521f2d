package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/health"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/relay"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type gatewayService struct {
	hub      *hub.Hub
	relay    *relay.Relay
	health   *health.State
	registry registry.Registry
	instance registry.Instance
}

func NewGatewayService(
	h *hub.Hub,
	r *relay.Relay,
	state *health.State,
	reg registry.Registry,
	instance registry.Instance,
) GatewayService {
	if reg == nil {
		reg = registry.NopRegistry{}
	}
	return &gatewayService{
		hub:      h,
		relay:    r,
		health:   state,
		registry: reg,
		instance: instance,
	}
}

func (s *gatewayService) Start(ctx context.Context) error {
	if err := s.relay.Start(ctx); err != nil {
		s.health.SetNotServing("event bus unavailable")
		return err
	}

	if err := s.registry.Register(ctx, s.instance); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("instance registry unavailable")
	} else {
		s.registry.StartHeartbeat(ctx, s.hub.SessionCount)
	}

	s.health.SetServing()
	return nil
}

func (s *gatewayService) Run(ctx context.Context) error {
	err := s.relay.Run(ctx)
	if !errors.Is(err, relay.ErrSubscriptionLost) {
		return err
	}

	// Sessions on this instance would silently stop receiving events, so
	// refuse new ones and push clients to reconnect elsewhere.
	s.health.SetNotServing("event bus lost")
	n, closeErr := s.hub.CloseAll(context.WithoutCancel(ctx), domain.CloseServiceReboot, domain.ReasonBusLost)
	l := log.L()
	l.Error().Err(err).Int("sessions", n).Msg("event bus lost, sessions evicted")
	if closeErr != nil {
		l.Warn().Err(closeErr).Msg("failed to evict sessions")
	}
	return fmt.Errorf("gateway stopped: %w", err)
}

func (s *gatewayService) Stop(ctx context.Context) error {
	s.health.SetNotServing("shutting down")
	s.registry.StopHeartbeat()
	if err := s.registry.Deregister(ctx); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("failed to deregister instance")
	}

	if _, err := s.hub.CloseAll(ctx, domain.CloseGoingAway, domain.ReasonShutdown); err != nil && !errors.Is(err, hub.ErrHubStopped) {
		return err
	}
	return nil
}
