// Package tasks threads tenant domain context through async task payloads.
// The publisher stamps a domain onto the outbound payload; the worker's
// pre-run hook pops it and drives the same settings state machine that HTTP
// requests use.
package tasks

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/openlearn/tenantd/pkg/errors"
	"github.com/openlearn/tenantd/pkg/logger"

	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/internal/tenancy"
)

// DomainKey is the payload key carrying the tenant domain from publisher to
// worker.
const DomainKey = "tenant_domain"

// RouteIDKey is the task argument read by the route-id strategy.
const RouteIDKey = "route_id"

// Strategy names accepted in the per-task configuration map.
const (
	StrategyCurrent = "current"
	StrategyRouteID = "route-id"
)

// Strategy determines the domain to stamp onto one outbound task payload.
type Strategy interface {
	Domain(args map[string]interface{}) (string, error)
}

// Handler stamps outbound task payloads and applies the settings state
// machine on the worker side.
type Handler struct {
	manager    *tenancy.Manager
	strategies map[string]Strategy
	perTask    map[string]string
	fallback   string
}

// NewHandler creates a task handler. perTask maps task names to strategy
// names; tasks without an entry use the current-tenant strategy. fallback is
// the domain stamped when no tenant is active at publish time.
func NewHandler(manager *tenancy.Manager, db *gorm.DB, perTask map[string]string, fallback string) *Handler {
	h := &Handler{
		manager:  manager,
		perTask:  perTask,
		fallback: fallback,
	}
	h.strategies = map[string]Strategy{
		StrategyCurrent: &currentTenantStrategy{manager: manager, fallback: fallback},
		StrategyRouteID: &routeIDStrategy{db: db},
	}
	return h
}

// Register adds or replaces a named strategy.
func (h *Handler) Register(name string, s Strategy) {
	h.strategies[name] = s
}

// StampPayload writes the tenant domain into an outbound task payload,
// using the strategy configured for the task name. Stamping failures leave
// the payload without a domain; the worker side then resets to baseline
// rather than running under a stale tenant.
func (h *Handler) StampPayload(taskName string, payload map[string]interface{}) error {
	strategyName := h.perTask[taskName]
	if strategyName == "" {
		strategyName = StrategyCurrent
	}
	strategy, ok := h.strategies[strategyName]
	if !ok {
		return fmt.Errorf("unknown task strategy %q for task %q", strategyName, taskName)
	}

	domain, err := strategy.Domain(payload)
	if err != nil {
		logger.WarnEvent().
			Err(err).
			Str("task", taskName).
			Str("strategy", strategyName).
			Msg("Could not determine tenant domain for task")
		return err
	}

	payload[DomainKey] = domain
	return nil
}

// BeginTask is the worker pre-run hook. It pops the stamped domain from the
// payload and runs the keep/reset/install decision, returning the snapshot
// the task should carry in its context.
func (h *Handler) BeginTask(payload map[string]interface{}) *tenancy.Snapshot {
	domain, _ := payload[DomainKey].(string)
	delete(payload, DomainKey)
	return h.manager.BeginTask(domain)
}

// EndTask is the worker post-run hook.
func (h *Handler) EndTask() {
	h.manager.End()
}

// currentTenantStrategy stamps the domain of the tenant active at publish
// time, falling back to the configured default domain.
type currentTenantStrategy struct {
	manager  *tenancy.Manager
	fallback string
}

func (s *currentTenantStrategy) Domain(map[string]interface{}) (string, error) {
	if domain := s.manager.CurrentDomain(); domain != "" {
		return domain, nil
	}
	return s.fallback, nil
}

// routeIDStrategy resolves the domain from a route row ID carried in the
// task arguments, for tasks published outside any tenant context but aimed
// at a specific site.
type routeIDStrategy struct {
	db *gorm.DB
}

func (s *routeIDStrategy) Domain(args map[string]interface{}) (string, error) {
	id, ok := routeID(args[RouteIDKey])
	if !ok {
		return "", fmt.Errorf("task args carry no usable %s: %w", RouteIDKey, apperrors.ErrRouteNotFound)
	}

	var route models.Route
	if err := s.db.First(&route, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("route %d: %w", id, apperrors.ErrRouteNotFound)
		}
		return "", fmt.Errorf("failed to load route %d: %w", id, err)
	}
	return route.Domain, nil
}

// routeID accepts the numeric shapes a decoded JSON payload can carry.
func routeID(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v > 0 {
			return uint(v), true
		}
	case float64:
		if v > 0 {
			return uint(v), true
		}
	}
	return 0, false
}
