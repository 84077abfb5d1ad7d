package credsvc

import (
	"context"
	"time"

	"github.com/codekids/credsvc/internal/limiters"
	"github.com/codekids/credsvc/internal/stores"
)

// Engine defines a public type used by credsvc APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config        Config
	identity      IdentityProvider
	profiles      *stores.Profiles
	adminRequests *stores.Requests
	selfRequests  *stores.Requests
	counters      *stores.Counters
	limiter       *limiters.RequestLimiter
	audit         *auditDispatcher
	metrics       *Metrics
	now           nowFunc
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// PendingRequests lists pending reset requests in the chosen workflow's
// collection, for administrative display. limit <= 0 means no limit.
func (e *Engine) PendingRequests(ctx context.Context, workflow Workflow, limit int) ([]ResetRequest, error) {
	store := e.requestStore(workflow)
	if store == nil {
		return nil, ErrEngineNotReady
	}
	return store.ListPending(ctx, limit)
}

func (e *Engine) requestStore(workflow Workflow) *stores.Requests {
	if e == nil {
		return nil
	}
	switch workflow {
	case WorkflowAdmin:
		return e.adminRequests
	case WorkflowSelf:
		return e.selfRequests
	default:
		return nil
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) timeNow() time.Time {
	if e == nil || e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	actorUID, targetUID, email string,
	opErr error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.timeNow(),
		EventType: eventType,
		ActorUID:  actorUID,
		TargetUID: targetUID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
