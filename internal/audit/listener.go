package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
)

// Sink persists audit records. The flushing session implements it so audit
// rows are enlisted in the ongoing transaction, never a side channel.
type Sink interface {
	Append(ctx context.Context, rec *domain.AuditRecord) error
}

// InsertEvent describes a flushed entity insert. State and PropertyNames are
// positionally aligned.
type InsertEvent struct {
	Entity        any
	EntityName    string
	EntityID      string
	State         []any
	PropertyNames []string
}

// UpdateEvent describes a flushed entity update. OldState is the snapshot
// taken when the entity was loaded; Dirty lists the indices the session
// found changed (nil means every index is a candidate).
type UpdateEvent struct {
	Entity        any
	EntityName    string
	EntityID      string
	OldState      []any
	NewState      []any
	Dirty         []int
	PropertyNames []string
}

// DeleteEvent describes a flushed entity delete.
type DeleteEvent struct {
	Entity     any
	EntityName string
	EntityID   string
}

// Listener reacts to entity lifecycle events and emits audit records
// according to the resolved policy. It holds no state of its own.
type Listener struct {
	resolver *Resolver
	now      func() time.Time
}

// NewListener creates a listener backed by the given policy resolver.
func NewListener(resolver *Resolver) *Listener {
	return &Listener{resolver: resolver, now: time.Now}
}

// OnInsert emits one 'I' record per property not excluded from CREATE.
func (l *Listener) OnInsert(ctx context.Context, sink Sink, ev InsertEvent) error {
	policy := l.resolver.Resolve(ev.Entity)
	if !policy.Enabled(domain.ActionCreate) {
		return nil
	}

	for i, name := range ev.PropertyNames {
		if policy.Excluded(name, domain.ActionCreate) {
			continue
		}
		newValue := Stringify(ev.State[i])
		rec := l.record(ctx, domain.EntryInsert, ev.EntityName, ev.EntityID)
		rec.PropertyName = ptr(name)
		rec.NewValue = &newValue
		if err := sink.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// OnUpdate emits one 'U' record per dirty property whose stringified value
// actually changed and that is not excluded from UPDATE. A nil old state
// means the entity was written without being loaded first; that is a caller
// bug, not a data error.
func (l *Listener) OnUpdate(ctx context.Context, sink Sink, ev UpdateEvent) error {
	policy := l.resolver.Resolve(ev.Entity)
	if !policy.Enabled(domain.ActionUpdate) {
		return nil
	}

	if ev.OldState == nil {
		return dberr.Programmingf("auditing update of %s %q without a loaded previous state", ev.EntityName, ev.EntityID)
	}

	dirty := ev.Dirty
	if dirty == nil {
		dirty = make([]int, len(ev.PropertyNames))
		for i := range dirty {
			dirty[i] = i
		}
	}

	for _, i := range dirty {
		name := ev.PropertyNames[i]
		if policy.Excluded(name, domain.ActionUpdate) {
			continue
		}
		oldValue := Stringify(ev.OldState[i])
		newValue := Stringify(ev.NewState[i])
		// Values whose textual forms agree are not reported as changed.
		if oldValue == newValue {
			continue
		}
		rec := l.record(ctx, domain.EntryUpdate, ev.EntityName, ev.EntityID)
		rec.PropertyName = ptr(name)
		rec.OldValue = &oldValue
		rec.NewValue = &newValue
		if err := sink.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// OnDelete emits exactly one 'D' record with no property name. Per-property
// exclusions do not apply to deletes.
func (l *Listener) OnDelete(ctx context.Context, sink Sink, ev DeleteEvent) error {
	policy := l.resolver.Resolve(ev.Entity)
	if !policy.Enabled(domain.ActionDelete) {
		return nil
	}
	return sink.Append(ctx, l.record(ctx, domain.EntryDelete, ev.EntityName, ev.EntityID))
}

func (l *Listener) record(ctx context.Context, entry domain.EntryType, entityName, entityID string) *domain.AuditRecord {
	return &domain.AuditRecord{
		ID:         uuid.New().String(),
		EntryType:  entry,
		EntityName: entityName,
		EntityID:   entityID,
		CreatedBy:  UserFromContext(ctx),
		CreatedAt:  l.now().UTC(),
	}
}

func ptr(s string) *string { return &s }

type contextKey string

const userKey contextKey = "auditUser"

// DefaultUser is recorded when no user was attached to the context.
const DefaultUser = "system"

// WithUser attaches the acting user to the context for audit attribution.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the acting user, or DefaultUser.
func UserFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(userKey).(string); ok && user != "" {
		return user
	}
	return DefaultUser
}
