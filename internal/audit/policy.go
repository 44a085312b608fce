// Package audit produces the field-level change history for entity writes.
// Which types and properties are audited is policy: opt-in per entity type,
// opt-out per property.
package audit

import (
	"reflect"
	"strings"
	"sync"

	"github.com/kitedata/kite/internal/domain"
)

// Auditable lets an entity type declare which lifecycle actions are audited.
// Types that neither implement Auditable nor are registered explicitly are
// never audited.
type Auditable interface {
	AuditActions() domain.Action
}

// Policy is the resolved audit configuration for one entity type.
type Policy struct {
	Actions    domain.Action
	exclusions map[string]domain.Action
}

// Enabled reports whether the given action is audited for this type.
func (p *Policy) Enabled(action domain.Action) bool {
	return p.Actions.Has(action)
}

// Excluded reports whether a property opted out of auditing for an action.
func (p *Policy) Excluded(property string, action domain.Action) bool {
	return p.exclusions[property].Has(action)
}

// Resolver computes and memoizes per-type audit policy. The cache is never
// evicted; entity type sets are fixed at process start. Racing computation
// for the same type is acceptable, the inputs are pure.
type Resolver struct {
	mu         sync.Mutex
	registered map[reflect.Type]domain.Action

	cache sync.Map // reflect.Type -> *Policy
}

// NewResolver creates an empty policy resolver.
func NewResolver() *Resolver {
	return &Resolver{registered: make(map[reflect.Type]domain.Action)}
}

// Register enables auditing for prototype's type with the given actions.
// Call during composition, before the type is first written.
func (r *Resolver) Register(prototype any, actions domain.Action) {
	r.mu.Lock()
	r.registered[typeOf(prototype)] = actions
	r.mu.Unlock()
}

// Resolve returns the policy for an entity value's type.
func (r *Resolver) Resolve(v any) *Policy {
	t := typeOf(v)
	if cached, ok := r.cache.Load(t); ok {
		return cached.(*Policy)
	}

	p := r.compute(t)
	actual, _ := r.cache.LoadOrStore(t, p)
	return actual.(*Policy)
}

func (r *Resolver) compute(t reflect.Type) *Policy {
	p := &Policy{exclusions: make(map[string]domain.Action)}

	r.mu.Lock()
	actions, registered := r.registered[t]
	r.mu.Unlock()

	if registered {
		p.Actions = actions
	} else if auditable, ok := reflect.New(t).Interface().(Auditable); ok {
		p.Actions = auditable.AuditActions()
	}

	if t.Kind() != reflect.Struct {
		return p
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, ok := sf.Tag.Lookup("audit")
		if !ok {
			continue
		}
		if excluded := parseExclusions(tag); excluded != 0 {
			p.exclusions[sf.Name] = excluded
		}
	}
	return p
}

// parseExclusions reads a property's opt-out list: "-" excludes the property
// from every action, "-create,-update" from the named ones.
func parseExclusions(tag string) domain.Action {
	if tag == "-" {
		return domain.ActionAll
	}
	var excluded domain.Action
	for _, token := range strings.Split(tag, ",") {
		token = strings.TrimSpace(strings.TrimPrefix(token, "-"))
		switch token {
		case "create":
			excluded |= domain.ActionCreate
		case "update":
			excluded |= domain.ActionUpdate
		case "delete":
			excluded |= domain.ActionDelete
		}
	}
	return excluded
}

func typeOf(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
