package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/kitedata/kite/internal/audit"
	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
	"github.com/kitedata/kite/internal/entity"
	"github.com/kitedata/kite/internal/repository"
	"github.com/kitedata/kite/internal/translate"
)

// snapshotKey identifies one tracked entity within a session.
type snapshotKey struct {
	typ reflect.Type
	id  string
}

// Session is one unit of work. It tracks the loaded state of every entity it
// reads so updates can be diffed against the previous snapshot, and it acts
// as the audit sink for its own transaction.
type Session struct {
	tx        *sql.Tx
	factory   *Factory
	snapshots map[snapshotKey][]any
}

// Get loads the entity with the given id into dest (a struct pointer) and
// snapshots its state for later diffing. Returns repository.ErrNotFound when
// no row matches.
func (s *Session) Get(ctx context.Context, dest any, id any) error {
	m, err := entity.MetaOf(dest)
	if err != nil {
		return err
	}

	cols := append([]string{m.ID.Column}, m.Columns()...)
	if m.Version != nil {
		cols = append(cols, m.Version.Column)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), m.Table, m.ID.Column,
	)

	targets, err := m.ScanTargets(dest)
	if err != nil {
		return err
	}

	row := s.tx.QueryRowContext(ctx, rebind(s.factory.driver, query), id)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %v", repository.ErrNotFound, m.Name, id)
		}
		return s.translate(m, audit.Stringify(id), query, err)
	}

	s.snapshots[s.key(m, dest)] = m.State(dest)
	return nil
}

// Insert persists a new entity and audits its creation.
func (s *Session) Insert(ctx context.Context, e any) error {
	m, err := entity.MetaOf(e)
	if err != nil {
		return err
	}
	id := audit.Stringify(m.IDValue(e))

	cols := append([]string{m.ID.Column}, m.Columns()...)
	args := append([]any{m.IDValue(e)}, m.State(e)...)
	if m.Version != nil {
		version, _ := m.VersionValue(e)
		cols = append(cols, m.Version.Column)
		args = append(args, version)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		m.Table, strings.Join(cols, ", "), placeholders(len(cols)),
	)
	if _, err := s.exec(ctx, m, id, query, args...); err != nil {
		return err
	}

	if err := s.factory.listener.OnInsert(ctx, s, audit.InsertEvent{
		Entity:        e,
		EntityName:    m.Name,
		EntityID:      id,
		State:         m.State(e),
		PropertyNames: m.PropertyNames(),
	}); err != nil {
		return err
	}

	// The entity is now tracked; a follow-up update diffs against this state.
	s.snapshots[s.key(m, e)] = m.State(e)
	return nil
}

// Update flushes a modified entity. The entity must have been loaded through
// Get (or inserted) in this session; flushing an untracked audited entity is
// a programming error. Versioned entities are checked optimistically: a
// version mismatch means another transaction won, reported as
// StaleObjectError.
func (s *Session) Update(ctx context.Context, e any) error {
	m, err := entity.MetaOf(e)
	if err != nil {
		return err
	}
	id := audit.Stringify(m.IDValue(e))

	newState := m.State(e)
	oldState, tracked := s.snapshots[s.key(m, e)]
	var dirty []int
	if tracked {
		dirty = diff(oldState, newState)
	}

	var sets []string
	var args []any
	for _, col := range m.Columns() {
		sets = append(sets, col+" = ?")
	}
	args = append(args, newState...)

	query := fmt.Sprintf("UPDATE %s SET %s", m.Table, strings.Join(sets, ", "))
	if m.Version != nil {
		version, _ := m.VersionValue(e)
		query += fmt.Sprintf(", %s = ? WHERE %s = ? AND %s = ?", m.Version.Column, m.ID.Column, m.Version.Column)
		args = append(args, version+1, m.IDValue(e), version)
	} else {
		query += fmt.Sprintf(" WHERE %s = ?", m.ID.Column)
		args = append(args, m.IDValue(e))
	}

	res, err := s.exec(ctx, m, id, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if m.Version != nil {
			return &dberr.StaleObjectError{EntityName: m.Name, EntityID: id}
		}
		return fmt.Errorf("%w: %s %s", repository.ErrNotFound, m.Name, id)
	}

	ev := audit.UpdateEvent{
		Entity:        e,
		EntityName:    m.Name,
		EntityID:      id,
		NewState:      newState,
		PropertyNames: m.PropertyNames(),
	}
	if tracked {
		ev.OldState = oldState
		ev.Dirty = dirty
	}
	if err := s.factory.listener.OnUpdate(ctx, s, ev); err != nil {
		return err
	}

	if err := m.BumpVersion(e); err != nil {
		return err
	}
	s.snapshots[s.key(m, e)] = m.State(e)
	return nil
}

// Delete removes an entity and audits the deletion. Versioned entities are
// checked optimistically.
func (s *Session) Delete(ctx context.Context, e any) error {
	m, err := entity.MetaOf(e)
	if err != nil {
		return err
	}
	id := audit.Stringify(m.IDValue(e))

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", m.Table, m.ID.Column)
	args := []any{m.IDValue(e)}
	if m.Version != nil {
		version, _ := m.VersionValue(e)
		query += fmt.Sprintf(" AND %s = ?", m.Version.Column)
		args = append(args, version)
	}

	res, err := s.exec(ctx, m, id, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if m.Version != nil {
			return &dberr.StaleObjectError{EntityName: m.Name, EntityID: id}
		}
		return fmt.Errorf("%w: %s %s", repository.ErrNotFound, m.Name, id)
	}

	if err := s.factory.listener.OnDelete(ctx, s, audit.DeleteEvent{
		Entity:     e,
		EntityName: m.Name,
		EntityID:   id,
	}); err != nil {
		return err
	}

	delete(s.snapshots, s.key(m, e))
	return nil
}

// Append writes one audit record through the session's transaction,
// implementing audit.Sink. Audit rows commit or roll back with the data
// change that produced them.
func (s *Session) Append(ctx context.Context, rec *domain.AuditRecord) error {
	query := rebind(s.factory.driver, `
		INSERT INTO audit_log (
			id, entry_type, entity_name, entity_id, property_name,
			old_value, new_value, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.tx.ExecContext(ctx, query,
		rec.ID, string(rec.EntryType), rec.EntityName, rec.EntityID,
		rec.PropertyName, rec.OldValue, rec.NewValue,
		rec.CreatedBy, rec.CreatedAt,
	)
	if err != nil {
		return &dberr.SQLError{Message: "appending audit record: " + err.Error(), SQL: query, Err: err}
	}
	return nil
}

func (s *Session) exec(ctx context.Context, m *entity.Meta, id, query string, args ...any) (sql.Result, error) {
	bound := rebind(s.factory.driver, query)
	res, err := s.tx.ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, s.translate(m, id, bound, err)
	}
	return res, nil
}

func (s *Session) translate(m *entity.Meta, id, query string, err error) error {
	return s.factory.translator.Translate(translate.SQLContext{
		Err:        err,
		SQL:        query,
		EntityName: m.Name,
		EntityID:   id,
		Message:    err.Error(),
	})
}

func (s *Session) key(m *entity.Meta, e any) snapshotKey {
	return snapshotKey{typ: m.Type, id: audit.Stringify(m.IDValue(e))}
}

// diff returns the indices whose values differ between the two state vectors.
func diff(oldState, newState []any) []int {
	dirty := make([]int, 0, len(newState))
	for i := range newState {
		if i >= len(oldState) || !reflect.DeepEqual(oldState[i], newState[i]) {
			dirty = append(dirty, i)
		}
	}
	return dirty
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func rebind(driver, query string) string {
	return repository.Rebind(driver, query)
}
