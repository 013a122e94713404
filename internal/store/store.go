package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrNotFound covers both unknown and soft-deleted entities.
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed means the entity was modified after the
	// timestamp the caller last observed, or a concurrent writer won the
	// conditional write.
	ErrPreconditionFailed = errors.New("entity has been modified since the provided timestamp")
	// ErrConflict is a uniqueness violation on insert or update.
	ErrConflict = errors.New("duplicate entity already exists")
	// ErrNoFields is returned for an empty update patch.
	ErrNoFields = errors.New("no data to update")
)

// Cond is a WHERE fragment with `?` placeholders, renumbered to Postgres
// `$n` placeholders when the statement is assembled.
type Cond struct {
	Expr string
	Args []any
}

func renumber(expr string, n *int) string {
	var b strings.Builder
	for _, r := range expr {
		if r == '?' {
			b.WriteString("$" + strconv.Itoa(*n))
			*n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Patch is an ordered set of column assignments for a partial update.
type Patch struct {
	columns []string
	args    []any
}

func NewPatch() *Patch {
	return &Patch{}
}

func (p *Patch) Set(column string, value any) *Patch {
	p.columns = append(p.columns, column)
	p.args = append(p.args, value)
	return p
}

func (p *Patch) Empty() bool {
	return len(p.columns) == 0
}

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// Mapper describes how an entity type maps onto its table.
type Mapper[T any] struct {
	Table   string
	Columns []string
	Scan    func(row RowScanner) (T, error)
}

// Store implements the optimistic-concurrency persistence protocol once,
// generically, for every entity type with {id, updated_at, deleted_at}
// columns. All reads exclude soft-deleted rows.
type Store[T any] struct {
	db *sql.DB
	m  Mapper[T]
}

func New[T any](db *sql.DB, m Mapper[T]) *Store[T] {
	return &Store[T]{db: db, m: m}
}

func (s *Store[T]) selectList() string {
	return "SELECT " + strings.Join(s.m.Columns, ", ") + " FROM " + s.m.Table
}

func (s *Store[T]) whereID(id uuid.UUID, scope []Cond, n *int) (string, []any) {
	clause := fmt.Sprintf(" WHERE id = $%d AND deleted_at IS NULL", *n)
	*n++
	args := []any{id}
	for _, c := range scope {
		clause += " AND " + renumber(c.Expr, n)
		args = append(args, c.Args...)
	}
	return clause, args
}

// FindByID returns the entity or ErrNotFound. Scope conditions narrow the
// lookup, e.g. to one ledger.
func (s *Store[T]) FindByID(ctx context.Context, id uuid.UUID, scope ...Cond) (T, error) {
	var zero T
	n := 1
	where, args := s.whereID(id, scope, &n)
	entity, err := s.m.Scan(s.db.QueryRowContext(ctx, s.selectList()+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("find %s: %w", s.m.Table, err)
	}
	return entity, nil
}

// FindMany lists non-deleted entities matching every condition. orderBy is a
// trusted clause chosen by the caller, never user input. A non-positive
// limit means no limit.
func (s *Store[T]) FindMany(ctx context.Context, conds []Cond, orderBy string, skip, limit int) ([]T, error) {
	query := s.selectList() + " WHERE deleted_at IS NULL"
	n := 1
	var args []any
	for _, c := range conds {
		query += " AND " + renumber(c.Expr, &n)
		args = append(args, c.Args...)
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", n)
		n++
		args = append(args, limit)
	}
	if skip > 0 {
		query += fmt.Sprintf(" OFFSET $%d", n)
		n++
		args = append(args, skip)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.m.Table, err)
	}
	defer rows.Close()

	entities := []T{}
	for rows.Next() {
		entity, err := s.m.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.m.Table, err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// Count returns the number of non-deleted entities matching every condition.
func (s *Store[T]) Count(ctx context.Context, conds []Cond) (int, error) {
	query := "SELECT COUNT(*) FROM " + s.m.Table + " WHERE deleted_at IS NULL"
	n := 1
	var args []any
	for _, c := range conds {
		query += " AND " + renumber(c.Expr, &n)
		args = append(args, c.Args...)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.m.Table, err)
	}
	return count, nil
}

// Insert writes a new row and returns the re-read entity. A uniqueness
// violation surfaces as ErrConflict.
func (s *Store[T]) Insert(ctx context.Context, id uuid.UUID, columns []string, args []any) (T, error) {
	var zero T
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.m.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return zero, ErrConflict
		}
		return zero, fmt.Errorf("insert %s: %w", s.m.Table, err)
	}
	return s.FindByID(ctx, id)
}

// Update applies the patch and bumps updated_at under the optimistic
// concurrency protocol: a fast stale check against the current timestamp,
// then a conditional write keyed on id (and, when a precondition was given,
// the exact updated_at) so a concurrent writer between the read and the
// write is still caught.
func (s *Store[T]) Update(ctx context.Context, id uuid.UUID, scope []Cond, expected *time.Time, patch *Patch) (T, error) {
	var zero T
	if patch == nil || patch.Empty() {
		return zero, ErrNoFields
	}

	current, err := s.currentTimestamp(ctx, id, scope)
	if err != nil {
		return zero, err
	}
	if expected != nil && current.After(*expected) {
		return zero, ErrPreconditionFailed
	}

	assigns := make([]string, 0, len(patch.columns)+1)
	args := make([]any, 0, len(patch.args)+3)
	n := 1
	for i, column := range patch.columns {
		assigns = append(assigns, fmt.Sprintf("%s = $%d", column, n))
		args = append(args, patch.args[i])
		n++
	}
	assigns = append(assigns, fmt.Sprintf("updated_at = $%d", n))
	args = append(args, Now())
	n++

	query := fmt.Sprintf("UPDATE %s SET %s", s.m.Table, strings.Join(assigns, ", "))
	where, whereArgs := s.whereID(id, scope, &n)
	query += where
	args = append(args, whereArgs...)
	if expected != nil {
		query += fmt.Sprintf(" AND updated_at = $%d", n)
		args = append(args, *expected)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return zero, ErrConflict
		}
		return zero, fmt.Errorf("update %s: %w", s.m.Table, err)
	}
	matched, err := result.RowsAffected()
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", s.m.Table, err)
	}
	if matched == 0 {
		// Lost the race after the fast check passed: the row changed or
		// vanished between the read and the write.
		return zero, ErrPreconditionFailed
	}

	return s.FindByID(ctx, id, scope...)
}

// SoftDelete marks the entity deleted under the same precondition protocol
// as Update. The row is never physically removed.
func (s *Store[T]) SoftDelete(ctx context.Context, id uuid.UUID, scope []Cond, expected *time.Time) error {
	current, err := s.currentTimestamp(ctx, id, scope)
	if err != nil {
		return err
	}
	if expected != nil && current.After(*expected) {
		return ErrPreconditionFailed
	}

	n := 2
	query := fmt.Sprintf("UPDATE %s SET deleted_at = $1", s.m.Table)
	args := []any{Now()}
	where, whereArgs := s.whereID(id, scope, &n)
	query += where
	args = append(args, whereArgs...)
	if expected != nil {
		query += fmt.Sprintf(" AND updated_at = $%d", n)
		args = append(args, *expected)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.m.Table, err)
	}
	matched, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.m.Table, err)
	}
	if matched == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

func (s *Store[T]) currentTimestamp(ctx context.Context, id uuid.UUID, scope []Cond) (time.Time, error) {
	n := 1
	where, args := s.whereID(id, scope, &n)
	var current time.Time
	err := s.db.QueryRowContext(ctx, "SELECT updated_at FROM "+s.m.Table+where, args...).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("find %s: %w", s.m.Table, err)
	}
	return current, nil
}

// Now returns the current UTC time truncated to microseconds, the precision
// Postgres stores and the ETag encoding round-trips exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
