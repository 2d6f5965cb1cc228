package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Preference keys.
const (
	KeyCurrentUser = "current_user"
	KeyCurrentBank = "current_bank"
)

// PrefsRepo stores small string preferences.
type PrefsRepo struct {
	db *sql.DB
}

// Get returns the value of key, or ErrNotFound.
func (r *PrefsRepo) Get(ctx context.Context, key string) (string, error) {
	query, args := builder().Select("value").
		From(entsql.Table("prefs")).
		Where(entsql.EQ("key", key)).
		Query()
	var v string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("pref %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query pref %q: %w", key, err)
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (r *PrefsRepo) Set(ctx context.Context, key, value string) error {
	query, args := builder().Insert("prefs").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UnixMilli()).
		OnConflict(entsql.ConflictColumns("key"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save pref %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *PrefsRepo) Delete(ctx context.Context, key string) error {
	query, args := builder().Delete("prefs").Where(entsql.EQ("key", key)).Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete pref %q: %w", key, err)
	}
	return nil
}

// CurrentUser returns the active user id, generating and storing a new
// anonymous id when none is set.
func (r *PrefsRepo) CurrentUser(ctx context.Context) (id string, created bool, err error) {
	id, err = r.Get(ctx, KeyCurrentUser)
	if err == nil && id != "" {
		return id, false, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", false, err
	}
	id = uuid.NewString()
	if err := r.Set(ctx, KeyCurrentUser, id); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Bank is a registered question bank directory.
type Bank struct {
	Name    string
	Path    string
	AddedAt time.Time
}

// ErrBankExists is returned when registering a name twice.
var ErrBankExists = errors.New("bank already registered")

// BankRepo is the registry of question bank directories.
type BankRepo struct {
	db *sql.DB
}

// Add registers path under name.
func (r *BankRepo) Add(ctx context.Context, name, path string) error {
	if _, err := r.Get(ctx, name); err == nil {
		return fmt.Errorf("%w: %q", ErrBankExists, name)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	query, args := builder().Insert("banks").
		Columns("name", "path", "added_at").
		Values(name, path, time.Now().UnixMilli()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save bank %q: %w", name, err)
	}
	return nil
}

// Get returns the bank registered under name, or ErrNotFound.
func (r *BankRepo) Get(ctx context.Context, name string) (*Bank, error) {
	query, args := builder().Select("name", "path", "added_at").
		From(entsql.Table("banks")).
		Where(entsql.EQ("name", name)).
		Query()
	var b Bank
	var added int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&b.Name, &b.Path, &added)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bank %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query bank %q: %w", name, err)
	}
	b.AddedAt = time.UnixMilli(added)
	return &b, nil
}

// List returns all registered banks ordered by name.
func (r *BankRepo) List(ctx context.Context) ([]Bank, error) {
	query, args := builder().Select("name", "path", "added_at").
		From(entsql.Table("banks")).
		OrderBy("name").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query banks: %w", err)
	}
	defer rows.Close()

	var banks []Bank
	for rows.Next() {
		var b Bank
		var added int64
		if err := rows.Scan(&b.Name, &b.Path, &added); err != nil {
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		b.AddedAt = time.UnixMilli(added)
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

// Remove unregisters name. The bank directory is left untouched.
func (r *BankRepo) Remove(ctx context.Context, name string) error {
	query, args := builder().Delete("banks").Where(entsql.EQ("name", name)).Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete bank %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bank %q: %w", name, ErrNotFound)
	}
	return nil
}
