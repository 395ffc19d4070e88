package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cadastro-api/cadastro-api/internal/platform/db"
	"github.com/cadastro-api/cadastro-api/internal/shared"
)

// Repository provides PostgreSQL backed persistence for users. Each write
// runs in its own transaction: begin, act, commit, with rollback deferred on
// every exit path. "No row found" is not uniform: GetUser treats it as a
// normal empty result while UpdateUser and DeleteUser surface it as an error.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// recordZone is the registry's home zone; creation timestamps default to it.
var recordZone = time.FixedZone("-03:00", -3*60*60)

const userColumns = "id, name, last_name, cpf, email"

// userSortColumns whitelists the scalar fields a listing may sort by.
var userSortColumns = map[string]struct{}{
	"id":         {},
	"name":       {},
	"last_name":  {},
	"cpf":        {},
	"email":      {},
	"created_at": {},
}

// CreateUser inserts a new user with a fresh server-side UUID and returns the
// domain record built from the inserted row.
func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().In(recordZone)
	}

	user := &User{
		ID:       uuid.NewString(),
		Name:     input.Name,
		Email:    input.Email,
		LastName: input.LastName,
		CPF:      input.CPF,
	}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, name, last_name, cpf, email, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			user.ID, user.Name, user.LastName, user.CPF, user.Email, createdAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("users: create: %w", err)
	}
	return user, nil
}

// GetUser returns the user with the given id, or nil when no row matches.
// Absence is a normal outcome here, not an error.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &user.LastName, &user.CPF, &user.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("users: get %s: %w", id, err)
	}
	return &user, nil
}

// UpdateUser loads the row by id, overwrites the four mutable fields and
// returns the updated record. Updating a nonexistent id is a failure, never
// a no-op.
func (r *Repository) UpdateUser(ctx context.Context, input UpdateUserInput) (*User, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT id FROM users WHERE id = $1 FOR UPDATE`, input.ID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE users SET name = $1, last_name = $2, cpf = $3, email = $4 WHERE id = $5`,
			input.Name, input.LastName, input.CPF, input.Email, input.ID,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("users: update %s: %w", input.ID, err)
	}
	return &User{
		ID:       input.ID,
		Name:     input.Name,
		Email:    input.Email,
		LastName: input.LastName,
		CPF:      input.CPF,
	}, nil
}

// DeleteUser removes the row by id and reports success. Deleting a
// nonexistent id returns an error and never reports true.
func (r *Repository) DeleteUser(ctx context.Context, id string) (bool, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT id FROM users WHERE id = $1 FOR UPDATE`, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("users: delete %s: %w", id, err)
	}
	return true, nil
}

// SelectUsers returns the rows matching the filter, ordered by the requested
// column and windowed by limit/offset.
func (r *Repository) SelectUsers(ctx context.Context, query SelectQuery) ([]User, error) {
	column, err := sortColumn(query.Column)
	if err != nil {
		return nil, fmt.Errorf("users: select: %w", err)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	sql := `SELECT ` + userColumns + ` FROM users ` + filterClause() +
		` ORDER BY ` + column + ` ` + orderKeyword(query.Order) +
		` LIMIT $5 OFFSET $6`

	rows, err := r.pool.Query(ctx, sql,
		query.Name, query.Email, query.LastName, query.CPF, limit, query.Page,
	)
	if err != nil {
		return nil, fmt.Errorf("users: select: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.LastName, &user.CPF, &user.Email); err != nil {
			return nil, fmt.Errorf("users: select scan: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: select rows: %w", err)
	}
	return result, nil
}

// CountUsers returns the total number of rows matching the filter,
// independent of any pagination window.
func (r *Repository) CountUsers(ctx context.Context, filter UserFilter) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM users `+filterClause(),
		filter.Name, filter.Email, filter.LastName, filter.CPF,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("users: count: %w", err)
	}
	return total, nil
}

// filterClause builds the shared WHERE clause for SelectUsers and CountUsers.
// An empty filter string always matches because every value contains the
// empty substring.
func filterClause() string {
	return `WHERE name ILIKE '%' || $1 || '%'
		AND email ILIKE '%' || $2 || '%'
		AND last_name ILIKE '%' || $3 || '%'
		AND cpf ILIKE '%' || $4 || '%'`
}

// sortColumn validates the requested sort column against the whitelist.
// An unknown column is an error, not a silent fallback.
func sortColumn(column string) (string, error) {
	if column == "" {
		return "name", nil
	}
	if _, ok := userSortColumns[column]; !ok {
		return "", fmt.Errorf("unknown sort column %q", column)
	}
	return column, nil
}

// orderKeyword maps the order parameter to a SQL direction; anything other
// than "asc" sorts descending.
func orderKeyword(order string) string {
	if order == "asc" {
		return "ASC"
	}
	return "DESC"
}

var _ RepositoryPort = (*Repository)(nil)
