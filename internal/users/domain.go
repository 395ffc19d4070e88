package users

import "time"

// User is the domain record shared by every layer. Repository rows also
// carry a creation timestamp which is dropped on purpose when a row is
// mapped into this shape.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	LastName string `json:"last_name"`
	CPF      string `json:"cpf"`
}

// CreateUserInput groups the fields required to create a user. CreatedAt is
// optional; the repository fills it with the current time in the registry's
// home zone (UTC-3) when zero.
type CreateUserInput struct {
	Name      string
	Email     string
	LastName  string
	CPF       string
	CreatedAt time.Time
}

// UpdateUserInput groups the fields overwritten by an update. ID selects the
// row; the creation timestamp is never touched.
type UpdateUserInput struct {
	ID       string
	Name     string
	Email    string
	LastName string
	CPF      string
}

// UserFilter narrows listing queries to rows whose fields contain the given
// substrings, case-insensitively. Empty strings match every row, and the
// four filters are ANDed together.
type UserFilter struct {
	Name     string
	Email    string
	LastName string
	CPF      string
}

// SelectQuery extends UserFilter with ordering and pagination.
type SelectQuery struct {
	UserFilter

	// Column names the sort column and must be one of the user's scalar
	// fields. Defaults to "name" when empty.
	Column string
	// Order sorts ascending for "asc" and descending for any other value.
	Order string
	// Page is applied as a raw row offset, not a page index multiplied by
	// Limit. The wire contract depends on this, so it stays literal.
	Page int
	// Limit caps the number of returned rows. Defaults to 10 when not
	// positive.
	Limit int
}
