package users

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cadastro-api/cadastro-api/internal/shared"
)

// RepositoryPort defines the persistence operations the use cases depend on.
type RepositoryPort interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, input UpdateUserInput) (*User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	SelectUsers(ctx context.Context, query SelectQuery) ([]User, error)
	CountUsers(ctx context.Context, filter UserFilter) (int, error)
}

// FailureRecorder counts use case failures for observability.
type FailureRecorder interface {
	RecordFailure(operation, kind string)
}

// Response is the uniform use case envelope. Every failure, whatever its
// cause, collapses to {success:false}; callers cannot distinguish a missing
// row from a constraint violation or an unreachable store. The internal
// failure kind is logged and counted but never serialized.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Total   *int `json:"total,omitempty"`
}

// Service orchestrates the user use cases. Nothing escapes a use case as an
// error: each operation settles into exactly one success or failure envelope.
type Service struct {
	repo    RepositoryPort
	logger  *slog.Logger
	metrics FailureRecorder
}

// NewService builds a Service instance. metrics may be nil.
func NewService(repo RepositoryPort, logger *slog.Logger, metrics FailureRecorder) *Service {
	return &Service{repo: repo, logger: logger, metrics: metrics}
}

// CreateUserParams is the parameter set for CreateUser.
type CreateUserParams struct {
	Name     string
	Email    string
	LastName string
	CPF      string
}

// GetUserParams is the parameter set for GetUser.
type GetUserParams struct {
	ID string
}

// UpdateUserParams is the parameter set for UpdateUser.
type UpdateUserParams struct {
	ID       string
	Name     string
	Email    string
	LastName string
	CPF      string
}

// DeleteUserParams is the parameter set for DeleteUser.
type DeleteUserParams struct {
	ID string
}

// ListUsersParams is the parameter set for ListUsers. Zero values fall back
// to column "name", ascending order, offset 0 and limit 10.
type ListUsersParams struct {
	Name     string
	Email    string
	LastName string
	CPF      string
	Column   string
	Order    string
	Page     int
	Limit    int
}

// CreateUser stores a new user and returns it, generated id included.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) Response {
	record, err := s.repo.CreateUser(ctx, CreateUserInput{
		Name:     params.Name,
		Email:    params.Email,
		LastName: params.LastName,
		CPF:      params.CPF,
	})
	if err != nil {
		return s.fail(ctx, "create_user", err, nil)
	}
	return Response{Success: true, Data: record}
}

// GetUser fetches a user by id. A missing id settles as a failure envelope,
// since there is no record to render.
func (s *Service) GetUser(ctx context.Context, params GetUserParams) Response {
	record, err := s.repo.GetUser(ctx, params.ID)
	if err != nil {
		return s.fail(ctx, "get_user", err, nil)
	}
	if record == nil {
		return s.fail(ctx, "get_user", shared.ErrNotFound, nil)
	}
	return Response{Success: true, Data: record}
}

// UpdateUser overwrites the mutable fields of an existing user. A missing id
// settles as a failure, not a no-op.
func (s *Service) UpdateUser(ctx context.Context, params UpdateUserParams) Response {
	record, err := s.repo.UpdateUser(ctx, UpdateUserInput{
		ID:       params.ID,
		Name:     params.Name,
		Email:    params.Email,
		LastName: params.LastName,
		CPF:      params.CPF,
	})
	if err != nil {
		return s.fail(ctx, "update_user", err, nil)
	}
	return Response{Success: true, Data: record}
}

// DeleteUser reads the record first so the response can carry the
// pre-deletion snapshot, then deletes it.
func (s *Service) DeleteUser(ctx context.Context, params DeleteUserParams) Response {
	snapshot, err := s.repo.GetUser(ctx, params.ID)
	if err != nil {
		return s.fail(ctx, "delete_user", err, nil)
	}
	ok, err := s.repo.DeleteUser(ctx, params.ID)
	if err != nil {
		return s.fail(ctx, "delete_user", err, nil)
	}
	if snapshot == nil {
		return s.fail(ctx, "delete_user", shared.ErrNotFound, nil)
	}
	return Response{Success: ok, Data: snapshot}
}

// ListUsers fetches the filtered, sorted and windowed sequence together with
// the total matching count. The two queries run concurrently; either error
// fails the whole operation. On failure data degrades to an empty sequence
// and total is omitted.
func (s *Service) ListUsers(ctx context.Context, params ListUsersParams) Response {
	column := params.Column
	if column == "" {
		column = "name"
	}
	order := params.Order
	if order == "" {
		order = "asc"
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	filter := UserFilter{
		Name:     params.Name,
		Email:    params.Email,
		LastName: params.LastName,
		CPF:      params.CPF,
	}

	var (
		records []User
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.repo.SelectUsers(gctx, SelectQuery{
			UserFilter: filter,
			Column:     column,
			Order:      order,
			Page:       params.Page,
			Limit:      limit,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountUsers(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail(ctx, "list_users", err, []User{})
	}
	if records == nil {
		records = []User{}
	}
	return Response{Success: true, Data: records, Total: &total}
}

// fail logs and counts a failure, then settles into the uniform failure
// envelope carrying the operation-specific empty data shape.
func (s *Service) fail(ctx context.Context, operation string, err error, data any) Response {
	kind := shared.ClassifyFailure(err)
	s.logger.ErrorContext(ctx, "use case failed",
		slog.String("operation", operation),
		slog.String("kind", string(kind)),
		slog.Any("error", err),
	)
	if s.metrics != nil {
		s.metrics.RecordFailure(operation, string(kind))
	}
	return Response{Success: false, Data: data}
}
