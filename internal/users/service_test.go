package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type memoryUserRepo struct {
	rows    map[string]User
	failing bool
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{rows: make(map[string]User)}
}

var errStoreDown = errors.New("connection refused")

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (r *memoryUserRepo) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	if r.failing {
		return nil, errStoreDown
	}
	for _, row := range r.rows {
		if row.Email == input.Email {
			return nil, uniqueViolation("users_email_key")
		}
		if row.CPF == input.CPF {
			return nil, uniqueViolation("users_cpf_key")
		}
	}
	user := User{
		ID:       uuid.NewString(),
		Name:     input.Name,
		Email:    input.Email,
		LastName: input.LastName,
		CPF:      input.CPF,
	}
	r.rows[user.ID] = user
	return &user, nil
}

func (r *memoryUserRepo) GetUser(ctx context.Context, id string) (*User, error) {
	if r.failing {
		return nil, errStoreDown
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *memoryUserRepo) UpdateUser(ctx context.Context, input UpdateUserInput) (*User, error) {
	if r.failing {
		return nil, errStoreDown
	}
	row, ok := r.rows[input.ID]
	if !ok {
		return nil, errNotFoundForTest()
	}
	row.Name = input.Name
	row.Email = input.Email
	row.LastName = input.LastName
	row.CPF = input.CPF
	r.rows[input.ID] = row
	return &row, nil
}

func (r *memoryUserRepo) DeleteUser(ctx context.Context, id string) (bool, error) {
	if r.failing {
		return false, errStoreDown
	}
	if _, ok := r.rows[id]; !ok {
		return false, errNotFoundForTest()
	}
	delete(r.rows, id)
	return true, nil
}

func (r *memoryUserRepo) SelectUsers(ctx context.Context, query SelectQuery) ([]User, error) {
	if r.failing {
		return nil, errStoreDown
	}
	less, err := sortFunc(query.Column)
	if err != nil {
		return nil, err
	}
	var matched []User
	for _, row := range r.rows {
		if matchesFilter(row, query.UserFilter) {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if query.Order == "asc" {
			return less(matched[i], matched[j])
		}
		return less(matched[j], matched[i])
	})
	if query.Page >= len(matched) {
		return nil, nil
	}
	matched = matched[query.Page:]
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memoryUserRepo) CountUsers(ctx context.Context, filter UserFilter) (int, error) {
	if r.failing {
		return 0, errStoreDown
	}
	count := 0
	for _, row := range r.rows {
		if matchesFilter(row, filter) {
			count++
		}
	}
	return count, nil
}

func errNotFoundForTest() error {
	return errors.New("users: not found")
}

func containsFold(value, sub string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(sub))
}

func matchesFilter(row User, filter UserFilter) bool {
	return containsFold(row.Name, filter.Name) &&
		containsFold(row.Email, filter.Email) &&
		containsFold(row.LastName, filter.LastName) &&
		containsFold(row.CPF, filter.CPF)
}

func sortFunc(column string) (func(a, b User) bool, error) {
	switch column {
	case "", "name":
		return func(a, b User) bool { return a.Name < b.Name }, nil
	case "last_name":
		return func(a, b User) bool { return a.LastName < b.LastName }, nil
	case "email":
		return func(a, b User) bool { return a.Email < b.Email }, nil
	case "cpf":
		return func(a, b User) bool { return a.CPF < b.CPF }, nil
	case "id":
		return func(a, b User) bool { return a.ID < b.ID }, nil
	default:
		return nil, errors.New("unknown sort column " + column)
	}
}

type recordedFailure struct {
	operation string
	kind      string
}

type failureLog struct {
	failures []recordedFailure
}

func (f *failureLog) RecordFailure(operation, kind string) {
	f.failures = append(f.failures, recordedFailure{operation: operation, kind: kind})
}

func newTestService(repo RepositoryPort) (*Service, *failureLog) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := &failureLog{}
	return NewService(repo, logger, recorder), recorder
}

func mustCreate(t *testing.T, svc *Service, params CreateUserParams) User {
	t.Helper()
	resp := svc.CreateUser(context.Background(), params)
	require.True(t, resp.Success)
	user, ok := resp.Data.(*User)
	require.True(t, ok)
	return *user
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())

	created := mustCreate(t, svc, CreateUserParams{
		Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "12345678901",
	})
	require.NotEmpty(t, created.ID)

	resp := svc.GetUser(context.Background(), GetUserParams{ID: created.ID})
	require.True(t, resp.Success)
	got, ok := resp.Data.(*User)
	require.True(t, ok)
	require.Equal(t, created, *got)
}

func TestCreateDuplicateEmailFails(t *testing.T) {
	svc, recorder := newTestService(newMemoryUserRepo())

	mustCreate(t, svc, CreateUserParams{Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111"})
	resp := svc.CreateUser(context.Background(), CreateUserParams{
		Name: "Beto", LastName: "Souza", Email: "ana@x.com", CPF: "222",
	})

	require.False(t, resp.Success)
	require.Nil(t, resp.Data)
	require.Equal(t, []recordedFailure{{operation: "create_user", kind: "constraint_violation"}}, recorder.failures)
}

func TestCreateDuplicateCPFFails(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())

	mustCreate(t, svc, CreateUserParams{Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111"})
	resp := svc.CreateUser(context.Background(), CreateUserParams{
		Name: "Beto", LastName: "Souza", Email: "beto@x.com", CPF: "111",
	})

	require.False(t, resp.Success)
}

func TestUpdateIsIdempotentOnFields(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	created := mustCreate(t, svc, CreateUserParams{Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111"})

	params := UpdateUserParams{ID: created.ID, Name: "Ana Paula", LastName: "Silva", Email: "ana2@x.com", CPF: "111"}
	first := svc.UpdateUser(context.Background(), params)
	second := svc.UpdateUser(context.Background(), params)

	require.True(t, first.Success)
	require.True(t, second.Success)
	require.Equal(t, first.Data, second.Data)

	got := svc.GetUser(context.Background(), GetUserParams{ID: created.ID})
	user := got.Data.(*User)
	require.Equal(t, "Ana Paula", user.Name)
	require.Equal(t, "ana2@x.com", user.Email)
	require.Equal(t, created.ID, user.ID)
}

func TestUpdateNonexistentIDFails(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())

	resp := svc.UpdateUser(context.Background(), UpdateUserParams{
		ID: "nonexistent-id", Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111",
	})

	require.False(t, resp.Success)
	require.Nil(t, resp.Data)
}

func TestDeleteReturnsPreDeleteSnapshotAndIsFinal(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	created := mustCreate(t, svc, CreateUserParams{Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111"})

	resp := svc.DeleteUser(context.Background(), DeleteUserParams{ID: created.ID})
	require.True(t, resp.Success)
	snapshot, ok := resp.Data.(*User)
	require.True(t, ok)
	require.Equal(t, created, *snapshot)

	got := svc.GetUser(context.Background(), GetUserParams{ID: created.ID})
	require.False(t, got.Success)
	require.Nil(t, got.Data)

	again := svc.DeleteUser(context.Background(), DeleteUserParams{ID: created.ID})
	require.False(t, again.Success)
	require.Nil(t, again.Data)
}

func TestGetNonexistentIDFails(t *testing.T) {
	svc, recorder := newTestService(newMemoryUserRepo())

	resp := svc.GetUser(context.Background(), GetUserParams{ID: "missing"})

	require.False(t, resp.Success)
	require.Nil(t, resp.Data)
	require.Equal(t, "not_found", recorder.failures[0].kind)
}

func TestListFilterContainment(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	mustCreate(t, svc, CreateUserParams{Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111"})
	mustCreate(t, svc, CreateUserParams{Name: "Mariana", LastName: "Souza", Email: "mari@x.com", CPF: "222"})
	mustCreate(t, svc, CreateUserParams{Name: "Beto", LastName: "Lima", Email: "beto@x.com", CPF: "333"})

	resp := svc.ListUsers(context.Background(), ListUsersParams{Name: "an"})
	require.True(t, resp.Success)
	records := resp.Data.([]User)
	require.Len(t, records, 2)
	for _, record := range records {
		require.Contains(t, strings.ToLower(record.Name), "an")
	}

	all := svc.ListUsers(context.Background(), ListUsersParams{})
	require.True(t, all.Success)
	require.Len(t, all.Data.([]User), 3)
}

func TestListCountIndependentOfPagination(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	names := []string{"Ana", "Beto", "Caio", "Duda", "Enzo"}
	for i, name := range names {
		mustCreate(t, svc, CreateUserParams{
			Name: name, LastName: "Teste",
			Email: strings.ToLower(name) + "@x.com",
			CPF:   strings.Repeat(string(rune('1'+i)), 11),
		})
	}

	resp := svc.ListUsers(context.Background(), ListUsersParams{Limit: 2})
	require.True(t, resp.Success)
	require.Len(t, resp.Data.([]User), 2)
	require.NotNil(t, resp.Total)
	require.Equal(t, 5, *resp.Total)
}

func TestListSortsAscendingByDefaultWithTotal(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	mustCreate(t, svc, CreateUserParams{Name: "Ana Clara", LastName: "Silva", Email: "clara@x.com", CPF: "111"})
	mustCreate(t, svc, CreateUserParams{Name: "Ana Beatriz", LastName: "Silva", Email: "bia@x.com", CPF: "222"})

	resp := svc.ListUsers(context.Background(), ListUsersParams{
		Name: "Ana", Column: "name", Order: "asc", Limit: 10, Page: 0,
	})
	require.True(t, resp.Success)
	records := resp.Data.([]User)
	require.Len(t, records, 2)
	require.Equal(t, "Ana Beatriz", records[0].Name)
	require.Equal(t, "Ana Clara", records[1].Name)
	require.NotNil(t, resp.Total)
	require.Equal(t, 2, *resp.Total)
}

func TestListPageIsRawOffset(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	mustCreate(t, svc, CreateUserParams{Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111"})
	mustCreate(t, svc, CreateUserParams{Name: "Beto", LastName: "Souza", Email: "beto@x.com", CPF: "222"})
	mustCreate(t, svc, CreateUserParams{Name: "Caio", LastName: "Lima", Email: "caio@x.com", CPF: "333"})

	// page=1 skips exactly one row, it is not a page index.
	resp := svc.ListUsers(context.Background(), ListUsersParams{Order: "asc", Page: 1, Limit: 10})
	require.True(t, resp.Success)
	records := resp.Data.([]User)
	require.Len(t, records, 2)
	require.Equal(t, "Beto", records[0].Name)
}

func TestListInvalidSortColumnFails(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	mustCreate(t, svc, CreateUserParams{Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "111"})

	resp := svc.ListUsers(context.Background(), ListUsersParams{Column: "password"})

	require.False(t, resp.Success)
	require.Equal(t, []User{}, resp.Data)
	require.Nil(t, resp.Total)
}

func TestListStoreFailureDegradesToEmptyData(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.failing = true
	svc, recorder := newTestService(repo)

	resp := svc.ListUsers(context.Background(), ListUsersParams{})

	require.False(t, resp.Success)
	require.Equal(t, []User{}, resp.Data)
	require.Nil(t, resp.Total)
	require.Equal(t, "store_failure", recorder.failures[0].kind)
}

func TestScenarioCreateGetUpdateDelete(t *testing.T) {
	svc, _ := newTestService(newMemoryUserRepo())
	ctx := context.Background()

	created := mustCreate(t, svc, CreateUserParams{
		Name: "Ana", LastName: "Silva", Email: "ana@x.com", CPF: "12345678901",
	})

	got := svc.GetUser(ctx, GetUserParams{ID: created.ID})
	require.True(t, got.Success)
	require.Equal(t, created, *got.Data.(*User))

	updated := svc.UpdateUser(ctx, UpdateUserParams{
		ID: created.ID, Name: "Ana", LastName: "Silva", Email: "ana2@x.com", CPF: "12345678901",
	})
	require.True(t, updated.Success)
	require.Equal(t, "ana2@x.com", updated.Data.(*User).Email)

	deleted := svc.DeleteUser(ctx, DeleteUserParams{ID: created.ID})
	require.True(t, deleted.Success)
	require.Equal(t, "ana2@x.com", deleted.Data.(*User).Email)

	gone := svc.GetUser(ctx, GetUserParams{ID: created.ID})
	require.False(t, gone.Success)
	require.Nil(t, gone.Data)
}
