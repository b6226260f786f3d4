package directory

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casehub/accesscore/pkg/authz"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "name", "email", "role", "is_active"})
}

func TestUserByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`FROM users WHERE id`).
			WithArgs("u1").
			WillReturnRows(userRows().AddRow("u1", "t1", "Ana Ruiz", "ana@example.com", "case_manager", true))

		u, err := store.UserByID(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, authz.RoleCaseManager, u.Role)
	})

	t.Run("unknown is nil without error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`FROM users WHERE id`).
			WithArgs("ghost").
			WillReturnRows(userRows())

		u, err := store.UserByID(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, u)
	})
}

func TestUserSubject(t *testing.T) {
	ctx := context.Background()

	t.Run("active user becomes a subject", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`FROM users WHERE id`).
			WithArgs("u1").
			WillReturnRows(userRows().AddRow("u1", "t1", "Ana Ruiz", "ana@example.com", "admin", true))

		sub, err := store.UserSubject(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, authz.Subject{ID: "u1", TenantID: "t1", Role: authz.RoleAdmin}, *sub)
	})

	t.Run("deactivated user is nil", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`FROM users WHERE id`).
			WithArgs("u1").
			WillReturnRows(userRows().AddRow("u1", "t1", "Ana Ruiz", "ana@example.com", "admin", false))

		sub, err := store.UserSubject(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, sub)
	})
}

func TestUserTenantID(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT tenant_id FROM users`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("t1"))
	mock.ExpectQuery(`SELECT tenant_id FROM users`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}))

	tenantID, err := store.UserTenantID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "t1", tenantID)

	tenantID, err = store.UserTenantID(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, tenantID)
}

func TestActiveAdminIDs(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id FROM users`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))

	ids, err := store.ActiveAdminIDs(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestEarliestActiveAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT name, email FROM users`).
			WithArgs("t1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).AddRow("Dana Ortiz", "dana@example.com"))

		contact, err := store.EarliestActiveAdmin(ctx, "t1")
		require.NoError(t, err)
		require.NotNil(t, contact)
		assert.Equal(t, "Dana Ortiz", contact.Name)
	})

	t.Run("tenant without admins yields nil", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT name, email FROM users`).
			WithArgs("t1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "email"}))

		contact, err := store.EarliestActiveAdmin(ctx, "t1")
		require.NoError(t, err)
		assert.Nil(t, contact)
	})
}
