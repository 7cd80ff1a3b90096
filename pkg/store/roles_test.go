package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-one/sovereign-core/pkg/policy"
)

func TestMemoryRoleStore(t *testing.T) {
	s := NewMemoryRoleStore()
	s.Assign("usr-1", "org-1", policy.RoleManager)

	role, err := s.GetRole(context.Background(), "usr-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleManager, role)

	_, err = s.GetRole(context.Background(), "usr-1", "org-other")
	assert.ErrorIs(t, err, policy.ErrRoleNotFound)

	s.Assign("usr-1", "org-1", policy.RoleOwner)
	role, err = s.GetRole(context.Background(), "usr-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleOwner, role, "reassignment should replace the previous role")
}

func TestPostgresRoleStoreGetRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(`SELECT role FROM user_organizations`).
		WithArgs("usr-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

	s := NewPostgresRoleStore(db)
	role, err := s.GetRole(context.Background(), "usr-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleAdmin, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRoleStoreNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(`SELECT role FROM user_organizations`).
		WithArgs("usr-ghost", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	s := NewPostgresRoleStore(db)
	_, err = s.GetRole(context.Background(), "usr-ghost", "org-1")
	assert.ErrorIs(t, err, policy.ErrRoleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
