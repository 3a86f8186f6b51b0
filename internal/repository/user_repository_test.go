package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/model"
)

func intPtr(v int) *int { return &v }

func TestUserCreateWithProfileAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	users := []*model.User{
		{Email: "admin@school.test", PasswordHash: "h", Kind: model.UserAdmin, RoleID: intPtr(1), IsActive: true,
			Profile: &model.Profile{FullName: "Zed Admin"}},
		{Email: "budi@school.test", PasswordHash: "h", Kind: model.UserStudent, IsActive: true,
			Profile: &model.Profile{FullName: "Budi Santoso", ClassLevelID: intPtr(10), SchoolID: intPtr(1), RollNumber: "S-001"}},
		{Email: "ani@school.test", PasswordHash: "h", Kind: model.UserStudent, IsActive: true,
			Profile: &model.Profile{FullName: "Ani Lestari", ClassLevelID: intPtr(11), SchoolID: intPtr(1), RollNumber: "S-002"}},
	}
	for _, u := range users {
		require.NoError(t, repo.Create(ctx, u))
		assert.Equal(t, u.ID, u.Profile.UserID)
	}

	students, total, err := repo.List(ctx, model.UserFilter{Kind: string(model.UserStudent)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Ani Lestari", students[0].Profile.FullName)

	found, total, err := repo.List(ctx, model.UserFilter{ListQuery: model.ListQuery{Search: "santoso"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "budi@school.test", found[0].Email)

	_, total, err = repo.List(ctx, model.UserFilter{ClassLevelID: 11, SchoolID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	byEmail, err := repo.GetByEmail(ctx, "BUDI@school.test")
	require.NoError(t, err)
	assert.Equal(t, "S-001", byEmail.Profile.RollNumber)

	dup := &model.User{Email: "ani@school.test", PasswordHash: "h", Kind: model.UserStudent}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicate)
}

func TestUserUpdateAndPassword(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	u := &model.User{Email: "sari@school.test", PasswordHash: "old", Kind: model.UserStudent, IsActive: true}
	require.NoError(t, repo.Create(ctx, u))

	u.Email = "sari.w@school.test"
	u.Profile = &model.Profile{FullName: "Sari Wulandari", Phone: "0812"}
	require.NoError(t, repo.Update(ctx, u))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sari.w@school.test", got.Email)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "Sari Wulandari", got.Profile.FullName)

	require.NoError(t, repo.UpdateProfile(ctx, &model.Profile{UserID: u.ID, FullName: "Sari W.", Phone: "0813"}))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sari W.", got.Profile.FullName)

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new"))
	require.NoError(t, repo.TouchLastLogin(ctx, u.ID, time.Now()))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.NotNil(t, got.LastLoginAt)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, 999, "x"), ErrNotFound)

	require.NoError(t, repo.SetActive(ctx, u.ID, false))
	_, total, err := repo.List(ctx, model.UserFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
