package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/model"
)

func seedSchools(t *testing.T, repo *SchoolRepository, names ...string) []model.School {
	t.Helper()
	out := make([]model.School, 0, len(names))
	for i, n := range names {
		s := model.School{Name: n, Code: string(rune('A'+i)) + "-01", IsActive: true}
		require.NoError(t, repo.Create(context.Background(), &s))
		out = append(out, s)
	}
	return out
}

func TestSchoolSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(newTestDB(t))
	schools := seedSchools(t, repo, "Alpha High", "Beta High", "Gamma High")

	require.NoError(t, repo.SetActive(ctx, schools[1].ID, false))

	got, err := repo.GetByID(ctx, schools[1].ID)
	require.NoError(t, err, "soft-deleted rows stay readable by id")
	assert.False(t, got.IsActive)

	tests := []struct {
		status model.StatusFilter
		want   []string
	}{
		{model.StatusActive, []string{"Alpha High", "Gamma High"}},
		{model.StatusInactive, []string{"Beta High"}},
		{model.StatusAll, []string{"Alpha High", "Beta High", "Gamma High"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			items, total, err := repo.List(ctx, model.ListQuery{Status: tt.status})
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			names := make([]string, len(items))
			for i, s := range items {
				names[i] = s.Name
			}
			assert.Equal(t, tt.want, names)
		})
	}

	require.NoError(t, repo.SetActive(ctx, schools[1].ID, true))
	_, total, err := repo.List(ctx, model.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestSchoolMissingAndDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(newTestDB(t))
	seedSchools(t, repo, "Alpha High")

	assert.ErrorIs(t, repo.SetActive(ctx, 999, false), ErrNotFound)
	_, err := repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &model.School{ID: 999, Name: "x", Code: "y"}), ErrNotFound)

	dup := model.School{Name: "Other", Code: "A-01"}
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicate)
}

func TestSchoolSearchAndPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(newTestDB(t))
	seedSchools(t, repo, "North Academy", "south academy", "East College", "West Academy")

	items, total, err := repo.List(ctx, model.ListQuery{Search: "ACADEMY", Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "total ignores paging")
	require.Len(t, items, 2)
	assert.Equal(t, "North Academy", items[0].Name)

	items, _, err = repo.List(ctx, model.ListQuery{Search: "academy", Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, total, err = repo.List(ctx, model.ListQuery{Search: "100%"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestSubjectFiltersNarrowResults(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	levels := NewClassLevelRepository(db)
	subjects := NewSubjectRepository(db)

	ten := model.ClassLevel{Name: "Grade 10", LevelOrder: 10, IsActive: true}
	eleven := model.ClassLevel{Name: "Grade 11", LevelOrder: 11, IsActive: true}
	require.NoError(t, levels.Create(ctx, &ten))
	require.NoError(t, levels.Create(ctx, &eleven))

	for _, s := range []model.Subject{
		{ClassLevelID: ten.ID, Name: "Physics", Code: "PHY10"},
		{ClassLevelID: ten.ID, Name: "Biology", Code: "BIO10"},
		{ClassLevelID: eleven.ID, Name: "Physics", Code: "PHY11"},
	} {
		s := s
		s.IsActive = true
		require.NoError(t, subjects.Create(ctx, &s))
	}

	all, total, err := subjects.List(ctx, model.SubjectFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	narrowed, total, err := subjects.List(ctx, model.SubjectFilter{ClassLevelID: ten.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.LessOrEqual(t, len(narrowed), len(all))
	assert.Equal(t, "Biology", narrowed[0].Name)
	require.NotNil(t, narrowed[0].ClassLevel)
	assert.Equal(t, "Grade 10", narrowed[0].ClassLevel.Name)

	byCode, total, err := subjects.List(ctx, model.SubjectFilter{ListQuery: model.ListQuery{Search: "phy11"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, eleven.ID, byCode[0].ClassLevelID)

	dup := model.Subject{ClassLevelID: ten.ID, Name: "Physics"}
	assert.ErrorIs(t, subjects.Create(ctx, &dup), ErrDuplicate)

	ok, err := levels.ExistsActive(ctx, ten.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, levels.SetActive(ctx, ten.ID, false))
	ok, err = levels.ExistsActive(ctx, ten.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassLevelsOrderedByLevel(t *testing.T) {
	ctx := context.Background()
	repo := NewClassLevelRepository(newTestDB(t))
	for _, l := range []model.ClassLevel{{Name: "Grade 12", LevelOrder: 12}, {Name: "Grade 7", LevelOrder: 7}, {Name: "Grade 9", LevelOrder: 9}} {
		l := l
		require.NoError(t, repo.Create(ctx, &l))
	}

	items, _, err := repo.List(ctx, model.ListQuery{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int{7, 9, 12}, []int{items[0].LevelOrder, items[1].LevelOrder, items[2].LevelOrder})
	assert.True(t, items[0].IsActive, "is_active defaults to true")
}

func TestChaptersOrderAndSubjectCheck(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	chapters := NewChapterRepository(db)

	for _, c := range []model.Chapter{
		{SubjectID: 1, Name: "Optics", ChapterOrder: 3},
		{SubjectID: 1, Name: "Kinematics", ChapterOrder: 1},
		{SubjectID: 2, Name: "Cells", ChapterOrder: 1},
	} {
		c := c
		require.NoError(t, chapters.Create(ctx, &c))
	}

	items, total, err := chapters.List(ctx, model.ChapterFilter{SubjectID: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Kinematics", items[0].Name)
	assert.Equal(t, "Optics", items[1].Name)

	n, err := chapters.CountInSubject(ctx, 1, []int{items[0].ID, items[1].ID, 999})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQuestionBankUUIDAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestionBankRepository(newTestDB(t))
	author := 5

	a := model.QuestionBank{SubjectID: 1, Name: "Mechanics drill", AuthorID: &author}
	b := model.QuestionBank{SubjectID: 2, Name: "Cell biology"}
	require.NoError(t, repo.Create(ctx, &a))
	require.NoError(t, repo.Create(ctx, &b))
	assert.NotEqual(t, a.ID, b.ID)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mechanics drill", got.Name)

	items, total, err := repo.List(ctx, model.QuestionBankFilter{AuthorID: author})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, items[0].ID)

	require.NoError(t, repo.SetActive(ctx, b.ID, false))
	_, total, err = repo.List(ctx, model.QuestionBankFilter{SubjectID: 2})
	require.NoError(t, err)
	assert.Zero(t, total)
}
