package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusFilter(t *testing.T) {
	tests := map[string]StatusFilter{
		"":          StatusActive,
		"active":    StatusActive,
		" Inactive": StatusInactive,
		"ALL":       StatusAll,
		"deleted":   StatusActive,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseStatusFilter(in), "input %q", in)
	}
}

func TestIntListRoundTrip(t *testing.T) {
	v, err := IntList{3, 1}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[3,1]", v)

	var l IntList
	require.NoError(t, l.Scan([]byte("[4,5]")))
	assert.Equal(t, IntList{4, 5}, l)
	assert.True(t, l.Contains(5))
	assert.False(t, l.Contains(1))

	require.NoError(t, l.Scan(nil))
	assert.Empty(t, l)

	nilVal, err := IntList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", nilVal)

	assert.Error(t, l.Scan(42))
}

func TestComputeTotals(t *testing.T) {
	s := &ExamStructure{Sections: []ExamStructureSection{
		{QuestionCount: 10, MarksPerQuestion: 1},
		{QuestionCount: 5, MarksPerQuestion: 2.5},
	}}
	s.ComputeTotals()
	assert.Equal(t, 15, s.TotalQuestions)
	assert.InDelta(t, 22.5, s.TotalMarks, 1e-9)
}

func TestExamWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	e := &ScheduledExam{StartAt: start, EndAt: start.Add(time.Hour)}

	assert.False(t, e.OpenAt(start.Add(-time.Second)))
	assert.True(t, e.OpenAt(start))
	assert.True(t, e.OpenAt(start.Add(59*time.Minute)))
	assert.False(t, e.OpenAt(start.Add(time.Hour)))
}

func TestQuestionRequestDefaults(t *testing.T) {
	q := QuestionRequest{SubjectID: 1, QuestionType: QuestionEssay, QuestionText: "Explain"}.ToQuestion()
	assert.Equal(t, DifficultyMedium, q.Difficulty)
	assert.Equal(t, 1.0, q.Marks)
	assert.Equal(t, SourceManual, q.Source)
	assert.NotNil(t, q.Options)
	assert.JSONEq(t, "null", string(q.CorrectAnswer))
	assert.True(t, q.IsActive)
}

func TestUserHelpers(t *testing.T) {
	lvl, school := 3, 7
	u := &User{ID: 1, Email: "a@b.c", Profile: &Profile{FullName: "Ani", ClassLevelID: &lvl, SchoolID: &school, RollNumber: "R1"}}
	assert.Equal(t, "Ani", u.DisplayName())
	assert.Equal(t, 3, u.ClassLevelID())
	assert.Equal(t, 7, u.SchoolID())
	assert.Equal(t, &UserSummary{ID: 1, Email: "a@b.c", FullName: "Ani", RollNumber: "R1"}, u.Summary())

	bare := &User{Email: "x@y.z"}
	assert.Equal(t, "x@y.z", bare.DisplayName())
	assert.Zero(t, bare.ClassLevelID())
}

func TestPermissionGroups(t *testing.T) {
	assert.Equal(t, "exams", PermissionExamsPublish.Resource())
	assert.Equal(t, "plain", Permission("plain").Resource())

	groups := PermissionGroups()
	assert.ElementsMatch(t, []string{"exams:read", "exams:write", "exams:publish"}, groups["exams"])

	total := 0
	for _, codes := range groups {
		total += len(codes)
	}
	assert.Equal(t, len(AllPermissions), total)
	assert.True(t, Role{ID: SuperAdminRoleID}.Immutable())
	assert.False(t, Role{ID: 2}.Immutable())
}

func TestPublicSettingKeys(t *testing.T) {
	assert.ElementsMatch(t, []string{SettingAppName, SettingSchoolLogoURL, SettingDefaultLocale}, PublicSettingKeys)
}
