package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
)

type examFixture struct {
	svc    *ScheduledExamService
	store  *fakeExamStore
	picker *fakePicker
	now    time.Time
}

func newExamFixture(t *testing.T) *examFixture {
	t.Helper()
	_, rdb := newTestRedis(t)

	mcq := model.QuestionTrueFalse
	structures := fakeStructures{
		1: {
			ID: 1, ClassLevelID: 10, SubjectID: intPtr(20), DurationMinutes: 60,
			Instructions: "Read carefully", IsActive: true,
			Sections: []model.ExamStructureSection{
				{ID: 11, Name: "Part A", QuestionType: &mcq, QuestionCount: 2, MarksPerQuestion: 2},
				{ID: 12, Name: "Part B", QuestionType: &mcq, QuestionCount: 1, MarksPerQuestion: 5, NegativeMarks: 1},
			},
		},
		2: {ID: 2, ClassLevelID: 10, IsActive: false},
	}
	picker := &fakePicker{pool: map[model.QuestionType][]uuid.UUID{
		mcq: {uuid.New(), uuid.New(), uuid.New(), uuid.New()},
	}}
	store := newFakeExamStore()

	svc := NewScheduledExamService(store, structures, activeSet{5: true}, picker, rdb, testLog)
	now := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return now }
	return &examFixture{svc: svc, store: store, picker: picker, now: now}
}

func (f *examFixture) draft(t *testing.T) *model.ScheduledExam {
	t.Helper()
	exam, err := f.svc.Create(context.Background(), model.ScheduledExamRequest{
		StructureID: 1,
		Title:       "Midterm",
		StartAt:     f.now.Add(time.Hour),
		EndAt:       f.now.Add(3 * time.Hour),
	}, 7)
	require.NoError(t, err)
	return exam
}

func TestScheduledExamCreateInheritsStructure(t *testing.T) {
	f := newExamFixture(t)
	exam := f.draft(t)

	assert.Equal(t, model.ExamDraft, exam.Status)
	assert.Equal(t, 10, exam.ClassLevelID)
	assert.Equal(t, 60, exam.DurationMinutes)
	assert.Equal(t, "Read carefully", exam.Instructions)
	require.NotNil(t, exam.CreatedBy)
	assert.Equal(t, 7, *exam.CreatedBy)
}

func TestScheduledExamCreateRejects(t *testing.T) {
	f := newExamFixture(t)
	base := model.ScheduledExamRequest{
		StructureID: 1, Title: "Quiz",
		StartAt: f.now.Add(time.Hour), EndAt: f.now.Add(2 * time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(r *model.ScheduledExamRequest)
		want   error
	}{
		{"missing structure", func(r *model.ScheduledExamRequest) { r.StructureID = 99 }, ErrInvalidParent},
		{"inactive structure", func(r *model.ScheduledExamRequest) { r.StructureID = 2 }, ErrInvalidParent},
		{"inactive school", func(r *model.ScheduledExamRequest) { r.SchoolID = intPtr(6) }, ErrInvalidParent},
		{"end before start", func(r *model.ScheduledExamRequest) { r.EndAt = r.StartAt }, ErrInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.svc.Create(context.Background(), req, 1)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGeneratePaperNeverRepeatsQuestions(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	exam := f.draft(t)

	got, err := f.svc.GeneratePaper(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.QuestionCount)
	assert.Equal(t, 9.0, got.TotalMarks)

	keys, err := f.store.PaperKeys(ctx, exam.ID)
	require.NoError(t, err)
	seen := map[uuid.UUID]bool{}
	for i, k := range keys {
		assert.False(t, seen[k.QuestionID], "question drawn twice")
		seen[k.QuestionID] = true
		assert.Equal(t, i+1, k.OrderNum)
	}
	assert.Equal(t, "Part B", keys[2].SectionName)
	assert.Equal(t, 1.0, keys[2].NegativeMarks)
}

func TestGeneratePaperInsufficientQuestions(t *testing.T) {
	f := newExamFixture(t)
	exam := f.draft(t)
	f.picker.pool[model.QuestionTrueFalse] = f.picker.pool[model.QuestionTrueFalse][:2]

	_, err := f.svc.GeneratePaper(context.Background(), exam.ID)
	require.ErrorIs(t, err, ErrInsufficientQuestions)
	assert.Contains(t, err.Error(), "Part B")
}

func TestPublishLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	exam := f.draft(t)

	_, err := f.svc.Publish(ctx, exam.ID)
	require.ErrorIs(t, err, ErrPaperNotGenerated)

	_, err = f.svc.GeneratePaper(ctx, exam.ID)
	require.NoError(t, err)

	published, err := f.svc.Publish(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamScheduled, published.Status)

	raw, err := f.svc.rdb.Get(ctx, config.CacheKey.ExamPaperKey(exam.ID.String())).Bytes()
	require.NoError(t, err)
	var paper model.ExamPaper
	require.NoError(t, json.Unmarshal(raw, &paper))
	assert.Len(t, paper.Questions, 3)
	assert.NotContains(t, string(raw), "correct_answer", "cached paper must not leak answer keys")

	_, err = f.svc.Publish(ctx, exam.ID)
	assert.ErrorIs(t, err, ErrExamNotDraft)

	_, err = f.svc.GeneratePaper(ctx, exam.ID)
	assert.ErrorIs(t, err, ErrExamNotDraft)
}

func TestPublishRejectsPastWindow(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	exam := f.draft(t)
	_, err := f.svc.GeneratePaper(ctx, exam.ID)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return f.now.Add(4 * time.Hour) }
	_, err = f.svc.Publish(ctx, exam.ID)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestSyncStatusesStartsAndCompletes(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	exam := f.draft(t)
	_, err := f.svc.GeneratePaper(ctx, exam.ID)
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, exam.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.SyncStatuses(ctx, f.now.Add(90*time.Minute)))
	got, _ := f.store.GetByID(ctx, exam.ID)
	assert.Equal(t, model.ExamLive, got.Status)

	require.NoError(t, f.svc.SyncStatuses(ctx, f.now.Add(4*time.Hour)))
	got, _ = f.store.GetByID(ctx, exam.ID)
	assert.Equal(t, model.ExamCompleted, got.Status)

	_, err = f.svc.Cancel(ctx, exam.ID)
	assert.ErrorIs(t, err, ErrExamNotEditable, "completed exams cannot be cancelled")
}

func TestDeleteLiveExamRefused(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	exam := f.draft(t)
	f.store.exams[exam.ID].Status = model.ExamLive

	assert.ErrorIs(t, f.svc.Delete(ctx, exam.ID), ErrExamLive)

	f.store.exams[exam.ID].Status = model.ExamCancelled
	require.NoError(t, f.svc.Delete(ctx, exam.ID))
	got, _ := f.store.GetByID(ctx, exam.ID)
	assert.False(t, got.IsActive)
}

func TestPaperRebuildsCacheOnMiss(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	exam := f.draft(t)
	_, err := f.svc.GeneratePaper(ctx, exam.ID)
	require.NoError(t, err)
	exam, _ = f.store.GetByID(ctx, exam.ID)

	paper, err := f.svc.Paper(ctx, exam)
	require.NoError(t, err)
	assert.Len(t, paper.Questions, 3)

	n, err := f.svc.rdb.Exists(ctx, config.CacheKey.ExamPaperKey(exam.ID.String())).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPrewarmAllCaches(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		exam := f.draft(t)
		_, err := f.svc.GeneratePaper(ctx, exam.ID)
		require.NoError(t, err)
		_, err = f.svc.Publish(ctx, exam.ID)
		require.NoError(t, err)
		ids = append(ids, exam.ID)
	}
	require.NoError(t, f.svc.rdb.FlushAll(ctx).Err())

	require.NoError(t, f.svc.PrewarmAllCaches(ctx))
	for _, id := range ids {
		n, err := f.svc.rdb.Exists(ctx, config.CacheKey.ExamPaperKey(id.String())).Result()
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	}
}
