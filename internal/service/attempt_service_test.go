package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
)

type attemptFixture struct {
	svc      *AttemptService
	exams    *ScheduledExamService
	store    *fakeExamStore
	attempts *fakeAttemptStore
	exam     *model.ScheduledExam
	student  *model.User
	now      time.Time
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	ctx := context.Background()
	f := newExamFixture(t)

	exam := f.draft(t)
	_, err := f.svc.GeneratePaper(ctx, exam.ID)
	require.NoError(t, err)
	f.store.exams[exam.ID].Status = model.ExamLive
	f.store.exams[exam.ID].StartAt = f.now.Add(-time.Minute)
	exam, _ = f.store.GetByID(ctx, exam.ID)

	student := &model.User{
		ID: 42, Email: "sita@example.com", Kind: model.UserStudent, IsActive: true,
		Profile: &model.Profile{UserID: 42, FullName: "Sita", ClassLevelID: intPtr(10), SchoolID: intPtr(5)},
	}
	attempts := newFakeAttemptStore()
	svc := NewAttemptService(attempts, f.store, f.svc, newFakeUsers(student), f.svc.rdb, testLog)
	svc.now = func() time.Time { return f.now }

	return &attemptFixture{
		svc: svc, exams: f.svc, store: f.store, attempts: attempts,
		exam: exam, student: student, now: f.now,
	}
}

func TestStartCreatesAttemptWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)

	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, resp.Attempt.Status)
	assert.Equal(t, f.now.Add(60*time.Minute), resp.Attempt.ExpiresAt)
	assert.Len(t, resp.Paper.Questions, 3)
	assert.Empty(t, resp.Answers)

	again, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	assert.Equal(t, resp.Attempt.ID, again.Attempt.ID, "second start resumes the same attempt")
}

func TestStartCapsDeadlineAtExamEnd(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	f.store.exams[f.exam.ID].EndAt = f.now.Add(20 * time.Minute)

	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(20*time.Minute), resp.Attempt.ExpiresAt)
}

func TestStartRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *attemptFixture)
		want   error
	}{
		{"exam not live", func(f *attemptFixture) { f.store.exams[f.exam.ID].Status = model.ExamScheduled }, ErrExamNotLive},
		{"window closed", func(f *attemptFixture) { f.store.exams[f.exam.ID].EndAt = f.now }, ErrExamNotLive},
		{"other class level", func(f *attemptFixture) { f.student.Profile.ClassLevelID = intPtr(11) }, ErrNotEligible},
		{"other school", func(f *attemptFixture) { f.store.exams[f.exam.ID].SchoolID = intPtr(6) }, ErrNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttemptFixture(t)
			tt.mutate(f)
			_, err := f.svc.Start(context.Background(), f.exam.ID, f.student)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSaveAnswerWritesHashAndQueue(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	attemptID := resp.Attempt.ID
	qid := resp.Paper.Questions[0].ID

	_, err = f.svc.SaveAnswer(ctx, attemptID, f.student.ID, model.SaveAnswerRequest{QuestionID: qid, Answer: json.RawMessage(`true`)})
	require.NoError(t, err)

	rdb := f.svc.rdb
	got, err := rdb.HGet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), qid.String()).Result()
	require.NoError(t, err)
	assert.Equal(t, "true", got)

	queued, err := rdb.LRange(ctx, config.WorkerKey.PersistAnswersQueue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, queued, 1)
	var rec model.AnswerRecord
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &rec))
	assert.Equal(t, qid.String(), rec.QuestionID)
	assert.JSONEq(t, "true", string(rec.Answer))

	resumed, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(resumed.Answers[qid.String()]))
}

func TestSaveAnswerRejects(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	attemptID := resp.Attempt.ID
	qid := resp.Paper.Questions[0].ID

	_, err = f.svc.SaveAnswer(ctx, attemptID, f.student.ID, model.SaveAnswerRequest{QuestionID: uuid.New()})
	assert.ErrorIs(t, err, ErrQuestionNotInPaper)

	_, err = f.svc.SaveAnswer(ctx, attemptID, 999, model.SaveAnswerRequest{QuestionID: qid})
	assert.ErrorIs(t, err, ErrNotFound, "other students cannot see the attempt")

	f.svc.now = func() time.Time { return f.now.Add(2 * time.Hour) }
	_, err = f.svc.SaveAnswer(ctx, attemptID, f.student.ID, model.SaveAnswerRequest{QuestionID: qid})
	assert.ErrorIs(t, err, ErrAttemptClosed)
}

func TestSaveAnswerDeadlineGrace(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	attemptID := resp.Attempt.ID
	req := model.SaveAnswerRequest{QuestionID: resp.Paper.Questions[0].ID, Answer: json.RawMessage(`true`)}
	deadline := resp.Attempt.ExpiresAt

	tests := []struct {
		name string
		at   time.Time
		want error
	}{
		{"at the deadline", deadline, nil},
		{"within grace", deadline.Add(deadlineGrace - time.Second), nil},
		{"after grace", deadline.Add(deadlineGrace + time.Second), ErrAttemptClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.svc.now = func() time.Time { return tt.at }
			_, err := f.svc.SaveAnswer(ctx, attemptID, f.student.ID, req)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			assert.NoError(t, err)
		})
	}

	// the expiry job leaves the attempt open while saves are still accepted
	n, err := f.svc.ExpireOverdue(ctx, deadline.Add(deadlineGrace-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.svc.ExpireOverdue(ctx, deadline.Add(deadlineGrace+time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmitGradesMergedAnswers(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	attemptID := resp.Attempt.ID

	keys, _ := f.store.PaperKeys(ctx, f.exam.ID)
	// Persisted answer for the first question, newer Redis answer overrides it.
	f.attempts.answers[attemptID] = map[uuid.UUID]json.RawMessage{keys[0].QuestionID: json.RawMessage(`false`)}
	_, err = f.svc.SaveAnswer(ctx, attemptID, f.student.ID, model.SaveAnswerRequest{QuestionID: keys[0].QuestionID, Answer: json.RawMessage(`true`)})
	require.NoError(t, err)
	// Wrong answer on the negatively marked question.
	_, err = f.svc.SaveAnswer(ctx, attemptID, f.student.ID, model.SaveAnswerRequest{QuestionID: keys[2].QuestionID, Answer: json.RawMessage(`false`)})
	require.NoError(t, err)

	done, err := f.svc.Submit(ctx, attemptID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, done.Status)
	require.NotNil(t, done.Score)
	assert.Equal(t, 1.0, *done.Score) // 2 for the correct one, minus 1
	assert.Equal(t, 9.0, *done.MaxScore)
	assert.Equal(t, 1, done.CorrectCount)
	assert.Equal(t, 1, done.WrongCount)
	assert.Equal(t, 1, done.UnansweredCount)

	res := f.attempts.finalized[attemptID]
	assert.Len(t, res.Answers, 2, "only answered questions are stored")

	n, _ := f.svc.rdb.Exists(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	assert.Zero(t, n, "answer hash is cleared")

	_, err = f.svc.Submit(ctx, attemptID, f.student.ID)
	assert.ErrorIs(t, err, ErrAttemptClosed)

	_, err = f.svc.Start(ctx, f.exam.ID, f.student)
	assert.ErrorIs(t, err, ErrAttemptClosed)
}

func TestResetAllowsRetake(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	first, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, first.Attempt.ID, f.student.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx, first.Attempt.ID))

	second, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	assert.NotEqual(t, first.Attempt.ID, second.Attempt.ID)
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)

	n, err := f.svc.ExpireOverdue(ctx, f.now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.ExpireOverdue(ctx, f.now.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.attempts.GetByID(ctx, resp.Attempt.ID)
	assert.Equal(t, model.AttemptExpired, got.Status)
	assert.Equal(t, 3, got.UnansweredCount)
}

func TestShufflePaperIsStablePerAttempt(t *testing.T) {
	paper := &model.ExamPaper{}
	for i := 0; i < 12; i++ {
		section := 1
		if i >= 6 {
			section = 2
		}
		paper.Questions = append(paper.Questions, model.PaperQuestion{ID: uuid.New(), SectionID: section, OrderNum: i + 1})
	}
	attemptID := uuid.New()

	a := shufflePaper(paper, attemptID)
	b := shufflePaper(paper, attemptID)
	assert.Equal(t, a.Questions, b.Questions)

	for i, q := range a.Questions {
		if i < 6 {
			assert.Equal(t, 1, q.SectionID, "sections stay grouped")
		} else {
			assert.Equal(t, 2, q.SectionID)
		}
	}
	assert.Equal(t, 1, paper.Questions[0].OrderNum, "input is not modified")
	assert.ElementsMatch(t, paper.Questions, a.Questions)
}

func TestDetailsFormatsAnswers(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	keys, _ := f.store.PaperKeys(ctx, f.exam.ID)
	_, err = f.svc.SaveAnswer(ctx, resp.Attempt.ID, f.student.ID, model.SaveAnswerRequest{QuestionID: keys[0].QuestionID, Answer: json.RawMessage(`true`)})
	require.NoError(t, err)

	d, err := f.svc.Details(ctx, resp.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Midterm", d.ExamTitle)
	require.NotNil(t, d.Student)
	assert.Equal(t, "Sita", d.Student.FullName)
	require.Len(t, d.Questions, 3)

	first := d.Questions[0]
	assert.True(t, first.Answered)
	require.NotNil(t, first.IsCorrect)
	assert.True(t, *first.IsCorrect)
	assert.Equal(t, 2.0, first.MarksAwarded)
	assert.False(t, d.Questions[1].Answered)
	assert.Nil(t, d.Questions[1].IsCorrect)
}

func TestExportResultsWorkbook(t *testing.T) {
	ctx := context.Background()
	f := newAttemptFixture(t)
	resp, err := f.svc.Start(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, resp.Attempt.ID, f.student.ID)
	require.NoError(t, err)

	name, buf, err := f.svc.ExportResults(ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Contains(t, name, f.exam.ID.String())

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{resultsSheet, questionsSheet}, wb.GetSheetList())

	rows, err := wb.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Student", rows[0][1])
	assert.Equal(t, string(model.AttemptSubmitted), rows[1][3])

	rows, err = wb.GetRows(questionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "75", rows[1][4])
}
