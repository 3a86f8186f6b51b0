package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
)

// fakeQuestionStore keeps questions in memory. AssignToBank only moves
// questions of the bank's subject, like the SQL does.
type fakeQuestionStore struct {
	mu        sync.Mutex
	questions map[uuid.UUID]*model.Question
	banks     fakeBanks
	listed    *uuid.UUID
	bulkCalls int
}

func newFakeQuestionStore(banks fakeBanks) *fakeQuestionStore {
	return &fakeQuestionStore{questions: map[uuid.UUID]*model.Question{}, banks: banks}
}

func (f *fakeQuestionStore) add(subjectID int) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.questions[id] = &model.Question{ID: id, SubjectID: subjectID, QuestionType: model.QuestionTrueFalse, IsActive: true}
	return id
}

func (f *fakeQuestionStore) List(_ context.Context, _ model.QuestionFilter, qbankID *uuid.UUID) ([]model.Question, int, error) {
	f.listed = qbankID
	return nil, 0, nil
}

func (f *fakeQuestionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuestionStore) Create(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q.ID = uuid.New()
	cp := *q
	f.questions[q.ID] = &cp
	return nil
}

func (f *fakeQuestionStore) Update(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.questions[q.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *q
	f.questions[q.ID] = &cp
	return nil
}

func (f *fakeQuestionStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.IsActive = active
	return nil
}

func (f *fakeQuestionStore) BulkCreate(_ context.Context, qs []model.Question) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	for i := range qs {
		qs[i].ID = uuid.New()
		cp := qs[i]
		f.questions[cp.ID] = &cp
	}
	return int64(len(qs)), nil
}

func (f *fakeQuestionStore) AssignToBank(_ context.Context, ids []uuid.UUID, qbankID *uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		q, ok := f.questions[id]
		if !ok {
			continue
		}
		if qbankID != nil {
			bank, ok := f.banks[*qbankID]
			if !ok || bank.SubjectID != q.SubjectID {
				continue
			}
		}
		q.QBankID = qbankID
		n++
	}
	return n, nil
}

// chapterSubjects maps chapter id to subject id and implements chapterCounter.
type chapterSubjects map[int]int

func (c chapterSubjects) CountInSubject(_ context.Context, subjectID int, ids []int) (int, error) {
	n := 0
	for _, id := range ids {
		if s, ok := c[id]; ok && s == subjectID {
			n++
		}
	}
	return n, nil
}

type questionFixture struct {
	svc       *QuestionService
	store     *fakeQuestionStore
	physics   uuid.UUID
	chemistry uuid.UUID
	archived  uuid.UUID
}

func newQuestionFixture() *questionFixture {
	f := &questionFixture{physics: uuid.New(), chemistry: uuid.New(), archived: uuid.New()}
	banks := fakeBanks{
		f.physics:   {ID: f.physics, SubjectID: 20, IsActive: true},
		f.chemistry: {ID: f.chemistry, SubjectID: 21, IsActive: true},
		f.archived:  {ID: f.archived, SubjectID: 20, IsActive: false},
	}
	f.store = newFakeQuestionStore(banks)
	subjects := activeSet{20: true, 21: true, 22: false}
	chapters := chapterSubjects{7: 20, 8: 21}
	f.svc = NewQuestionService(f.store, subjects, chapters, banks, testLog)
	return f
}

func trueFalse(subjectID int) model.QuestionRequest {
	return model.QuestionRequest{
		SubjectID:     subjectID,
		QuestionType:  model.QuestionTrueFalse,
		QuestionText:  "Light travels faster than sound.",
		CorrectAnswer: json.RawMessage(`true`),
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func TestQuestionCreatePlacement(t *testing.T) {
	f := newQuestionFixture()
	unknownBank := uuid.New()

	tests := []struct {
		name   string
		mutate func(r *model.QuestionRequest)
		want   error
	}{
		{"subject only", func(r *model.QuestionRequest) {}, nil},
		{"chapter and bank of the subject", func(r *model.QuestionRequest) {
			r.ChapterID = intPtr(7)
			r.QBankID = uuidPtr(f.physics)
		}, nil},
		{"inactive subject", func(r *model.QuestionRequest) { r.SubjectID = 22 }, ErrInvalidParent},
		{"unknown subject", func(r *model.QuestionRequest) { r.SubjectID = 99 }, ErrInvalidParent},
		{"chapter of another subject", func(r *model.QuestionRequest) { r.ChapterID = intPtr(8) }, ErrInvalidParent},
		{"bank of another subject", func(r *model.QuestionRequest) { r.QBankID = uuidPtr(f.chemistry) }, ErrInvalidParent},
		{"archived bank", func(r *model.QuestionRequest) { r.QBankID = uuidPtr(f.archived) }, ErrInvalidParent},
		{"unknown bank", func(r *model.QuestionRequest) { r.QBankID = &unknownBank }, ErrInvalidParent},
		{"bad answer key", func(r *model.QuestionRequest) { r.CorrectAnswer = json.RawMessage(`"maybe"`) }, ErrInvalidQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := trueFalse(20)
			tt.mutate(&req)

			q, err := f.svc.Create(context.Background(), req, 5)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, intPtr(5), q.CreatedBy)
			assert.Equal(t, model.SourceManual, q.Source)
		})
	}
}

func TestQuestionCreateNormalizesByType(t *testing.T) {
	f := newQuestionFixture()
	req := trueFalse(20)
	req.Options = []model.Option{{Key: "A", Text: "ignored"}}
	tol := 0.5
	req.Tolerance = &tol

	q, err := f.svc.Create(context.Background(), req, 1)
	require.NoError(t, err)
	assert.Empty(t, q.Options)
	assert.Nil(t, q.Tolerance)
	assert.Equal(t, model.DifficultyMedium, q.Difficulty)
}

func TestQuestionUpdateChecksPlacement(t *testing.T) {
	ctx := context.Background()
	f := newQuestionFixture()
	q, err := f.svc.Create(ctx, trueFalse(20), 1)
	require.NoError(t, err)

	moved := trueFalse(20)
	moved.QBankID = uuidPtr(f.chemistry)
	_, err = f.svc.Update(ctx, q.ID, moved)
	assert.ErrorIs(t, err, ErrInvalidParent)

	stored, err := f.store.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.QBankID)

	moved.QBankID = uuidPtr(f.physics)
	updated, err := f.svc.Update(ctx, q.ID, moved)
	require.NoError(t, err)
	assert.Equal(t, uuidPtr(f.physics), updated.QBankID)
}

func TestBulkCreateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newQuestionFixture()

	bad := trueFalse(20)
	bad.ChapterID = intPtr(8)
	_, err := f.svc.BulkCreate(ctx, []model.QuestionRequest{trueFalse(20), bad, trueFalse(21)}, 1)
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Contains(t, err.Error(), "question 1")
	assert.Zero(t, f.store.bulkCalls)
	assert.Empty(t, f.store.questions)

	_, err = f.svc.BulkCreate(ctx, nil, 1)
	assert.ErrorIs(t, err, ErrNothingToImport)

	n, err := f.svc.BulkCreate(ctx, []model.QuestionRequest{trueFalse(20), trueFalse(20), trueFalse(21)}, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 1, f.store.bulkCalls)
	for _, q := range f.store.questions {
		assert.Equal(t, intPtr(3), q.CreatedBy)
	}
}

func TestQuestionListBankFilter(t *testing.T) {
	ctx := context.Background()
	f := newQuestionFixture()

	_, _, err := f.svc.List(ctx, model.QuestionFilter{QBankID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, page, err := f.svc.List(ctx, model.QuestionFilter{QBankID: " " + f.physics.String() + " "})
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Equal(t, uuidPtr(f.physics), f.store.listed)
}

func TestAssignToBankKeepsSubjects(t *testing.T) {
	ctx := context.Background()

	t.Run("questions of another subject are skipped", func(t *testing.T) {
		f := newQuestionFixture()
		p1, p2, c1 := f.store.add(20), f.store.add(20), f.store.add(21)

		res, err := f.svc.AssignToBank(ctx, []uuid.UUID{p1, c1, p2, p1, uuid.New()}, uuidPtr(f.physics))
		require.NoError(t, err)
		assert.Equal(t, &model.AssignQuestionsResult{Updated: 2, Skipped: 2}, res)

		other, _ := f.store.GetByID(ctx, c1)
		assert.Nil(t, other.QBankID)
		moved, _ := f.store.GetByID(ctx, p2)
		assert.Equal(t, uuidPtr(f.physics), moved.QBankID)
	})

	t.Run("nil bank unassigns any subject", func(t *testing.T) {
		f := newQuestionFixture()
		p1, c1 := f.store.add(20), f.store.add(21)

		res, err := f.svc.AssignToBank(ctx, []uuid.UUID{p1, c1}, nil)
		require.NoError(t, err)
		assert.Equal(t, &model.AssignQuestionsResult{Updated: 2}, res)
	})

	rejected := []struct {
		name string
		bank func(f *questionFixture) uuid.UUID
	}{
		{"archived bank", func(f *questionFixture) uuid.UUID { return f.archived }},
		{"unknown bank", func(*questionFixture) uuid.UUID { return uuid.New() }},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			f := newQuestionFixture()
			_, err := f.svc.AssignToBank(ctx, []uuid.UUID{f.store.add(20)}, uuidPtr(tt.bank(f)))
			assert.ErrorIs(t, err, ErrInvalidParent)
		})
	}
}
