package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
)

var testLog = zerolog.Nop()

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func intPtr(v int) *int { return &v }

// activeSet implements activeChecker.
type activeSet map[int]bool

func (a activeSet) ExistsActive(_ context.Context, id int) (bool, error) {
	return a[id], nil
}

// fakeExamStore is an in-memory ScheduledExamStore.
type fakeExamStore struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.ScheduledExam
	keys  map[uuid.UUID][]model.PaperKey
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{
		exams: map[uuid.UUID]*model.ScheduledExam{},
		keys:  map[uuid.UUID][]model.PaperKey{},
	}
}

func (f *fakeExamStore) put(e *model.ScheduledExam) *model.ScheduledExam {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	f.exams[e.ID] = e
	return e
}

func (f *fakeExamStore) Create(_ context.Context, e *model.ScheduledExam) error {
	f.put(e)
	return nil
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.ScheduledExam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamStore) List(context.Context, model.ScheduledExamFilter) ([]model.ScheduledExam, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ScheduledExam{}
	for _, e := range f.exams {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (f *fakeExamStore) Update(_ context.Context, e *model.ScheduledExam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.exams[e.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *e
	f.exams[e.ID] = &cp
	return nil
}

func (f *fakeExamStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.IsActive = active
	return nil
}

func (f *fakeExamStore) Transition(_ context.Context, id uuid.UUID, from []model.ExamStatus, to model.ExamStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return repository.ErrStaleState
	}
	for _, s := range from {
		if e.Status == s {
			e.Status = to
			return nil
		}
	}
	return repository.ErrStaleState
}

func (f *fakeExamStore) ReplacePaper(_ context.Context, examID uuid.UUID, paper []model.ExamQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]model.PaperKey, len(paper))
	total := 0.0
	for i, p := range paper {
		keys[i] = model.PaperKey{
			QuestionID:    p.QuestionID,
			SectionID:     p.SectionID,
			SectionName:   p.SectionName,
			OrderNum:      p.OrderNum,
			QuestionType:  model.QuestionTrueFalse,
			QuestionText:  "Q" + p.QuestionID.String(),
			CorrectAnswer: json.RawMessage(`true`),
			Marks:         p.Marks,
			NegativeMarks: p.NegativeMarks,
		}
		total += p.Marks
	}
	f.keys[examID] = keys
	e := f.exams[examID]
	e.QuestionCount = len(paper)
	e.TotalMarks = total
	return nil
}

func (f *fakeExamStore) PaperKeys(_ context.Context, examID uuid.UUID) ([]model.PaperKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PaperKey(nil), f.keys[examID]...), nil
}

func (f *fakeExamStore) StartDue(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, e := range f.exams {
		if e.Status == model.ExamScheduled && e.IsActive && !e.StartAt.After(now) && e.EndAt.After(now) {
			e.Status = model.ExamLive
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (f *fakeExamStore) CompleteEnded(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, e := range f.exams {
		if (e.Status == model.ExamScheduled || e.Status == model.ExamLive) && !e.EndAt.After(now) {
			e.Status = model.ExamCompleted
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (f *fakeExamStore) ListIDsByStatus(_ context.Context, statuses ...model.ExamStatus) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, e := range f.exams {
		for _, s := range statuses {
			if e.IsActive && e.Status == s {
				ids = append(ids, e.ID)
			}
		}
	}
	return ids, nil
}

func (f *fakeExamStore) ListAvailable(context.Context, int, int, int) ([]model.AvailableExam, error) {
	return []model.AvailableExam{}, nil
}

// fakeStructures implements structureGetter.
type fakeStructures map[int]*model.ExamStructure

func (f fakeStructures) GetByID(_ context.Context, id int) (*model.ExamStructure, error) {
	st, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return st, nil
}

// fakePicker draws from a fixed pool per question type, honoring exclusions.
type fakePicker struct {
	pool map[model.QuestionType][]uuid.UUID
}

func (f *fakePicker) PickRandom(_ context.Context, c model.SectionCriteria, n int, exclude []uuid.UUID) ([]uuid.UUID, error) {
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var qt model.QuestionType
	if c.QuestionType != nil {
		qt = *c.QuestionType
	}
	var out []uuid.UUID
	for _, id := range f.pool[qt] {
		if len(out) == n {
			break
		}
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// fakeAttemptStore is an in-memory AttemptStore.
type fakeAttemptStore struct {
	mu        sync.Mutex
	attempts  map[uuid.UUID]*model.ExamAttempt
	answers   map[uuid.UUID]map[uuid.UUID]json.RawMessage
	finalized map[uuid.UUID]model.AttemptResult
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts:  map[uuid.UUID]*model.ExamAttempt{},
		answers:   map[uuid.UUID]map[uuid.UUID]json.RawMessage{},
		finalized: map[uuid.UUID]model.AttemptResult{},
	}
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.ExamAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.attempts {
		if x.ExamID == a.ExamID && x.UserID == a.UserID && x.IsActive {
			return repository.ErrDuplicate
		}
	}
	a.ID = uuid.New()
	a.IsActive = true
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) GetActive(_ context.Context, examID uuid.UUID, userID int) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.ExamID == examID && a.UserID == userID && a.IsActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAttemptStore) ListByExam(_ context.Context, examID uuid.UUID, _ model.AttemptFilter) ([]model.ExamAttempt, int, error) {
	out, err := f.ListForExport(context.Background(), examID)
	return out, len(out), err
}

func (f *fakeAttemptStore) ListForExport(_ context.Context, examID uuid.UUID) ([]model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ExamAttempt{}
	for _, a := range f.attempts {
		if a.ExamID == examID && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) ListOverdue(_ context.Context, now time.Time, _ int) ([]model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ExamAttempt{}
	for _, a := range f.attempts {
		if a.IsActive && a.Status == model.AttemptInProgress && !a.ExpiresAt.After(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.IsActive = active
	return nil
}

func (f *fakeAttemptStore) Answers(_ context.Context, attemptID uuid.UUID) (map[uuid.UUID]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uuid.UUID]json.RawMessage{}
	for k, v := range f.answers[attemptID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAttemptStore) Finalize(_ context.Context, attemptID uuid.UUID, res model.AttemptResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok || a.Status != model.AttemptInProgress {
		return repository.ErrStaleState
	}
	a.Status = res.Status
	at := res.SubmittedAt
	a.SubmittedAt = &at
	score, maxScore := res.Score, res.MaxScore
	a.Score, a.MaxScore = &score, &maxScore
	a.CorrectCount, a.WrongCount = res.CorrectCount, res.WrongCount
	a.UnansweredCount, a.PendingCount = res.UnansweredCount, res.PendingCount
	f.finalized[attemptID] = res
	return nil
}

func (f *fakeAttemptStore) QuestionStats(_ context.Context, _ uuid.UUID) ([]model.QuestionStat, error) {
	return []model.QuestionStat{{QuestionID: uuid.New(), OrderNum: 1, QuestionText: "Q1", Answered: 4, Correct: 3}}, nil
}

// fakeUsers implements userGetter, loginStore and UserStore.
type fakeUsers struct {
	mu     sync.Mutex
	users  map[int]*model.User
	nextID int
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: map[int]*model.User{}, nextID: 100}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) List(context.Context, model.UserFilter) ([]model.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.users {
		if x.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[p.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *p
	u.Profile = &cp
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (f *fakeUsers) SetActive(_ context.Context, id int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// fakeRoles implements permissionGetter, roleGetter and RoleStore.
type fakeRoles struct {
	roles map[int][]string
	names map[int]string
}

func (f *fakeRoles) GetPermissionsByRoleID(_ context.Context, roleID int) ([]string, error) {
	return f.roles[roleID], nil
}

func (f *fakeRoles) GetRoleByID(_ context.Context, id int) (*model.RoleWithPermissions, error) {
	perms, ok := f.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.RoleWithPermissions{Role: &model.Role{ID: id, Name: f.names[id]}, Permissions: perms}, nil
}

func (f *fakeRoles) ListRolesWithPermissions(context.Context) ([]model.RoleWithPermissions, error) {
	return nil, nil
}

func (f *fakeRoles) CreateRole(_ context.Context, name string, codes []string) (int, error) {
	id := len(f.roles) + 1
	for f.roles[id] != nil {
		id++
	}
	f.roles[id] = codes
	f.names[id] = name
	return id, nil
}

func (f *fakeRoles) UpdateRole(_ context.Context, id int, name string, codes []string) error {
	if _, ok := f.roles[id]; !ok {
		return repository.ErrNotFound
	}
	f.roles[id] = codes
	f.names[id] = name
	return nil
}

func (f *fakeRoles) DeleteRole(_ context.Context, id int) error {
	if _, ok := f.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.roles, id)
	return nil
}
