package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/ai"
	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type stubProvider struct {
	out    string
	err    error
	prompt string
	// onExtract runs before the reply is returned.
	onExtract func()
}

func (p *stubProvider) Name() string { return "gemini" }

func (p *stubProvider) Extract(_ context.Context, _ ai.Document, prompt string) (string, error) {
	p.prompt = prompt
	if p.onExtract != nil {
		p.onExtract()
	}
	return p.out, p.err
}

type fakeJobs struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*model.ExtractionJob
	inserted []model.Question
}

func (f *fakeJobs) Create(_ context.Context, j *model.ExtractionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j.ID = uuid.New()
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID) (*model.ExtractionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) List(context.Context, model.ExtractionFilter) ([]model.ExtractionJob, int, error) {
	return nil, 0, nil
}

func (f *fakeJobs) move(id uuid.UUID, from model.ExtractionStatus, apply func(*model.ExtractionJob)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.Status != from {
		return repository.ErrStaleState
	}
	apply(j)
	return nil
}

func (f *fakeJobs) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return f.move(id, model.ExtractionPending, func(j *model.ExtractionJob) { j.Status = model.ExtractionProcessing })
}

func (f *fakeJobs) Complete(ctx context.Context, id uuid.UUID, raw string, result *model.ExtractionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.move(id, model.ExtractionProcessing, func(j *model.ExtractionJob) {
		j.Status = model.ExtractionCompleted
		j.RawOutput = raw
		j.Result = result
		j.QuestionCount = len(result.Questions)
	})
}

func (f *fakeJobs) Fail(ctx context.Context, id uuid.UUID, reason, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.move(id, model.ExtractionProcessing, func(j *model.ExtractionJob) {
		j.Status = model.ExtractionFailed
		j.Error = reason
		j.RawOutput = raw
	})
}

func (f *fakeJobs) ImportQuestions(_ context.Context, id uuid.UUID, qs []model.Question) (int64, error) {
	err := f.move(id, model.ExtractionCompleted, func(j *model.ExtractionJob) {
		j.Status = model.ExtractionImported
		j.ImportedCount = len(qs)
		f.inserted = append(f.inserted, qs...)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(qs)), nil
}

func (f *fakeJobs) Release(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.move(id, model.ExtractionProcessing, func(j *model.ExtractionJob) { j.Status = model.ExtractionPending })
}

func (f *fakeJobs) ResetProcessing(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, j := range f.jobs {
		if j.Status == model.ExtractionProcessing {
			j.Status = model.ExtractionPending
			n++
		}
	}
	return n, nil
}

func (f *fakeJobs) status(id uuid.UUID) model.ExtractionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

func (f *fakeJobs) Requeue(_ context.Context, id uuid.UUID) error {
	return f.move(id, model.ExtractionFailed, func(j *model.ExtractionJob) {
		j.Status = model.ExtractionPending
		j.Error = ""
	})
}

func (f *fakeJobs) ListPendingIDs(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, j := range f.jobs {
		if j.Status == model.ExtractionPending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeSubjects map[int]*model.Subject

func (f fakeSubjects) GetByID(_ context.Context, id int) (*model.Subject, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

type fakeChapters map[int]*model.Chapter

func (f fakeChapters) GetByID(_ context.Context, id int) (*model.Chapter, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

type fakeBanks map[uuid.UUID]*model.QuestionBank

func (f fakeBanks) GetByID(_ context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	if b, ok := f[id]; ok {
		return b, nil
	}
	return nil, repository.ErrNotFound
}

type stubValidator struct {
	err error
}

func (v stubValidator) ValidateImport(context.Context, []model.Question) error { return v.err }

type extractionFixture struct {
	svc      *ExtractionService
	jobs     *fakeJobs
	provider *stubProvider
	checker  *stubValidator
	bankID   uuid.UUID
	cfg      *config.Config
}

func newExtractionFixture(t *testing.T) *extractionFixture {
	t.Helper()
	_, rdb := newTestRedis(t)
	provider := &stubProvider{}
	registry := ai.NewRegistry(config.AIConfig{DefaultProvider: "gemini"}, testLog)
	registry.Register(provider)

	bankID := uuid.New()
	cfg := &config.Config{
		MaxPDFBytes:   1 << 20,
		ExtractionDir: t.TempDir(),
		AI:            config.AIConfig{Timeout: time.Second, MaxQuestions: 20},
	}
	f := &extractionFixture{
		jobs:     &fakeJobs{jobs: map[uuid.UUID]*model.ExtractionJob{}},
		provider: provider,
		checker:  &stubValidator{},
		bankID:   bankID,
		cfg:      cfg,
	}
	subjects := fakeSubjects{
		20: {ID: 20, Name: "Physics", IsActive: true, ClassLevel: &model.ClassLevel{ID: 10, Name: "Grade 10"}},
		21: {ID: 21, Name: "Chemistry", IsActive: true},
	}
	chapters := fakeChapters{7: {ID: 7, SubjectID: 20, Name: "Optics", IsActive: true}}
	banks := fakeBanks{bankID: {ID: bankID, SubjectID: 20, IsActive: true}}
	f.svc = NewExtractionService(f.jobs, subjects, chapters, banks, f.checker, registry, rdb, cfg, testLog)
	return f
}

const twoQuestions = "```json\n" + `{"questions":[
 {"question_type":"true_false","question_text":"Light bends in glass.","correct_answer":true},
 {"question_type":"true_false","question_text":"Mirrors absorb all light.","correct_answer":false,"difficulty":"Easy","marks":2},
 {"question_type":"single_choice","question_text":"Broken","options":[],"correct_answer":"A"}
]}` + "\n```"

func TestCreateExtractionQueuesJob(t *testing.T) {
	ctx := context.Background()
	f := newExtractionFixture(t)

	job, err := f.svc.Create(ctx, model.CreateExtractionRequest{SubjectID: 20, ChapterID: intPtr(7), QBankID: f.bankID.String()}, "../notes.pdf", samplePDF, 1)
	require.NoError(t, err)
	assert.Equal(t, "notes.pdf", job.FileName)
	assert.Equal(t, "gemini", job.Provider)
	assert.Equal(t, model.ExtractionPending, job.Status)

	stored, err := os.ReadFile(job.FilePath)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, stored)

	queued, err := f.svc.rdb.LRange(ctx, config.WorkerKey.ExtractionQueue, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID.String()}, queued)
}

func TestCreateExtractionRejects(t *testing.T) {
	tests := []struct {
		name string
		req  model.CreateExtractionRequest
		data []byte
		want error
	}{
		{"not a pdf", model.CreateExtractionRequest{SubjectID: 20}, []byte("hello world"), ErrUnsupportedFileType},
		{"too large", model.CreateExtractionRequest{SubjectID: 20}, append(append([]byte{}, samplePDF...), make([]byte, 1<<20)...), ErrFileTooLarge},
		{"unknown provider", model.CreateExtractionRequest{SubjectID: 20, Provider: "openai"}, samplePDF, ai.ErrProviderUnavailable},
		{"unknown subject", model.CreateExtractionRequest{SubjectID: 99}, samplePDF, ErrInvalidParent},
		{"chapter of another subject", model.CreateExtractionRequest{SubjectID: 21, ChapterID: intPtr(7)}, samplePDF, ErrInvalidParent},
		{"malformed bank id", model.CreateExtractionRequest{SubjectID: 20, QBankID: "nope"}, samplePDF, ErrInvalidParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExtractionFixture(t)
			_, err := f.svc.Create(context.Background(), tt.req, "a.pdf", tt.data, 1)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.jobs.jobs)
		})
	}
}

func TestProcessAndImport(t *testing.T) {
	ctx := context.Background()
	f := newExtractionFixture(t)
	f.provider.out = twoQuestions

	job, err := f.svc.Create(ctx, model.CreateExtractionRequest{SubjectID: 20, ChapterID: intPtr(7)}, "notes.pdf", samplePDF, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, job.ID))
	assert.Contains(t, f.provider.prompt, "Physics")
	assert.Contains(t, f.provider.prompt, "Optics")

	done, err := f.svc.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionCompleted, done.Status)
	require.Len(t, done.Result.Questions, 2)
	assert.Len(t, done.Result.Issues, 1)

	// a second delivery of the same id is a no-op
	require.NoError(t, f.svc.Process(ctx, job.ID))

	n, err := f.svc.Import(ctx, job.ID, model.ImportExtractionRequest{Indices: []int{1, 1}}, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.jobs.inserted, 1)
	q := f.jobs.inserted[0]
	assert.Equal(t, "Mirrors absorb all light.", q.QuestionText)
	assert.Equal(t, model.SourceAI, q.Source)
	assert.Equal(t, "easy", q.Difficulty)
	assert.Equal(t, 2.0, q.Marks)
	assert.Equal(t, 20, q.SubjectID)
	assert.Equal(t, intPtr(7), q.ChapterID)

	_, err = f.svc.Import(ctx, job.ID, model.ImportExtractionRequest{}, 9)
	assert.ErrorIs(t, err, ErrExtractionNotReady, "already imported")
}

func TestProcessRecordsFailures(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		err      error
		contains string
	}{
		{"provider error", "", errors.New("quota exceeded"), "quota exceeded"},
		{"malformed output", "I could not read this file.", nil, "malformed"},
		{"nothing valid", `{"questions":[{"question_type":"essay"}]}`, nil, "no valid questions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newExtractionFixture(t)
			f.provider.out, f.provider.err = tt.out, tt.err

			job, err := f.svc.Create(ctx, model.CreateExtractionRequest{SubjectID: 20}, "a.pdf", samplePDF, 1)
			require.NoError(t, err)
			require.NoError(t, f.svc.Process(ctx, job.ID))

			failed, _ := f.svc.GetByID(ctx, job.ID)
			assert.Equal(t, model.ExtractionFailed, failed.Status)
			assert.Contains(t, failed.Error, tt.contains)

			_, err = f.svc.Import(ctx, job.ID, model.ImportExtractionRequest{}, 1)
			assert.ErrorIs(t, err, ErrExtractionNotReady)

			retried, err := f.svc.Retry(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.ExtractionPending, retried.Status)
		})
	}
}

func TestSelectItems(t *testing.T) {
	items := []model.ExtractedQuestion{{QuestionText: "a"}, {QuestionText: "b"}, {QuestionText: "c"}}

	got, err := selectItems(items, []int{2, 0, 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].QuestionText)
	assert.Equal(t, "c", got[1].QuestionText)

	all, err := selectItems(items, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = selectItems(items, []int{3})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = selectItems(nil, nil)
	assert.ErrorIs(t, err, ErrNothingToImport)
}

func TestRequeuePending(t *testing.T) {
	ctx := context.Background()
	f := newExtractionFixture(t)
	_, err := f.svc.Create(ctx, model.CreateExtractionRequest{SubjectID: 20}, "a.pdf", samplePDF, 1)
	require.NoError(t, err)

	n, err := f.svc.RequeuePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	length, _ := f.svc.rdb.LLen(ctx, config.WorkerKey.ExtractionQueue).Result()
	assert.EqualValues(t, 2, length)
}

func TestImportRejectedBatchLeavesJobCompleted(t *testing.T) {
	ctx := context.Background()
	f := newExtractionFixture(t)
	f.provider.out = twoQuestions

	job, err := f.svc.Create(ctx, model.CreateExtractionRequest{SubjectID: 20}, "a.pdf", samplePDF, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, job.ID))

	f.checker.err = ErrInvalidParent
	_, err = f.svc.Import(ctx, job.ID, model.ImportExtractionRequest{}, 1)
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Empty(t, f.jobs.inserted)
	assert.Equal(t, model.ExtractionCompleted, f.jobs.status(job.ID))
}

func TestConcurrentImportsInsertOnce(t *testing.T) {
	ctx := context.Background()
	f := newExtractionFixture(t)
	f.provider.out = twoQuestions

	job, err := f.svc.Create(ctx, model.CreateExtractionRequest{SubjectID: 20}, "a.pdf", samplePDF, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, job.ID))

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Import(ctx, job.ID, model.ImportExtractionRequest{}, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrExtractionNotReady)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.jobs.inserted, 2)
}

func TestProcessSettlesJobDuringShutdown(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want model.ExtractionStatus
	}{
		{"provider call cut off", "", context.Canceled, model.ExtractionPending},
		{"output rejected", "not json", nil, model.ExtractionFailed},
		{"output accepted", twoQuestions, nil, model.ExtractionCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExtractionFixture(t)
			job, err := f.svc.Create(context.Background(), model.CreateExtractionRequest{SubjectID: 20}, "a.pdf", samplePDF, 1)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			f.provider.out, f.provider.err = tt.out, tt.err
			f.provider.onExtract = cancel

			require.NoError(t, f.svc.Process(ctx, job.ID))
			assert.Equal(t, tt.want, f.jobs.status(job.ID))
		})
	}
}

func TestRequeuePendingRecoversInterruptedJobs(t *testing.T) {
	ctx := context.Background()
	f := newExtractionFixture(t)
	job, err := f.svc.Create(ctx, model.CreateExtractionRequest{SubjectID: 20}, "a.pdf", samplePDF, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.rdb.Del(ctx, config.WorkerKey.ExtractionQueue).Err())

	// claimed by a worker that then died
	require.NoError(t, f.jobs.MarkProcessing(ctx, job.ID))

	n, err := f.svc.RequeuePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.ExtractionPending, f.jobs.status(job.ID))

	queued, err := f.svc.rdb.LRange(ctx, config.WorkerKey.ExtractionQueue, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID.String()}, queued)
}
