package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/ai"
	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
	"github.com/stemsi/exstem-admin/internal/response"
)

const (
	pdfMIME = "application/pdf"
	// settleTimeout bounds the final status write of a job, which runs even
	// after the worker context is cancelled.
	settleTimeout = 5 * time.Second
)

// ExtractionStore is the persistence ExtractionService needs.
type ExtractionStore interface {
	Create(ctx context.Context, j *model.ExtractionJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExtractionJob, error)
	List(ctx context.Context, f model.ExtractionFilter) ([]model.ExtractionJob, int, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, raw string, result *model.ExtractionResult) error
	Fail(ctx context.Context, id uuid.UUID, reason, raw string) error
	ImportQuestions(ctx context.Context, id uuid.UUID, qs []model.Question) (int64, error)
	Release(ctx context.Context, id uuid.UUID) error
	ResetProcessing(ctx context.Context) (int64, error)
	Requeue(ctx context.Context, id uuid.UUID) error
	ListPendingIDs(ctx context.Context) ([]uuid.UUID, error)
}

type providerSelector interface {
	Select(name string) (ai.Provider, error)
}

type chapterGetter interface {
	GetByID(ctx context.Context, id int) (*model.Chapter, error)
}

type importValidator interface {
	ValidateImport(ctx context.Context, qs []model.Question) error
}

// ExtractionService turns uploaded PDFs into draft questions through an AI
// provider and imports the reviewed result into the bank.
type ExtractionService struct {
	jobRepo     ExtractionStore
	subjectRepo subjectGetter
	chapterRepo chapterGetter
	bankRepo    bankGetter
	questions   importValidator
	providers   providerSelector
	rdb         *redis.Client
	cfg         *config.Config
	log         zerolog.Logger
}

// NewExtractionService creates a new ExtractionService.
func NewExtractionService(
	jobRepo ExtractionStore,
	subjectRepo subjectGetter,
	chapterRepo chapterGetter,
	bankRepo bankGetter,
	questions importValidator,
	providers providerSelector,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExtractionService {
	return &ExtractionService{
		jobRepo:     jobRepo,
		subjectRepo: subjectRepo,
		chapterRepo: chapterRepo,
		bankRepo:    bankRepo,
		questions:   questions,
		providers:   providers,
		rdb:         rdb,
		cfg:         cfg,
		log:         log.With().Str("component", "extraction_service").Logger(),
	}
}

// Create stores an uploaded PDF and queues it for extraction.
func (s *ExtractionService) Create(ctx context.Context, req model.CreateExtractionRequest, fileName string, data []byte, createdBy int) (*model.ExtractionJob, error) {
	if int64(len(data)) > s.cfg.MaxPDFBytes {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, len(data), s.cfg.MaxPDFBytes)
	}
	if !mimetype.Detect(data).Is(pdfMIME) {
		return nil, fmt.Errorf("%w: only %s is accepted", ErrUnsupportedFileType, pdfMIME)
	}

	provider, err := s.providers.Select(req.Provider)
	if err != nil {
		return nil, err
	}

	job := &model.ExtractionJob{
		SubjectID: req.SubjectID,
		ChapterID: req.ChapterID,
		FileName:  filepath.Base(fileName),
		Provider:  provider.Name(),
		Status:    model.ExtractionPending,
		CreatedBy: &createdBy,
		Options: model.ExtractionOptions{
			MaxQuestions: req.MaxQuestions,
			Language:     req.Language,
		},
	}
	for _, t := range req.QuestionTypes {
		job.Options.QuestionTypes = append(job.Options.QuestionTypes, model.QuestionType(t))
	}
	if req.QBankID != "" {
		id, err := uuid.Parse(req.QBankID)
		if err != nil {
			return nil, ErrInvalidParent
		}
		job.QBankID = &id
	}
	if err := s.checkTarget(ctx, job); err != nil {
		return nil, err
	}

	path, err := s.storePDF(data)
	if err != nil {
		return nil, err
	}
	job.FilePath = path

	if err := s.jobRepo.Create(ctx, job); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	if err := s.enqueue(ctx, job.ID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID.String()).
		Str("provider", job.Provider).
		Int("bytes", len(data)).
		Msg("Extraction job queued")
	return job, nil
}

// checkTarget verifies that subject, chapter and bank are active and agree.
func (s *ExtractionService) checkTarget(ctx context.Context, job *model.ExtractionJob) error {
	subject, err := s.subjectRepo.GetByID(ctx, job.SubjectID)
	if err != nil || !subject.IsActive {
		return parentError(err)
	}
	if job.ChapterID != nil {
		ch, err := s.chapterRepo.GetByID(ctx, *job.ChapterID)
		if err != nil || !ch.IsActive || ch.SubjectID != job.SubjectID {
			return parentError(err)
		}
	}
	if job.QBankID != nil {
		bank, err := s.bankRepo.GetByID(ctx, *job.QBankID)
		if err != nil || !bank.IsActive || bank.SubjectID != job.SubjectID {
			return parentError(err)
		}
	}
	return nil
}

// parentError maps a lookup failure to ErrInvalidParent unless it is an
// infrastructure error.
func parentError(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return ErrInvalidParent
	}
	return err
}

func (s *ExtractionService) storePDF(data []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.ExtractionDir, 0o750); err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}
	path := filepath.Join(s.cfg.ExtractionDir, uuid.New().String()+".pdf")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}

func (s *ExtractionService) enqueue(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.RPush(ctx, config.WorkerKey.ExtractionQueue, id.String()).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// List retrieves a filtered page of jobs.
func (s *ExtractionService) List(ctx context.Context, f model.ExtractionFilter) ([]model.ExtractionJob, *response.Pagination, error) {
	normalizeQuery(&f.ListQuery)
	jobs, total, err := s.jobRepo.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return jobs, response.NewPagination(f.Page, f.PerPage, total), nil
}

// GetByID retrieves a job with its validated result.
func (s *ExtractionService) GetByID(ctx context.Context, id uuid.UUID) (*model.ExtractionJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// Process runs one queued job. A job that another worker already claimed is
// skipped without error. Provider and validation failures are recorded on the
// job; only infrastructure errors are returned.
func (s *ExtractionService) Process(ctx context.Context, id uuid.UUID) error {
	if err := s.jobRepo.MarkProcessing(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			s.log.Debug().Str("job_id", id.String()).Msg("Job already claimed, skipping")
			return nil
		}
		return fmt.Errorf("claim job: %w", err)
	}
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	jobLog := s.log.With().Str("job_id", id.String()).Str("provider", job.Provider).Logger()

	raw, err := s.extract(ctx, job)
	if err != nil && ctx.Err() != nil {
		jobLog.Info().Msg("Extraction interrupted, releasing job")
		return s.settle(ctx, func(ctx context.Context) error { return s.jobRepo.Release(ctx, id) })
	}
	if err != nil {
		jobLog.Warn().Err(err).Msg("Extraction failed")
		return s.settle(ctx, func(ctx context.Context) error { return s.jobRepo.Fail(ctx, id, err.Error(), raw) })
	}

	result, err := ai.ParseExtraction(raw)
	if err != nil {
		jobLog.Warn().Err(err).Msg("Extraction output rejected")
		return s.settle(ctx, func(ctx context.Context) error { return s.jobRepo.Fail(ctx, id, err.Error(), raw) })
	}

	if err := s.settle(ctx, func(ctx context.Context) error { return s.jobRepo.Complete(ctx, id, raw, result) }); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	jobLog.Info().
		Int("questions", len(result.Questions)).
		Int("issues", len(result.Issues)).
		Msg("Extraction completed")
	return nil
}

// settle runs the final write of a job on a context that survives shutdown.
func (s *ExtractionService) settle(ctx context.Context, write func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	return write(ctx)
}

// extract calls the job's provider with a bounded timeout.
func (s *ExtractionService) extract(ctx context.Context, job *model.ExtractionJob) (string, error) {
	provider, err := s.providers.Select(job.Provider)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(job.FilePath)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	opts := ai.PromptOptions{
		QuestionTypes: job.Options.QuestionTypes,
		MaxQuestions:  job.Options.MaxQuestions,
		Language:      job.Options.Language,
	}
	if opts.MaxQuestions == 0 {
		opts.MaxQuestions = s.cfg.AI.MaxQuestions
	}
	if subject, err := s.subjectRepo.GetByID(ctx, job.SubjectID); err == nil {
		opts.Subject = subject.Name
		if subject.ClassLevel != nil {
			opts.ClassLevel = subject.ClassLevel.Name
		}
	}
	if job.ChapterID != nil {
		if ch, err := s.chapterRepo.GetByID(ctx, *job.ChapterID); err == nil {
			opts.Chapter = ch.Name
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.AI.Timeout)
	defer cancel()

	return provider.Extract(callCtx, ai.Document{
		FileName: job.FileName,
		MIMEType: pdfMIME,
		Data:     data,
	}, ai.BuildExtractionPrompt(opts))
}

// Import inserts the selected extracted questions into the bank. An empty
// selection imports everything.
func (s *ExtractionService) Import(ctx context.Context, id uuid.UUID, req model.ImportExtractionRequest, createdBy int) (int, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if job.Status != model.ExtractionCompleted || job.Result == nil {
		return 0, ErrExtractionNotReady
	}

	picked, err := selectItems(job.Result.Questions, req.Indices)
	if err != nil {
		return 0, err
	}

	qs := make([]model.Question, len(picked))
	for i, item := range picked {
		qs[i] = toQuestion(job, item, createdBy)
	}

	if err := s.questions.ValidateImport(ctx, qs); err != nil {
		return 0, err
	}
	n, err := s.jobRepo.ImportQuestions(ctx, id, qs)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return 0, ErrExtractionNotReady
		}
		return 0, err
	}

	s.log.Info().Str("job_id", id.String()).Int64("count", n).Msg("Extracted questions imported")
	return int(n), nil
}

// selectItems returns the items at indices in ascending order, or all items
// when indices is empty.
func selectItems(items []model.ExtractedQuestion, indices []int) ([]model.ExtractedQuestion, error) {
	if len(items) == 0 {
		return nil, ErrNothingToImport
	}
	if len(indices) == 0 {
		return items, nil
	}

	uniq := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(items) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidFilter, i)
		}
		uniq[i] = true
	}
	order := make([]int, 0, len(uniq))
	for i := range uniq {
		order = append(order, i)
	}
	sort.Ints(order)

	out := make([]model.ExtractedQuestion, len(order))
	for n, i := range order {
		out[n] = items[i]
	}
	return out, nil
}

func toQuestion(job *model.ExtractionJob, item model.ExtractedQuestion, createdBy int) model.Question {
	q := model.Question{
		SubjectID:     job.SubjectID,
		ChapterID:     job.ChapterID,
		QBankID:       job.QBankID,
		QuestionType:  item.QuestionType,
		QuestionText:  item.QuestionText,
		Options:       item.Options,
		CorrectAnswer: item.CorrectAnswer,
		Explanation:   item.Explanation,
		Difficulty:    item.Difficulty,
		Marks:         item.Marks,
		Tolerance:     item.Tolerance,
		Source:        model.SourceAI,
		IsActive:      true,
		CreatedBy:     &createdBy,
	}
	if q.Difficulty == "" {
		q.Difficulty = model.DifficultyMedium
	}
	if q.Marks == 0 {
		q.Marks = 1
	}
	return q
}

// Retry puts a failed job back in the queue.
func (s *ExtractionService) Retry(ctx context.Context, id uuid.UUID) (*model.ExtractionJob, error) {
	if err := s.jobRepo.Requeue(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			if _, getErr := s.jobRepo.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrExtractionNotReady
		}
		return nil, err
	}
	if err := s.enqueue(ctx, id); err != nil {
		return nil, err
	}
	return s.jobRepo.GetByID(ctx, id)
}

// RequeuePending pushes every pending job back onto the queue. It runs at
// startup so jobs queued or running before a crash are not lost; jobs left in
// processing are reset to pending first.
func (s *ExtractionService) RequeuePending(ctx context.Context) (int, error) {
	reset, err := s.jobRepo.ResetProcessing(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted jobs: %w", err)
	}
	if reset > 0 {
		s.log.Warn().Int64("count", reset).Msg("Interrupted extraction jobs reset to pending")
	}

	ids, err := s.jobRepo.ListPendingIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.ExtractionQueue, values...).Err(); err != nil {
		return 0, fmt.Errorf("enqueue pending jobs: %w", err)
	}
	s.log.Info().Int("count", len(ids)).Msg("Pending extraction jobs requeued")
	return len(ids), nil
}
