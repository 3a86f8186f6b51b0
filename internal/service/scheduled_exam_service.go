package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
	"github.com/stemsi/exstem-admin/internal/response"
)

// ScheduledExamStore is the persistence ScheduledExamService needs.
type ScheduledExamStore interface {
	Create(ctx context.Context, e *model.ScheduledExam) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error)
	List(ctx context.Context, f model.ScheduledExamFilter) ([]model.ScheduledExam, int, error)
	Update(ctx context.Context, e *model.ScheduledExam) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Transition(ctx context.Context, id uuid.UUID, from []model.ExamStatus, to model.ExamStatus) error
	ReplacePaper(ctx context.Context, examID uuid.UUID, paper []model.ExamQuestion) error
	PaperKeys(ctx context.Context, examID uuid.UUID) ([]model.PaperKey, error)
	StartDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	CompleteEnded(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListIDsByStatus(ctx context.Context, statuses ...model.ExamStatus) ([]uuid.UUID, error)
	ListAvailable(ctx context.Context, classLevelID, schoolID, userID int) ([]model.AvailableExam, error)
}

type structureGetter interface {
	GetByID(ctx context.Context, id int) (*model.ExamStructure, error)
}

type questionPicker interface {
	PickRandom(ctx context.Context, c model.SectionCriteria, n int, exclude []uuid.UUID) ([]uuid.UUID, error)
}

// paperCacheGrace keeps a paper cached for a while after the exam ends so
// late submissions can still be graded against it.
const paperCacheGrace = time.Hour

// ScheduledExamService handles scheduled exams, their papers and the Redis
// paper cache.
type ScheduledExamService struct {
	examRepo      ScheduledExamStore
	structureRepo structureGetter
	schoolRepo    activeChecker
	questionRepo  questionPicker
	rdb           *redis.Client
	log           zerolog.Logger
	now           func() time.Time
}

// NewScheduledExamService creates a new ScheduledExamService.
func NewScheduledExamService(
	examRepo ScheduledExamStore,
	structureRepo structureGetter,
	schoolRepo activeChecker,
	questionRepo questionPicker,
	rdb *redis.Client,
	log zerolog.Logger,
) *ScheduledExamService {
	return &ScheduledExamService{
		examRepo:      examRepo,
		structureRepo: structureRepo,
		schoolRepo:    schoolRepo,
		questionRepo:  questionRepo,
		rdb:           rdb,
		log:           log.With().Str("component", "scheduled_exam_service").Logger(),
		now:           time.Now,
	}
}

// List retrieves a filtered page of exams.
func (s *ScheduledExamService) List(ctx context.Context, f model.ScheduledExamFilter) ([]model.ScheduledExam, *response.Pagination, error) {
	normalizeQuery(&f.ListQuery)
	exams, total, err := s.examRepo.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return exams, response.NewPagination(f.Page, f.PerPage, total), nil
}

// GetByID retrieves an exam by its UUID.
func (s *ScheduledExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// Create inserts a new exam as draft. Class level, subject and defaults come
// from the structure.
func (s *ScheduledExamService) Create(ctx context.Context, req model.ScheduledExamRequest, createdBy int) (*model.ScheduledExam, error) {
	if !req.EndAt.After(req.StartAt) {
		return nil, ErrInvalidSchedule
	}
	st, err := s.structureRepo.GetByID(ctx, req.StructureID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidParent
	}
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, ErrInvalidParent
	}
	if req.SchoolID != nil {
		if err := requireActive(ctx, s.schoolRepo, *req.SchoolID); err != nil {
			return nil, err
		}
	}

	exam := &model.ScheduledExam{
		StructureID:      st.ID,
		SchoolID:         req.SchoolID,
		Title:            req.Title,
		ClassLevelID:     st.ClassLevelID,
		SubjectID:        st.SubjectID,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		DurationMinutes:  req.DurationMinutes,
		Status:           model.ExamDraft,
		ShuffleQuestions: req.ShuffleQuestions,
		ShowResults:      req.ShowResults,
		Instructions:     req.Instructions,
		CreatedBy:        &createdBy,
		IsActive:         true,
	}
	if exam.DurationMinutes == 0 {
		exam.DurationMinutes = st.DurationMinutes
	}
	if exam.Instructions == "" {
		exam.Instructions = st.Instructions
	}

	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// Update changes settings while the exam is draft or scheduled. The
// structure of an exam never changes after creation.
func (s *ScheduledExamService) Update(ctx context.Context, id uuid.UUID, req model.ScheduledExamRequest) (*model.ScheduledExam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exam.Status.Editable() {
		return nil, ErrExamNotEditable
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, ErrInvalidSchedule
	}
	if req.SchoolID != nil {
		if err := requireActive(ctx, s.schoolRepo, *req.SchoolID); err != nil {
			return nil, err
		}
	}

	exam.SchoolID = req.SchoolID
	exam.Title = req.Title
	exam.StartAt = req.StartAt
	exam.EndAt = req.EndAt
	if req.DurationMinutes > 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	exam.ShuffleQuestions = req.ShuffleQuestions
	exam.ShowResults = req.ShowResults
	exam.Instructions = req.Instructions

	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, err
	}

	if exam.Status == model.ExamScheduled {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			return nil, err
		}
	}
	return s.examRepo.GetByID(ctx, id)
}

// Delete soft-deletes an exam that is not live.
func (s *ScheduledExamService) Delete(ctx context.Context, id uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exam.Status == model.ExamLive {
		return ErrExamLive
	}
	if err := s.examRepo.SetActive(ctx, id, false); err != nil {
		return err
	}
	return s.dropCache(ctx, id)
}

// Restore reactivates a soft-deleted exam.
func (s *ScheduledExamService) Restore(ctx context.Context, id uuid.UUID) error {
	return s.examRepo.SetActive(ctx, id, true)
}

// GeneratePaper draws questions for every section at random and freezes them
// as the exam's paper. A question is never drawn twice.
func (s *ScheduledExamService) GeneratePaper(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamDraft {
		return nil, ErrExamNotDraft
	}
	st, err := s.structureRepo.GetByID(ctx, exam.StructureID)
	if err != nil {
		return nil, fmt.Errorf("get structure: %w", err)
	}

	var (
		paper  []model.ExamQuestion
		picked []uuid.UUID
		order  = 1
	)
	for _, sec := range st.Sections {
		ids, err := s.questionRepo.PickRandom(ctx, st.Criteria(sec), sec.QuestionCount, picked)
		if err != nil {
			return nil, fmt.Errorf("pick questions for %q: %w", sec.Name, err)
		}
		if len(ids) < sec.QuestionCount {
			return nil, fmt.Errorf("%w: section %q needs %d, found %d",
				ErrInsufficientQuestions, sec.Name, sec.QuestionCount, len(ids))
		}
		for _, qid := range ids {
			paper = append(paper, model.ExamQuestion{
				ExamID:        exam.ID,
				QuestionID:    qid,
				SectionID:     sec.ID,
				SectionName:   sec.Name,
				OrderNum:      order,
				Marks:         sec.MarksPerQuestion,
				NegativeMarks: sec.NegativeMarks,
			})
			order++
		}
		picked = append(picked, ids...)
	}

	if err := s.examRepo.ReplacePaper(ctx, exam.ID, paper); err != nil {
		return nil, fmt.Errorf("store paper: %w", err)
	}
	s.log.Info().Str("exam_id", exam.ID.String()).Int("questions", len(paper)).Msg("Paper generated")
	return s.examRepo.GetByID(ctx, id)
}

// Publish moves a draft with a generated paper to scheduled and warms its cache.
func (s *ScheduledExamService) Publish(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamDraft {
		return nil, ErrExamNotDraft
	}
	if exam.QuestionCount == 0 {
		return nil, ErrPaperNotGenerated
	}
	if !exam.EndAt.After(exam.StartAt) || !exam.EndAt.After(s.now()) {
		return nil, ErrInvalidSchedule
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return nil, err
	}
	if err := s.examRepo.Transition(ctx, id, []model.ExamStatus{model.ExamDraft}, model.ExamScheduled); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrExamNotDraft
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", id.String()).Msg("Exam published")
	return s.examRepo.GetByID(ctx, id)
}

// Cancel stops an exam that has not completed.
func (s *ScheduledExamService) Cancel(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error) {
	err := s.examRepo.Transition(ctx, id,
		[]model.ExamStatus{model.ExamDraft, model.ExamScheduled, model.ExamLive}, model.ExamCancelled)
	if errors.Is(err, repository.ErrStaleState) {
		if _, getErr := s.examRepo.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrExamNotEditable
	}
	if err != nil {
		return nil, err
	}
	if err := s.dropCache(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to drop paper cache")
	}
	s.log.Info().Str("exam_id", id.String()).Msg("Exam cancelled")
	return s.examRepo.GetByID(ctx, id)
}

// SyncStatuses opens scheduled exams whose window started and completes
// exams whose window ended.
func (s *ScheduledExamService) SyncStatuses(ctx context.Context, now time.Time) error {
	started, err := s.examRepo.StartDue(ctx, now)
	if err != nil {
		return fmt.Errorf("start due exams: %w", err)
	}
	for _, id := range started {
		exam, err := s.examRepo.GetByID(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to load started exam")
			continue
		}
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to warm started exam")
		}
	}

	ended, err := s.examRepo.CompleteEnded(ctx, now)
	if err != nil {
		return fmt.Errorf("complete ended exams: %w", err)
	}

	if len(started) > 0 || len(ended) > 0 {
		s.log.Info().Int("started", len(started)).Int("completed", len(ended)).Msg("Exam statuses synced")
	}
	return nil
}

// buildPaper loads the frozen paper without answer keys.
func (s *ScheduledExamService) buildPaper(ctx context.Context, exam *model.ScheduledExam) (*model.ExamPaper, error) {
	keys, err := s.examRepo.PaperKeys(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list paper: %w", err)
	}
	if len(keys) == 0 {
		return nil, ErrPaperNotGenerated
	}

	questions := make([]model.PaperQuestion, len(keys))
	for i, k := range keys {
		questions[i] = k.ToPaperQuestion()
	}
	return &model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		Instructions:    exam.Instructions,
		EndAt:           exam.EndAt,
		Questions:       questions,
	}, nil
}

// WarmExamCache loads an exam's student paper from PostgreSQL into Redis.
func (s *ScheduledExamService) WarmExamCache(ctx context.Context, exam *model.ScheduledExam) error {
	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	ttl := exam.EndAt.Sub(s.now()) + paperCacheGrace
	if ttl < paperCacheGrace {
		ttl = paperCacheGrace
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamPaperKey(exam.ID.String()), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(paper.Questions)).
		Msg("Cache warmed")
	return nil
}

// Paper returns the cached student paper, rebuilding the cache on a miss.
func (s *ScheduledExamService) Paper(ctx context.Context, exam *model.ScheduledExam) (*model.ExamPaper, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPaperKey(exam.ID.String())).Bytes()
	if err == nil {
		var paper model.ExamPaper
		if err := json.Unmarshal(data, &paper); err == nil {
			return &paper, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get paper: %w", err)
	}

	// Cache miss or corrupt entry.
	if err := s.WarmExamCache(ctx, exam); err != nil {
		return nil, err
	}
	return s.buildPaper(ctx, exam)
}

// PrewarmAllCaches loads all scheduled and live exams into Redis on startup,
// using one pipeline for every paper.
func (s *ScheduledExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.examRepo.ListIDsByStatus(ctx, model.ExamScheduled, model.ExamLive)
	if err != nil {
		return fmt.Errorf("list open exams: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info().Msg("No scheduled exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(ids)).Msg("Prewarming scheduled exams...")

	pipe := s.rdb.Pipeline()
	warmed := 0
	for _, id := range ids {
		exam, err := s.examRepo.GetByID(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to load exam, skipping")
			continue
		}
		paper, err := s.buildPaper(ctx, exam)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to build paper, skipping")
			continue
		}
		payload, err := json.Marshal(paper)
		if err != nil {
			continue
		}
		ttl := exam.EndAt.Sub(s.now()) + paperCacheGrace
		if ttl < paperCacheGrace {
			ttl = paperCacheGrace
		}
		pipe.Set(ctx, config.CacheKey.ExamPaperKey(id.String()), payload, ttl)
		warmed++
	}
	if warmed > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("cache to redis: %w", err)
		}
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}

func (s *ScheduledExamService) dropCache(ctx context.Context, id uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.ExamPaperKey(id.String())).Err()
}

// ListAvailable returns the live exams a student may take.
func (s *ScheduledExamService) ListAvailable(ctx context.Context, student *model.User) ([]model.AvailableExam, error) {
	return s.examRepo.ListAvailable(ctx, student.ClassLevelID(), student.SchoolID(), student.ID)
}
