package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/scoring"
)

// AttemptStore is the persistence AttemptService needs.
type AttemptStore interface {
	Create(ctx context.Context, a *model.ExamAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error)
	GetActive(ctx context.Context, examID uuid.UUID, userID int) (*model.ExamAttempt, error)
	ListByExam(ctx context.Context, examID uuid.UUID, f model.AttemptFilter) ([]model.ExamAttempt, int, error)
	ListForExport(ctx context.Context, examID uuid.UUID) ([]model.ExamAttempt, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.ExamAttempt, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Answers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]json.RawMessage, error)
	Finalize(ctx context.Context, attemptID uuid.UUID, res model.AttemptResult) error
	QuestionStats(ctx context.Context, examID uuid.UUID) ([]model.QuestionStat, error)
}

type examPaperReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error)
	PaperKeys(ctx context.Context, examID uuid.UUID) ([]model.PaperKey, error)
}

type paperProvider interface {
	Paper(ctx context.Context, exam *model.ScheduledExam) (*model.ExamPaper, error)
}

type userGetter interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
}

const (
	// deadlineGrace tolerates a save or submit that arrives just after the
	// deadline. The expiry job waits it out before grading.
	deadlineGrace = 30 * time.Second
	// answersTTLGrace keeps the answer hash alive past the deadline until the
	// expiry job has graded the attempt.
	answersTTLGrace = time.Hour
	overdueBatch    = 200
)

// AttemptService runs student attempts: start, autosave, submit, expiry and
// the admin review of results.
type AttemptService struct {
	attemptRepo AttemptStore
	examRepo    examPaperReader
	papers      paperProvider
	userRepo    userGetter
	rdb         *redis.Client
	log         zerolog.Logger
	now         func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo AttemptStore,
	examRepo examPaperReader,
	papers paperProvider,
	userRepo userGetter,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		examRepo:    examRepo,
		papers:      papers,
		userRepo:    userRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

// Start opens an attempt for the student, or resumes the one in progress.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, student *model.User) (*model.StartAttemptResponse, error) {
	now := s.now()
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsActive || exam.Status != model.ExamLive || !exam.OpenAt(now) {
		return nil, ErrExamNotLive
	}
	if !eligible(exam, student) {
		return nil, ErrNotEligible
	}

	attempt, err := s.attemptRepo.GetActive(ctx, examID, student.ID)
	switch {
	case err == nil:
		if attempt.Status != model.AttemptInProgress || !now.Before(attempt.ExpiresAt) {
			return nil, ErrAttemptClosed
		}
	case errors.Is(err, ErrNotFound):
		attempt, err = s.create(ctx, exam, student.ID, now)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	paper, err := s.papers.Paper(ctx, exam)
	if err != nil {
		return nil, err
	}
	if exam.ShuffleQuestions {
		paper = shufflePaper(paper, attempt.ID)
	}

	answers, err := s.currentAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]json.RawMessage, len(answers))
	for qid, a := range answers {
		byKey[qid.String()] = a
	}

	return &model.StartAttemptResponse{Attempt: attempt, Paper: paper, Answers: byKey}, nil
}

func (s *AttemptService) create(ctx context.Context, exam *model.ScheduledExam, userID int, now time.Time) (*model.ExamAttempt, error) {
	expires := now.Add(time.Duration(exam.DurationMinutes) * time.Minute)
	if expires.After(exam.EndAt) {
		expires = exam.EndAt
	}
	attempt := &model.ExamAttempt{
		ExamID:    exam.ID,
		UserID:    userID,
		Status:    model.AttemptInProgress,
		StartedAt: now,
		ExpiresAt: expires,
	}

	err := s.attemptRepo.Create(ctx, attempt)
	if errors.Is(err, ErrDuplicate) {
		// Concurrent start from another device.
		existing, getErr := s.attemptRepo.GetActive(ctx, exam.ID, userID)
		if getErr != nil {
			return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", getErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.publish(ctx, model.MonitorEvent{
		Type: model.MonitorAttemptStarted, ExamID: exam.ID, AttemptID: attempt.ID, UserID: userID, At: now,
	})
	return attempt, nil
}

func eligible(exam *model.ScheduledExam, student *model.User) bool {
	if student.Kind != model.UserStudent || exam.ClassLevelID != student.ClassLevelID() {
		return false
	}
	return exam.SchoolID == nil || *exam.SchoolID == student.SchoolID()
}

// shufflePaper returns a copy of paper with questions shuffled inside each
// section. The order is stable for a given attempt.
func shufflePaper(paper *model.ExamPaper, attemptID uuid.UUID) *model.ExamPaper {
	out := *paper
	out.Questions = append([]model.PaperQuestion(nil), paper.Questions...)

	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(attemptID[:8]))))
	start := 0
	for i := 1; i <= len(out.Questions); i++ {
		if i < len(out.Questions) && out.Questions[i].SectionID == out.Questions[start].SectionID {
			continue
		}
		section := out.Questions[start:i]
		rng.Shuffle(len(section), func(a, b int) { section[a], section[b] = section[b], section[a] })
		start = i
	}
	return &out
}

// openAttempt loads an attempt the user owns and that still accepts input.
func (s *AttemptService) openAttempt(ctx context.Context, attemptID uuid.UUID, userID int) (*model.ExamAttempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsActive || attempt.UserID != userID {
		return nil, ErrNotFound
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, ErrAttemptClosed
	}
	return attempt, nil
}

// SaveAnswer stores one answer in Redis and queues it for the answer worker.
func (s *AttemptService) SaveAnswer(ctx context.Context, attemptID uuid.UUID, userID int, req model.SaveAnswerRequest) (time.Time, error) {
	now := s.now()
	attempt, err := s.openAttempt(ctx, attemptID, userID)
	if err != nil {
		return time.Time{}, err
	}
	if now.After(attempt.ExpiresAt.Add(deadlineGrace)) {
		return time.Time{}, ErrAttemptClosed
	}

	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return time.Time{}, err
	}
	paper, err := s.papers.Paper(ctx, exam)
	if err != nil {
		return time.Time{}, err
	}
	if !paperHas(paper, req.QuestionID) {
		return time.Time{}, ErrQuestionNotInPaper
	}

	answer := req.Answer
	if len(answer) == 0 {
		answer = json.RawMessage("null")
	}
	record, err := json.Marshal(model.AnswerRecord{
		AttemptID:  attemptID.String(),
		QuestionID: req.QuestionID.String(),
		Answer:     answer,
		SavedAt:    now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal answer: %w", err)
	}

	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, req.QuestionID.String(), []byte(answer))
	pipe.ExpireAt(ctx, key, attempt.ExpiresAt.Add(answersTTLGrace))
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, record)
	if _, err := pipe.Exec(ctx); err != nil {
		return time.Time{}, fmt.Errorf("save answer: %w", err)
	}

	qid := req.QuestionID
	s.publish(ctx, model.MonitorEvent{
		Type: model.MonitorAnswerSaved, ExamID: attempt.ExamID, AttemptID: attemptID,
		UserID: userID, QuestionID: &qid, At: now,
	})
	return now, nil
}

func paperHas(paper *model.ExamPaper, questionID uuid.UUID) bool {
	for _, q := range paper.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// Submit grades and closes the student's attempt.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, userID int) (*model.ExamAttempt, error) {
	attempt, err := s.openAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	status := model.AttemptSubmitted
	if now.After(attempt.ExpiresAt.Add(deadlineGrace)) {
		status = model.AttemptExpired
	}
	return s.finalize(ctx, attempt, status, now)
}

// ExpireOverdue grades and closes attempts whose deadline, plus the grace
// window, has passed.
func (s *AttemptService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	attempts, err := s.attemptRepo.ListOverdue(ctx, now.Add(-deadlineGrace), overdueBatch)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	closed := 0
	for i := range attempts {
		if _, err := s.finalize(ctx, &attempts[i], model.AttemptExpired, now); err != nil {
			if !errors.Is(err, ErrAttemptClosed) {
				s.log.Error().Err(err).Str("attempt_id", attempts[i].ID.String()).Msg("Failed to expire attempt")
			}
			continue
		}
		closed++
	}
	if closed > 0 {
		s.log.Info().Int("count", closed).Msg("Expired overdue attempts")
	}
	return closed, nil
}

func (s *AttemptService) finalize(ctx context.Context, attempt *model.ExamAttempt, status model.AttemptStatus, now time.Time) (*model.ExamAttempt, error) {
	keys, err := s.examRepo.PaperKeys(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list paper: %w", err)
	}
	answers, err := s.currentAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	summary := scoring.GradeAttempt(keys, answers)
	res := model.AttemptResult{
		Status:          status,
		SubmittedAt:     now,
		Score:           summary.Score,
		MaxScore:        summary.MaxScore,
		CorrectCount:    summary.Correct,
		WrongCount:      summary.Wrong,
		UnansweredCount: summary.Unanswered,
		PendingCount:    summary.Pending,
	}
	for _, r := range summary.Results {
		if !r.Answered {
			continue
		}
		graded := model.GradedAnswer{
			QuestionID:   r.QuestionID,
			Answer:       answers[r.QuestionID],
			MarksAwarded: r.Marks,
		}
		if r.Gradable {
			correct := r.Correct
			graded.IsCorrect = &correct
		}
		res.Answers = append(res.Answers, graded)
	}

	if err := s.attemptRepo.Finalize(ctx, attempt.ID, res); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrAttemptClosed
		}
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	if err := s.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attempt.ID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to clear answer cache")
	}

	eventType := model.MonitorAttemptSubmitted
	if status == model.AttemptExpired {
		eventType = model.MonitorAttemptExpired
	}
	score := res.Score
	s.publish(ctx, model.MonitorEvent{
		Type: eventType, ExamID: attempt.ExamID, AttemptID: attempt.ID,
		UserID: attempt.UserID, Score: &score, At: now,
	})

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("status", string(status)).
		Float64("score", res.Score).
		Msg("Attempt graded")

	return s.attemptRepo.GetByID(ctx, attempt.ID)
}

// currentAnswers merges persisted answers with the newer Redis copies.
func (s *AttemptService) currentAnswers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]json.RawMessage, error) {
	answers, err := s.attemptRepo.Answers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	if answers == nil {
		answers = make(map[uuid.UUID]json.RawMessage)
	}

	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached answers: %w", err)
	}
	for k, v := range cached {
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		answers[qid] = json.RawMessage(v)
	}
	return answers, nil
}

func (s *AttemptService) publish(ctx context.Context, ev model.MonitorEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", ev.ExamID.String()).Msg("Failed to publish monitor event")
	}
}

// ListByExam returns one page of an exam's attempts.
func (s *AttemptService) ListByExam(ctx context.Context, examID uuid.UUID, f model.AttemptFilter) ([]model.ExamAttempt, *response.Pagination, error) {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		return nil, nil, err
	}
	normalizeQuery(&f.ListQuery)
	attempts, total, err := s.attemptRepo.ListByExam(ctx, examID, f)
	if err != nil {
		return nil, nil, err
	}
	return attempts, response.NewPagination(f.Page, f.PerPage, total), nil
}

// Details builds the admin review of a single attempt.
func (s *AttemptService) Details(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetails, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	keys, err := s.examRepo.PaperKeys(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list paper: %w", err)
	}
	answers, err := s.currentAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	details := &model.AttemptDetails{
		Attempt:   attempt,
		ExamTitle: exam.Title,
		Questions: make([]model.AttemptQuestionDetail, 0, len(keys)),
	}
	if user, err := s.userRepo.GetByID(ctx, attempt.UserID); err == nil {
		details.Student = user.Summary()
	}

	for _, k := range keys {
		key := scoring.KeyFromPaper(k)
		answer := answers[k.QuestionID]
		res := scoring.CheckAnswer(key, answer)

		row := model.AttemptQuestionDetail{
			QuestionID:      k.QuestionID,
			OrderNum:        k.OrderNum,
			SectionName:     k.SectionName,
			QuestionType:    k.QuestionType,
			QuestionText:    k.QuestionText,
			Options:         k.Options,
			UserAnswer:      answer,
			FormattedAnswer: scoring.FormatUserAnswer(key, answer),
			CorrectAnswer:   scoring.FormatCorrectAnswer(key),
			Explanation:     k.Explanation,
			Answered:        res.Answered,
			Gradable:        res.Gradable,
			MarksAwarded:    res.Marks,
			Marks:           k.Marks,
		}
		if res.Answered && res.Gradable {
			correct := res.Correct
			row.IsCorrect = &correct
		}
		details.Questions = append(details.Questions, row)
	}
	return details, nil
}

// Reset soft-deletes an attempt so the student can sit the exam again.
func (s *AttemptService) Reset(ctx context.Context, attemptID uuid.UUID) error {
	if err := s.attemptRepo.SetActive(ctx, attemptID, false); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to clear answer cache")
	}
	s.log.Info().Str("attempt_id", attemptID.String()).Msg("Attempt reset")
	return nil
}

const (
	resultsSheet   = "Results"
	questionsSheet = "Questions"
)

// ExportResults renders an exam's attempts and per-question correctness as an
// XLSX workbook. It returns the file name and contents.
func (s *AttemptService) ExportResults(ctx context.Context, examID uuid.UUID) (string, *bytes.Buffer, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return "", nil, err
	}
	attempts, err := s.attemptRepo.ListForExport(ctx, examID)
	if err != nil {
		return "", nil, fmt.Errorf("list attempts: %w", err)
	}
	stats, err := s.attemptRepo.QuestionStats(ctx, examID)
	if err != nil {
		return "", nil, fmt.Errorf("question stats: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return "", nil, err
	}
	if _, err := f.NewSheet(questionsSheet); err != nil {
		return "", nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", nil, err
	}

	rows := [][]interface{}{{"No", "Student", "Email", "Status", "Started At", "Submitted At",
		"Score", "Max Score", "Correct", "Wrong", "Unanswered", "Pending"}}
	for i, a := range attempts {
		rows = append(rows, []interface{}{
			i + 1, a.StudentName, a.StudentEmail, string(a.Status),
			a.StartedAt.Format(time.RFC3339), formatTime(a.SubmittedAt),
			floatOrBlank(a.Score), floatOrBlank(a.MaxScore),
			a.CorrectCount, a.WrongCount, a.UnansweredCount, a.PendingCount,
		})
	}
	if err := writeSheet(f, resultsSheet, rows, bold); err != nil {
		return "", nil, err
	}

	rows = [][]interface{}{{"No", "Question", "Answered", "Correct", "Correct Rate (%)"}}
	for _, st := range stats {
		rate := 0.0
		if st.Answered > 0 {
			rate = float64(st.Correct) * 100 / float64(st.Answered)
		}
		rows = append(rows, []interface{}{st.OrderNum, st.QuestionText, st.Answered, st.Correct, rate})
	}
	if err := writeSheet(f, questionsSheet, rows, bold); err != nil {
		return "", nil, err
	}
	if err := f.SetColWidth(questionsSheet, "B", "B", 80); err != nil {
		return "", nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("write workbook: %w", err)
	}
	return fmt.Sprintf("results-%s.xlsx", exam.ID), buf, nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetRowStyle(sheet, 1, 1, headerStyle)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func floatOrBlank(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
