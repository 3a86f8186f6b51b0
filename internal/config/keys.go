package config

import "fmt"

// CacheKeyStruct names the Redis keys and channels shared by the API and the
// workers. IDs are passed in their string form.
type CacheKeyStruct struct{}

// StudentSessionKey holds the JTI of a student's one active login.
func (CacheKeyStruct) StudentSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ExamPaperKey holds the published paper of an exam, answer keys stripped.
func (CacheKeyStruct) ExamPaperKey(examID string) string {
	return "exam:" + examID + ":paper"
}

// AttemptAnswersKey is a hash of question_id to raw JSON answer. It buffers
// autosaves until the attempt is submitted or expires.
func (CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return "attempt:" + attemptID + ":answers"
}

// ExamMonitorChannel carries live attempt events for the proctor view.
func (CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return "exam:" + examID + ":monitor"
}

var CacheKey CacheKeyStruct

// WorkerKeyStruct names the Redis lists consumed by background workers.
type WorkerKeyStruct struct {
	// PersistAnswersQueue carries autosaved answers for batch upsert.
	PersistAnswersQueue string
	// ExtractionQueue carries extraction job IDs.
	ExtractionQueue string
}

var WorkerKey = WorkerKeyStruct{
	PersistAnswersQueue: "persist_answers_queue",
	ExtractionQueue:     "extraction_jobs_queue",
}
