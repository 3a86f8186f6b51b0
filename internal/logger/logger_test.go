package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestSetupFallsBackToInfo(t *testing.T) {
	Setup("not-a-level", "json")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestGormLoggerTrace(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		want    string
	}{
		{"error is logged", gormlogger.Warn, 0, errors.New("boom"), "Query failed"},
		{"not found is ignored", gormlogger.Warn, 0, gorm.ErrRecordNotFound, ""},
		{"slow query warns", gormlogger.Warn, time.Second, nil, "Slow query"},
		{"silent drops errors", gormlogger.Silent, 0, errors.New("boom"), ""},
		{"info traces everything", gormlogger.Info, 0, nil, "\"message\":\"Query\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewGormLogger(zerolog.New(&buf), 100*time.Millisecond).LogMode(tt.level)

			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), func() (string, int64) {
				return "SELECT 1", 1
			}, tt.err)

			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
