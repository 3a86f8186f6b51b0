package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the envelope of every JSON API reply. On failure Success is
// false, Data is null and Error is set.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// NormalizePage clamps a page request: page starts at 1 and perPage falls in
// 1..MaxPerPage, defaulting to DefaultPerPage.
func NormalizePage(page, perPage int) (int, int) {
	page = max(page, 1)
	switch {
	case perPage < 1:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return page, perPage
}

func NewPagination(page, perPage, total int) *Pagination {
	page, perPage = NormalizePage(page, perPage)
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return &Pagination{Page: page, PerPage: perPage, TotalItems: total, TotalPages: pages}
}

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, envelope(c, data, nil))
}

func SuccessWithPagination(c *gin.Context, statusCode int, data interface{}, pagination *Pagination) {
	resp := envelope(c, data, nil)
	resp.Pagination = pagination
	c.JSON(statusCode, resp)
}

// Fail replies with a localized error for code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, envelope(c, nil, errorBody(c, code, nil)))
}

// FailWithFields is Fail plus per-field details, keyed by JSON field name.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, envelope(c, nil, errorBody(c, code, fields)))
}

// AbortFail is Fail for middleware: later handlers do not run.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, envelope(c, nil, errorBody(c, code, nil)))
}

func errorBody(c *gin.Context, code ErrCode, fields map[string]string) *ErrorBody {
	return &ErrorBody{Code: code, Message: messageFor(c, code), Fields: fields}
}

func envelope(c *gin.Context, data interface{}, errBody *ErrorBody) Response {
	id := RequestID(c)
	if id == "" {
		id = uuid.NewString()
	}
	return Response{
		Success: errBody == nil,
		Data:    data,
		Error:   errBody,
		Metadata: Metadata{
			RequestID: id,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}
