package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-admin/internal/middleware"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/service"
	"github.com/stemsi/exstem-admin/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (response.Response, map[string]json.RawMessage) {
	t.Helper()
	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var raw struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	return env, raw.Data
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// asAdmin stores claims the way the JWT middleware would.
func asAdmin(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeAdmin, UserID: userID})
		c.Next()
	}
}

func TestFailMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
		detail bool
	}{
		{"not found", service.ErrNotFound, http.StatusNotFound, response.ErrNotFound, false},
		{"wrapped duplicate", fmt.Errorf("create school: %w", service.ErrDuplicate), http.StatusConflict, response.ErrConflict, false},
		{"dependency", service.ErrDependencyExists, http.StatusConflict, response.ErrDependencyExists, false},
		{"insufficient with detail", fmt.Errorf("%w: section 1 needs 10, has 4", service.ErrInsufficientQuestions),
			http.StatusUnprocessableEntity, response.ErrInsufficientQuestions, true},
		{"bare insufficient", service.ErrInsufficientQuestions, http.StatusUnprocessableEntity, response.ErrInsufficientQuestions, false},
		{"not eligible", service.ErrNotEligible, http.StatusForbidden, response.ErrNotEligible, false},
		{"file too large", service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge, false},
		{"unmapped", errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { fail(c, tt.err) })

			w := do(r, http.MethodGet, "/", "")
			assert.Equal(t, tt.status, w.Code)

			env, _ := decode(t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			if tt.detail {
				assert.Equal(t, tt.err.Error(), env.Error.Fields["detail"])
			} else {
				assert.NotContains(t, env.Error.Fields, "detail")
			}
		})
	}
}

type fakeSchools struct {
	schools map[int]*model.School
	created *model.SchoolRequest
	deleted []int
}

func (f *fakeSchools) List(_ context.Context, q model.ListQuery) ([]model.School, *response.Pagination, error) {
	out := make([]model.School, 0, len(f.schools))
	for _, s := range f.schools {
		out = append(out, *s)
	}
	return out, response.NewPagination(1, 10, len(out)), nil
}

func (f *fakeSchools) GetByID(_ context.Context, id int) (*model.School, error) {
	if s, ok := f.schools[id]; ok {
		return s, nil
	}
	return nil, service.ErrNotFound
}

func (f *fakeSchools) Create(_ context.Context, req model.SchoolRequest) (*model.School, error) {
	f.created = &req
	return &model.School{ID: 9, Name: req.Name, Code: req.Code, IsActive: true}, nil
}

func (f *fakeSchools) Update(_ context.Context, id int, req model.SchoolRequest) (*model.School, error) {
	if _, ok := f.schools[id]; !ok {
		return nil, service.ErrNotFound
	}
	return &model.School{ID: id, Name: req.Name, Code: req.Code}, nil
}

func (f *fakeSchools) Delete(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSchools) Restore(context.Context, int) error { return service.ErrNotFound }

func TestSchoolHandler(t *testing.T) {
	svc := &fakeSchools{schools: map[int]*model.School{1: {ID: 1, Name: "North High", Code: "NH", IsActive: true}}}
	h := NewSchoolHandler(svc)

	r := gin.New()
	r.GET("/schools", h.ListSchools)
	r.GET("/schools/:id", h.GetSchool)
	r.POST("/schools", h.CreateSchool)
	r.PUT("/schools/:id", h.UpdateSchool)
	r.DELETE("/schools/:id", h.DeleteSchool)
	r.POST("/schools/:id/restore", h.RestoreSchool)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		status  int
		code    response.ErrCode
		dataKey string
	}{
		{"list", http.MethodGet, "/schools", "", http.StatusOK, "", "schools"},
		{"get", http.MethodGet, "/schools/1", "", http.StatusOK, "", "school"},
		{"get bad id", http.MethodGet, "/schools/abc", "", http.StatusBadRequest, response.ErrInvalidID, ""},
		{"get zero id", http.MethodGet, "/schools/0", "", http.StatusBadRequest, response.ErrInvalidID, ""},
		{"get missing", http.MethodGet, "/schools/42", "", http.StatusNotFound, response.ErrNotFound, ""},
		{"create", http.MethodPost, "/schools", `{"name":"South High","code":"SH"}`, http.StatusCreated, "", "school"},
		{"create invalid", http.MethodPost, "/schools", `{"name":"S"}`, http.StatusBadRequest, response.ErrValidation, ""},
		{"update missing", http.MethodPut, "/schools/42", `{"name":"South High","code":"SH"}`, http.StatusNotFound, response.ErrNotFound, ""},
		{"delete", http.MethodDelete, "/schools/1", "", http.StatusOK, "", "message"},
		{"restore missing", http.MethodPost, "/schools/3/restore", "", http.StatusNotFound, response.ErrNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			env, data := decode(t, w)
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				assert.Nil(t, env.Data)
				return
			}
			assert.True(t, env.Success)
			assert.Contains(t, data, tt.dataKey)
		})
	}

	require.NotNil(t, svc.created)
	assert.Equal(t, "SH", svc.created.Code)
	assert.Equal(t, []int{1}, svc.deleted)
}

func TestSchoolHandlerValidationFields(t *testing.T) {
	r := gin.New()
	r.POST("/schools", NewSchoolHandler(&fakeSchools{}).CreateSchool)

	w := do(r, http.MethodPost, "/schools", `{"name":"S","email":"nope"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env, _ := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "name")
	assert.Contains(t, env.Error.Fields, "code")
	assert.Contains(t, env.Error.Fields, "email")
}

func TestSchoolHandlerPagination(t *testing.T) {
	r := gin.New()
	r.GET("/schools", NewSchoolHandler(&fakeSchools{schools: map[int]*model.School{
		1: {ID: 1, Name: "A", Code: "A"},
		2: {ID: 2, Name: "B", Code: "B"},
	}}).ListSchools)

	w := do(r, http.MethodGet, "/schools?page=1&per_page=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	env, data := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.TotalItems)

	var schools []model.School
	require.NoError(t, json.Unmarshal(data["schools"], &schools))
	assert.Len(t, schools, 2)
}

type fakeUsers struct {
	deleted []int
}

func (f *fakeUsers) List(context.Context, model.UserFilter) ([]model.User, *response.Pagination, error) {
	return nil, response.NewPagination(1, 10, 0), nil
}
func (f *fakeUsers) GetByID(context.Context, int) (*model.User, error) {
	return nil, service.ErrNotFound
}
func (f *fakeUsers) Create(context.Context, model.CreateUserRequest) (*model.User, error) {
	return nil, service.ErrDuplicate
}
func (f *fakeUsers) Update(context.Context, int, model.UpdateUserRequest) (*model.User, error) {
	return nil, service.ErrNotFound
}
func (f *fakeUsers) Delete(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeUsers) Restore(context.Context, int) error               { return nil }
func (f *fakeUsers) ResetPassword(context.Context, int, string) error { return nil }

type fakeSessions struct{ reset []int }

func (f *fakeSessions) ResetStudentSession(_ context.Context, id int) error {
	f.reset = append(f.reset, id)
	return nil
}

func TestUserHandlerDelete(t *testing.T) {
	users := &fakeUsers{}
	h := NewUserHandler(users, &fakeSessions{})

	r := gin.New()
	r.DELETE("/users/:id", asAdmin(7), h.DeleteUser)

	w := do(r, http.MethodDelete, "/users/7", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	env, _ := decode(t, w)
	assert.Equal(t, response.ErrActionForbidden, env.Error.Code)
	assert.Empty(t, users.deleted)

	w = do(r, http.MethodDelete, "/users/8", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{8}, users.deleted)
}

func TestUserHandlerCreateConflict(t *testing.T) {
	r := gin.New()
	r.POST("/users", NewUserHandler(&fakeUsers{}, &fakeSessions{}).CreateUser)

	body := `{"email":"a@b.test","password":"password123","kind":"student","profile":{"full_name":"Ana Putri","class_level_id":1}}`
	w := do(r, http.MethodPost, "/users", body)
	require.Equal(t, http.StatusConflict, w.Code)

	env, _ := decode(t, w)
	assert.Equal(t, response.ErrConflict, env.Error.Code)
}

type fakeExtractions struct {
	createdWith []byte
}

func (f *fakeExtractions) Create(_ context.Context, req model.CreateExtractionRequest, fileName string, data []byte, createdBy int) (*model.ExtractionJob, error) {
	f.createdWith = data
	return &model.ExtractionJob{ID: uuid.New(), SubjectID: req.SubjectID, FileName: fileName, Status: model.ExtractionPending}, nil
}
func (f *fakeExtractions) List(context.Context, model.ExtractionFilter) ([]model.ExtractionJob, *response.Pagination, error) {
	return nil, response.NewPagination(1, 10, 0), nil
}
func (f *fakeExtractions) GetByID(context.Context, uuid.UUID) (*model.ExtractionJob, error) {
	return nil, service.ErrNotFound
}
func (f *fakeExtractions) Import(context.Context, uuid.UUID, model.ImportExtractionRequest, int) (int, error) {
	return 0, service.ErrExtractionNotReady
}
func (f *fakeExtractions) Retry(context.Context, uuid.UUID) (*model.ExtractionJob, error) {
	return nil, service.ErrExtractionNotReady
}

func multipartUpload(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "chapter.pdf")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestExtractionHandlerCreate(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
		status int
		code   response.ErrCode
	}{
		{"accepted", map[string]string{"subject_id": "3"}, []byte("%PDF-1.4 tiny"), http.StatusAccepted, ""},
		{"missing subject", map[string]string{}, []byte("%PDF-1.4 tiny"), http.StatusBadRequest, response.ErrValidation},
		{"bad provider", map[string]string{"subject_id": "3", "provider": "other"}, []byte("%PDF"), http.StatusBadRequest, response.ErrValidation},
		{"missing file", map[string]string{"subject_id": "3"}, nil, http.StatusBadRequest, response.ErrFileRequired},
		{"too large", map[string]string{"subject_id": "3"}, bytes.Repeat([]byte("x"), 64), http.StatusRequestEntityTooLarge, response.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeExtractions{}
			r := gin.New()
			r.POST("/extractions", asAdmin(1), NewExtractionHandler(svc, 32).CreateExtraction)

			body, contentType := multipartUpload(t, tt.fields, tt.file)
			req := httptest.NewRequest(http.MethodPost, "/extractions", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code, w.Body.String())
			env, data := decode(t, w)
			if tt.code != "" {
				assert.Equal(t, tt.code, env.Error.Code)
				assert.Nil(t, svc.createdWith)
				return
			}
			assert.Contains(t, data, "extraction")
			assert.Equal(t, tt.file, svc.createdWith)
		})
	}
}

func TestExtractionHandlerImportNotReady(t *testing.T) {
	r := gin.New()
	r.POST("/extractions/:id/import", asAdmin(1), NewExtractionHandler(&fakeExtractions{}, 32).ImportExtraction)

	w := do(r, http.MethodPost, "/extractions/"+uuid.NewString()+"/import", "")
	require.Equal(t, http.StatusConflict, w.Code)

	env, _ := decode(t, w)
	assert.Equal(t, response.ErrExtractionNotReady, env.Error.Code)

	w = do(r, http.MethodPost, "/extractions/not-a-uuid/import", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
