package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/handler"
	"github.com/stemsi/exstem-admin/internal/middleware"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	School        *handler.SchoolHandler
	ClassLevel    *handler.ClassLevelHandler
	Subject       *handler.SubjectHandler
	Question      *handler.QuestionHandler
	Exam          *handler.ExamHandler
	Extraction    *handler.ExtractionHandler
	User          *handler.UserHandler
	Role          *handler.RoleHandler
	Setting       *handler.SettingHandler
	Dashboard     *handler.DashboardHandler
	Media         *handler.MediaHandler
	Monitor       *handler.MonitorHandler
	WS            *handler.WSHandler
	Health        *handler.HealthHandler
}

// Limiters are the per-IP rate limiters applied to expensive public routes.
// The caller owns their cleanup loops.
type Limiters struct {
	Login      *middleware.RateLimiter
	Extraction *middleware.RateLimiter
}

// Auth is what the router needs to authenticate requests.
type Auth interface {
	middleware.TokenValidator
	middleware.SessionValidator
}

const uploadsMaxAge = 365 * 24 * 60 * 60

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(auth Auth, handlers *Handlers, limiters Limiters, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	// Uploaded media never changes under a given UUID name.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(uploadsMaxAge))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", middleware.NoStore(), handlers.Health.Health)

	requireAny := middleware.RequireAnyJWT(auth)
	session := middleware.CheckSingleDeviceSession(auth)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	{
		publicAPI.GET("/settings", handlers.Setting.GetPublicSettings)
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/student/login", limiters.Login.Middleware(), handlers.Auth.StudentLogin)
		authAPI.POST("/admin/login", limiters.Login.Middleware(), handlers.Auth.AdminLogin)
		authAPI.POST("/logout", requireAny, session, handlers.Auth.Logout)
	}

	// ─── 2. Self-service (any signed-in user) ──────────────────────────
	meAPI := router.Group("/api/v1/me")
	meAPI.Use(requireAny, session)
	{
		meAPI.GET("", handlers.Auth.Me)
		meAPI.PUT("/profile", handlers.Auth.UpdateProfile)
		meAPI.PUT("/password", handlers.Auth.ChangePassword)
	}

	// ─── 3. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(auth), session, middleware.NoStore())
	{
		studentAPI.GET("/exams", handlers.StudentPortal.GetLobby)
		studentAPI.POST("/exams/:id/start", handlers.StudentPortal.StartAttempt)
		studentAPI.PUT("/attempts/:id/answers", handlers.StudentPortal.SaveAnswer)
		studentAPI.POST("/attempts/:id/submit", handlers.StudentPortal.SubmitAttempt)
	}

	// ─── 4. WebSocket Group (token may come in ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentJWT(auth), session)
	{
		ws.GET("/student/attempts/:id/stream", handlers.WS.AttemptStream)
	}

	// ─── 5. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		// Open to all admins
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		adminAPI.GET("/system", handlers.Health.SystemStatus)

		adminAPI.POST("/media/upload", middleware.RequirePermission(model.PermissionMediaUpload), handlers.Media.UploadMedia)

		// Schools
		schoolsRead := middleware.RequirePermission(model.PermissionSchoolsRead)
		schoolsWrite := middleware.RequirePermission(model.PermissionSchoolsWrite)
		adminAPI.GET("/schools", schoolsRead, handlers.School.ListSchools)
		adminAPI.GET("/schools/:id", schoolsRead, handlers.School.GetSchool)
		adminAPI.POST("/schools", schoolsWrite, handlers.School.CreateSchool)
		adminAPI.PUT("/schools/:id", schoolsWrite, handlers.School.UpdateSchool)
		adminAPI.DELETE("/schools/:id", schoolsWrite, handlers.School.DeleteSchool)
		adminAPI.POST("/schools/:id/restore", schoolsWrite, handlers.School.RestoreSchool)

		// Catalog: class levels, subjects, chapters
		catalogRead := middleware.RequirePermission(model.PermissionCatalogRead)
		catalogWrite := middleware.RequirePermission(model.PermissionCatalogWrite)
		adminAPI.GET("/class-levels", catalogRead, handlers.ClassLevel.ListClassLevels)
		adminAPI.GET("/class-levels/:id", catalogRead, handlers.ClassLevel.GetClassLevel)
		adminAPI.POST("/class-levels", catalogWrite, handlers.ClassLevel.CreateClassLevel)
		adminAPI.PUT("/class-levels/:id", catalogWrite, handlers.ClassLevel.UpdateClassLevel)
		adminAPI.DELETE("/class-levels/:id", catalogWrite, handlers.ClassLevel.DeleteClassLevel)
		adminAPI.POST("/class-levels/:id/restore", catalogWrite, handlers.ClassLevel.RestoreClassLevel)

		adminAPI.GET("/subjects", catalogRead, handlers.Subject.ListSubjects)
		adminAPI.GET("/subjects/:id", catalogRead, handlers.Subject.GetSubject)
		adminAPI.POST("/subjects", catalogWrite, handlers.Subject.CreateSubject)
		adminAPI.PUT("/subjects/:id", catalogWrite, handlers.Subject.UpdateSubject)
		adminAPI.DELETE("/subjects/:id", catalogWrite, handlers.Subject.DeleteSubject)
		adminAPI.POST("/subjects/:id/restore", catalogWrite, handlers.Subject.RestoreSubject)

		adminAPI.GET("/chapters", catalogRead, handlers.Subject.ListChapters)
		adminAPI.GET("/chapters/:id", catalogRead, handlers.Subject.GetChapter)
		adminAPI.POST("/chapters", catalogWrite, handlers.Subject.CreateChapter)
		adminAPI.PUT("/chapters/:id", catalogWrite, handlers.Subject.UpdateChapter)
		adminAPI.DELETE("/chapters/:id", catalogWrite, handlers.Subject.DeleteChapter)
		adminAPI.POST("/chapters/:id/restore", catalogWrite, handlers.Subject.RestoreChapter)

		// Questions
		questionsRead := middleware.RequirePermission(model.PermissionQuestionsRead)
		questionsWrite := middleware.RequirePermission(model.PermissionQuestionsWrite)
		adminAPI.GET("/questions", questionsRead, handlers.Question.ListQuestions)
		adminAPI.GET("/questions/:id", questionsRead, handlers.Question.GetQuestion)
		adminAPI.POST("/questions", questionsWrite, handlers.Question.CreateQuestion)
		adminAPI.POST("/questions/bulk", questionsWrite, handlers.Question.BulkCreateQuestions)
		adminAPI.POST("/questions/assign-bank",
			middleware.RequirePermission(model.PermissionQBanksWrite),
			handlers.Question.AssignQuestions,
		)
		adminAPI.PUT("/questions/:id", questionsWrite, handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", questionsWrite, handlers.Question.DeleteQuestion)
		adminAPI.POST("/questions/:id/restore", questionsWrite, handlers.Question.RestoreQuestion)

		// Question banks
		banksRead := middleware.RequirePermission(model.PermissionQBanksRead)
		banksWrite := middleware.RequirePermission(model.PermissionQBanksWrite)
		adminAPI.GET("/qbanks", banksRead, handlers.Question.ListBanks)
		adminAPI.GET("/qbanks/:id", banksRead, handlers.Question.GetBank)
		adminAPI.POST("/qbanks", banksWrite, handlers.Question.CreateBank)
		adminAPI.PUT("/qbanks/:id", banksWrite, handlers.Question.UpdateBank)
		adminAPI.DELETE("/qbanks/:id", banksWrite, handlers.Question.DeleteBank)
		adminAPI.POST("/qbanks/:id/restore", banksWrite, handlers.Question.RestoreBank)

		// Exam structures
		structuresRead := middleware.RequirePermission(model.PermissionStructuresRead)
		structuresWrite := middleware.RequirePermission(model.PermissionStructuresWrite)
		adminAPI.GET("/exam-structures", structuresRead, handlers.Exam.ListStructures)
		adminAPI.GET("/exam-structures/:id", structuresRead, handlers.Exam.GetStructure)
		adminAPI.GET("/exam-structures/:id/preview", structuresRead, handlers.Exam.PreviewStructure)
		adminAPI.POST("/exam-structures", structuresWrite, handlers.Exam.CreateStructure)
		adminAPI.PUT("/exam-structures/:id", structuresWrite, handlers.Exam.UpdateStructure)
		adminAPI.DELETE("/exam-structures/:id", structuresWrite, handlers.Exam.DeleteStructure)
		adminAPI.POST("/exam-structures/:id/restore", structuresWrite, handlers.Exam.RestoreStructure)

		// Scheduled exams
		examsRead := middleware.RequirePermission(model.PermissionExamsRead)
		examsWrite := middleware.RequirePermission(model.PermissionExamsWrite)
		examsPublish := middleware.RequirePermission(model.PermissionExamsPublish)
		adminAPI.GET("/exams", examsRead, handlers.Exam.ListExams)
		adminAPI.GET("/exams/:id", examsRead, handlers.Exam.GetExam)
		adminAPI.POST("/exams", examsWrite, handlers.Exam.CreateExam)
		adminAPI.PUT("/exams/:id", examsWrite, handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:id", examsWrite, handlers.Exam.DeleteExam)
		adminAPI.POST("/exams/:id/restore", examsWrite, handlers.Exam.RestoreExam)
		adminAPI.POST("/exams/:id/generate", examsWrite, handlers.Exam.GeneratePaper)
		adminAPI.POST("/exams/:id/publish", examsPublish, handlers.Exam.PublishExam)
		adminAPI.POST("/exams/:id/cancel", examsPublish, handlers.Exam.CancelExam)
		adminAPI.GET("/exams/:id/monitor",
			middleware.RequireAnyPermission(model.PermissionExamsRead, model.PermissionAttemptsRead),
			handlers.Monitor.MonitorExamSSE,
		)

		// Attempts and results
		attemptsRead := middleware.RequirePermission(model.PermissionAttemptsRead)
		adminAPI.GET("/exams/:id/attempts", attemptsRead, handlers.Exam.ListAttempts)
		adminAPI.GET("/exams/:id/results.xlsx", attemptsRead, middleware.NoStore(), handlers.Exam.ExportResults)
		adminAPI.GET("/attempts/:id", attemptsRead, handlers.Exam.GetAttempt)
		adminAPI.POST("/attempts/:id/reset",
			middleware.RequirePermission(model.PermissionAttemptsManage),
			handlers.Exam.ResetAttempt,
		)

		// AI extraction
		aiExtract := middleware.RequirePermission(model.PermissionAIExtract)
		adminAPI.GET("/extractions", aiExtract, handlers.Extraction.ListExtractions)
		adminAPI.GET("/extractions/:id", aiExtract, handlers.Extraction.GetExtraction)
		adminAPI.POST("/extractions", aiExtract, limiters.Extraction.Middleware(), handlers.Extraction.CreateExtraction)
		adminAPI.POST("/extractions/:id/import",
			middleware.RequireAnyPermission(model.PermissionAIExtract, model.PermissionQuestionsWrite),
			handlers.Extraction.ImportExtraction,
		)
		adminAPI.POST("/extractions/:id/retry", aiExtract, handlers.Extraction.RetryExtraction)

		// Users (admins and students)
		usersRead := middleware.RequirePermission(model.PermissionUsersRead)
		usersWrite := middleware.RequirePermission(model.PermissionUsersWrite)
		adminAPI.GET("/users", usersRead, handlers.User.ListUsers)
		adminAPI.GET("/users/:id", usersRead, handlers.User.GetUser)
		adminAPI.POST("/users", usersWrite, handlers.User.CreateUser)
		adminAPI.PUT("/users/:id", usersWrite, handlers.User.UpdateUser)
		adminAPI.DELETE("/users/:id", usersWrite, handlers.User.DeleteUser)
		adminAPI.POST("/users/:id/restore", usersWrite, handlers.User.RestoreUser)
		adminAPI.PUT("/users/:id/password", usersWrite, handlers.User.ResetPassword)
		adminAPI.POST("/users/:id/reset-session",
			middleware.RequireAnyPermission(model.PermissionUsersWrite, model.PermissionAttemptsManage),
			handlers.User.ResetSession,
		)

		// Roles
		rolesRead := middleware.RequirePermission(model.PermissionRolesRead)
		rolesWrite := middleware.RequirePermission(model.PermissionRolesWrite)
		adminAPI.GET("/roles", rolesRead, handlers.Role.ListRoles)
		adminAPI.GET("/roles/permissions", rolesRead, handlers.Role.ListPermissions)
		adminAPI.GET("/roles/:id", rolesRead, handlers.Role.GetRole)
		adminAPI.POST("/roles", rolesWrite, handlers.Role.CreateRole)
		adminAPI.PUT("/roles/:id", rolesWrite, handlers.Role.UpdateRole)
		adminAPI.DELETE("/roles/:id", rolesWrite, handlers.Role.DeleteRole)

		// App settings
		settingsGroup := adminAPI.Group("/settings")
		{
			settingsGroup.GET("", middleware.RequirePermission(model.PermissionSettingsRead), handlers.Setting.GetAllSettings)
			settingsGroup.PUT("", middleware.RequirePermission(model.PermissionSettingsWrite), handlers.Setting.UpdateSettings)
		}
	}

	return router
}
