package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/klasika/klasika-backend/internal/config"
	"github.com/klasika/klasika-backend/internal/handler"
	"github.com/klasika/klasika-backend/internal/middleware"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/klasika/klasika-backend/internal/response"
	"github.com/klasika/klasika-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentAdmin  *handler.StudentAdminHandler
	ExamAdmin     *handler.ExamAdminHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/staff/login", handlers.Auth.StaffLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/staff/me", middleware.RequireStaffJWT(authService), handlers.Auth.GetStaffProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.POST("/exams/:exam_id/start", handlers.StudentPortal.StartExam)
		studentAPI.GET("/sessions/:session_id/paper", handlers.StudentPortal.GetPaper)
		studentAPI.GET("/sessions/:session_id/state", handlers.StudentPortal.GetState)
		studentAPI.PUT("/sessions/:session_id/answers", handlers.StudentPortal.SaveAnswer)
		studentAPI.POST("/sessions/:session_id/submit", handlers.StudentPortal.SubmitExam)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 4. Staff Group (JWT + Role) ───────────────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireStaffJWT(authService))
	{
		anyStaff := middleware.RequireRole(model.StaffRoleAdmin, model.StaffRoleTeacher)
		adminOnly := middleware.RequireRole(model.StaffRoleAdmin)

		// Exam authoring and results
		staffAPI.GET("/exams", anyStaff, handlers.ExamAdmin.ListExams)
		staffAPI.POST("/exams", anyStaff, handlers.ExamAdmin.CreateExam)
		staffAPI.GET("/exams/:exam_id", anyStaff, handlers.ExamAdmin.GetExam)
		staffAPI.PUT("/exams/:exam_id", anyStaff, handlers.ExamAdmin.UpdateExam)
		staffAPI.DELETE("/exams/:exam_id", adminOnly, handlers.ExamAdmin.DeleteExam)
		staffAPI.POST("/exams/:exam_id/questions", anyStaff, handlers.ExamAdmin.AddQuestion)
		staffAPI.PUT("/exams/:exam_id/questions", anyStaff, handlers.ExamAdmin.ReplaceQuestions)
		staffAPI.POST("/exams/:exam_id/publish", anyStaff, handlers.ExamAdmin.PublishExam)
		staffAPI.GET("/exams/:exam_id/results", anyStaff, handlers.ExamAdmin.GetResults)

		// Roster
		staffAPI.GET("/classes", anyStaff, handlers.StudentAdmin.ListClasses)
		staffAPI.POST("/classes", adminOnly, handlers.StudentAdmin.CreateClass)
		staffAPI.GET("/classes/:class_id/students", anyStaff, handlers.StudentAdmin.ListStudents)
		staffAPI.POST("/students", adminOnly, handlers.StudentAdmin.CreateStudent)
		staffAPI.POST("/students/:student_id/reset-login", anyStaff, handlers.StudentAdmin.ResetStudentLogin)
	}

	return router
}
