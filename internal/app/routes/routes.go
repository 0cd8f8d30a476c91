package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/coursecred/internal/app/controllers"
	"github.com/yigit/coursecred/internal/app/models/dto"
	"github.com/yigit/coursecred/internal/middleware"
	"github.com/yigit/coursecred/internal/pkg/logger"
	"github.com/yigit/coursecred/internal/pkg/validation"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	enrollmentController *controllers.EnrollmentController,
	ratingController *controllers.RatingController,
	certificateController *controllers.CertificateController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// DTO binding tags depend on the custom rules
	if err := validation.RegisterWithGin(); err != nil {
		logger.Error().Err(err).Msg("Failed to register request validation rules")
	}

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}, "pong"))
	})

	// API version group; every route sees the caller identity, if any
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.Identify())

	// --- Public routes ---
	v1.GET("/courses/popular", enrollmentController.PopularCourses)
	v1.GET("/courses/:courseId/ratings", ratingController.ListRatings)
	v1.GET("/courses/:courseId/ratings/summary", ratingController.Summary)
	v1.GET("/certificates/:certificateId/verify", certificateController.Verify)

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.RequireAuth())
	{
		enrollments := authenticated.Group("/enrollments")
		{
			enrollments.POST("", middleware.ValidateRequest[dto.EnrollRequest](), enrollmentController.Enroll)
			enrollments.GET("", enrollmentController.ListEnrollments)
			enrollments.GET("/:courseId/progress", enrollmentController.GetProgress)
			enrollments.PUT("/:courseId/progress", middleware.ValidateRequest[dto.UpdateProgressRequest](), enrollmentController.UpdateProgress)
		}

		authenticated.GET("/me/dashboard", enrollmentController.Dashboard)

		courses := authenticated.Group("/courses/:courseId")
		{
			courses.POST("/ratings", middleware.ValidateRequest[dto.SubmitRatingRequest](), ratingController.SubmitRating)
			courses.GET("/ratings/me", ratingController.MyRating)
			courses.POST("/certificate", certificateController.Generate)
			courses.POST("/certificates/batch", middleware.ValidateRequest[dto.BatchGenerateRequest](), certificateController.BatchGenerate)
		}

		authenticated.PATCH("/ratings/:id/status", middleware.ValidateRequest[dto.ModerateRatingRequest](), ratingController.Moderate)

		certificates := authenticated.Group("/certificates")
		{
			certificates.GET("", certificateController.ListMine)
			certificates.GET("/statistics", certificateController.Statistics)
			certificates.GET("/:certificateId/download", certificateController.Download)
		}
	}
}
