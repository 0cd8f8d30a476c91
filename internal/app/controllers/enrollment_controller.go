package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/coursecred/internal/app/models/dto"
	"github.com/yigit/coursecred/internal/app/services"
	"github.com/yigit/coursecred/internal/middleware"
)

// EnrollmentController handles enrollment and progress endpoints
type EnrollmentController struct {
	enrollmentService services.EnrollmentService
}

// NewEnrollmentController creates a new EnrollmentController
func NewEnrollmentController(enrollmentService services.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{
		enrollmentService: enrollmentService,
	}
}

// Enroll enrolls the authenticated user in a course
// @Summary Enroll in a course
// @Tags enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.EnrollRequest true "Course to enroll in"
// @Success 201 {object} dto.APIResponse{data=models.Enrollment}
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 409 {object} dto.ErrorResponse "Already enrolled"
// @Router /enrollments [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	req, ok := middleware.ValidatedBody[dto.EnrollRequest](ctx)
	if !ok {
		return
	}

	enrollment, err := c.enrollmentService.Enroll(ctx.Request.Context(), middleware.CurrentUserID(ctx), req.CourseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(enrollment, "Enrolled successfully"))
}

// ListEnrollments lists the authenticated user's enrollments
// @Summary List my enrollments
// @Tags enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Enrollment}
// @Router /enrollments [get]
func (c *EnrollmentController) ListEnrollments(ctx *gin.Context) {
	enrollments, err := c.enrollmentService.ListEnrollments(ctx.Request.Context(), middleware.CurrentUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(enrollments, ""))
}

// GetProgress returns the authenticated user's progress in a course
// @Summary Get course progress
// @Tags enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.ProgressResponse}
// @Router /enrollments/{courseId}/progress [get]
func (c *EnrollmentController) GetProgress(ctx *gin.Context) {
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}
	userID := middleware.CurrentUserID(ctx)

	percentage, err := c.enrollmentService.GetProgress(ctx.Request.Context(), userID, courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.ProgressResponse{CourseID: courseID, Percentage: percentage}
	if enrollment, err := c.enrollmentService.GetEnrollment(ctx.Request.Context(), userID, courseID); err == nil {
		resp.Status = string(enrollment.Status)
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, ""))
}

// UpdateProgress records progress for one module of a course
// @Summary Report module progress
// @Tags enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Param request body dto.UpdateProgressRequest true "Module progress"
// @Success 200 {object} dto.APIResponse{data=models.Enrollment}
// @Failure 404 {object} dto.ErrorResponse "Not enrolled"
// @Router /enrollments/{courseId}/progress [put]
func (c *EnrollmentController) UpdateProgress(ctx *gin.Context) {
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}
	req, ok := middleware.ValidatedBody[dto.UpdateProgressRequest](ctx)
	if !ok {
		return
	}

	update, err := c.enrollmentService.UpdateProgress(ctx.Request.Context(), middleware.CurrentUserID(ctx), courseID, req.ModuleID, *req.Percentage)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	message := ""
	if update.JustCompleted {
		message = "Course completed"
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(update.Enrollment, message))
}

// Dashboard returns the authenticated user's learning summary
// @Summary My dashboard
// @Tags enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=models.DashboardSummary}
// @Router /me/dashboard [get]
func (c *EnrollmentController) Dashboard(ctx *gin.Context) {
	summary, err := c.enrollmentService.DashboardSummary(ctx.Request.Context(), middleware.CurrentUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(summary, ""))
}

// PopularCourses lists the courses with the most enrollments
// @Summary Popular courses
// @Tags courses
// @Produce json
// @Param limit query int false "Number of courses" minimum(1) maximum(100)
// @Success 200 {object} dto.APIResponse{data=[]models.CoursePopularity}
// @Router /courses/popular [get]
func (c *EnrollmentController) PopularCourses(ctx *gin.Context) {
	query, ok := middleware.ValidateQuery[dto.PopularCoursesQuery](ctx)
	if !ok {
		return
	}

	courses, err := c.enrollmentService.PopularCourses(ctx.Request.Context(), query.Limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(courses, ""))
}
