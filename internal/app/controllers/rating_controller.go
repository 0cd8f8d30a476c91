package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/app/models/dto"
	"github.com/yigit/coursecred/internal/app/services"
	"github.com/yigit/coursecred/internal/middleware"
	"github.com/yigit/coursecred/internal/pkg/helpers"
)

// RatingController handles course rating endpoints
type RatingController struct {
	ratingService services.RatingService
}

// NewRatingController creates a new RatingController
func NewRatingController(ratingService services.RatingService) *RatingController {
	return &RatingController{
		ratingService: ratingService,
	}
}

// SubmitRating creates or replaces the authenticated user's rating of a course.
// Rating bounds are enforced by the service so every caller gets the same checks.
// @Summary Rate a course
// @Tags ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Param request body dto.SubmitRatingRequest true "Rating"
// @Success 200 {object} dto.APIResponse{data=models.Rating}
// @Failure 400 {object} dto.ErrorResponse "Invalid rating"
// @Router /courses/{courseId}/ratings [post]
func (c *RatingController) SubmitRating(ctx *gin.Context) {
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}
	req, ok := middleware.ValidatedBody[dto.SubmitRatingRequest](ctx)
	if !ok {
		return
	}

	rating, err := c.ratingService.SubmitRating(ctx.Request.Context(), middleware.CurrentUserID(ctx), courseID, req.Rating, req.Review)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(rating, "Rating saved"))
}

// ListRatings lists approved ratings of a course
// @Summary List course ratings
// @Tags ratings
// @Produce json
// @Param courseId path int true "Course ID"
// @Param page query int false "Page number (1-based)"
// @Param size query int false "Page size"
// @Param sort query string false "Sort order" Enums(newest, oldest, highest, lowest)
// @Success 200 {object} dto.APIResponse{data=dto.RatingListResponse}
// @Router /courses/{courseId}/ratings [get]
func (c *RatingController) ListRatings(ctx *gin.Context) {
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}
	query, ok := middleware.ValidateQuery[dto.ListRatingsQuery](ctx)
	if !ok {
		return
	}

	page, err := c.ratingService.ListRatings(ctx.Request.Context(), courseID, query.Page, query.Size, models.RatingSortOrder(query.Sort))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.RatingListResponse{
		Ratings:    page.Ratings,
		Pagination: helpers.NewPaginationInfo(page.TotalItems, page.Page, page.PageSize),
	}, ""))
}

// Summary returns the average, count and distribution of a course's ratings
// @Summary Course rating summary
// @Tags ratings
// @Produce json
// @Param courseId path int true "Course ID"
// @Success 200 {object} dto.APIResponse{data=models.RatingSummary}
// @Router /courses/{courseId}/ratings/summary [get]
func (c *RatingController) Summary(ctx *gin.Context) {
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}

	summary, err := c.ratingService.RatingSummary(ctx.Request.Context(), courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(summary, ""))
}

// MyRating returns the authenticated user's rating of a course
// @Summary My rating of a course
// @Tags ratings
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} dto.APIResponse{data=models.Rating}
// @Failure 404 {object} dto.ErrorResponse "Not rated yet"
// @Router /courses/{courseId}/ratings/me [get]
func (c *RatingController) MyRating(ctx *gin.Context) {
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}

	rating, err := c.ratingService.GetUserRating(ctx.Request.Context(), middleware.CurrentUserID(ctx), courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(rating, ""))
}

// Moderate approves or rejects a rating
// @Summary Moderate a rating
// @Tags ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rating ID"
// @Param request body dto.ModerateRatingRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=models.Rating}
// @Failure 403 {object} dto.ErrorResponse "Not a moderator"
// @Router /ratings/{id}/status [patch]
func (c *RatingController) Moderate(ctx *gin.Context) {
	ratingID, ok := parseIDParam(ctx, "id", "Rating")
	if !ok {
		return
	}
	req, ok := middleware.ValidatedBody[dto.ModerateRatingRequest](ctx)
	if !ok {
		return
	}

	rating, err := c.ratingService.Moderate(ctx.Request.Context(), middleware.CurrentUserID(ctx), ratingID, models.RatingStatus(req.Status))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(rating, "Rating status updated"))
}
