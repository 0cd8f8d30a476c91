package dto

// SubmitRatingRequest represents a rating submission by the authenticated user
type SubmitRatingRequest struct {
	Rating int    `json:"rating" example:"5"`
	Review string `json:"review" example:"Clear explanations and good exercises."`
}

// ModerateRatingRequest changes a rating's moderation status
type ModerateRatingRequest struct {
	Status string `json:"status" binding:"required,rating_status" example:"rejected"`
}

// ListRatingsQuery binds the ratings listing parameters
type ListRatingsQuery struct {
	Page int    `form:"page" example:"1"`
	Size int    `form:"size" example:"10"`
	Sort string `form:"sort" binding:"omitempty,rating_sort" example:"newest"`
}

// RatingListResponse represents a page of ratings with pagination metadata
type RatingListResponse struct {
	Ratings    interface{}    `json:"ratings"`
	Pagination PaginationInfo `json:"pagination"`
}
