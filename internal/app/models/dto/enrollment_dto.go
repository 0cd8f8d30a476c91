package dto

// EnrollRequest represents an enrollment request for the authenticated user
type EnrollRequest struct {
	CourseID int64 `json:"courseId" binding:"required,gt=0" example:"42"`
}

// UpdateProgressRequest reports progress for one module of a course
type UpdateProgressRequest struct {
	ModuleID   int64 `json:"moduleId" binding:"required,gt=0" example:"3"`
	Percentage *int  `json:"percentage" binding:"required,gte=0,lte=100" example:"75"`
}

// ProgressResponse represents a user's overall progress in a course
type ProgressResponse struct {
	CourseID   int64  `json:"courseId" example:"42"`
	Percentage int    `json:"percentage" example:"75"`
	Status     string `json:"status,omitempty" example:"active"`
}

// PopularCoursesQuery binds the popular courses listing parameters
type PopularCoursesQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=100" example:"10"`
}
