package models

import "time"

// RatingStatus is the moderation state of a rating.
type RatingStatus string

const (
	RatingApproved RatingStatus = "approved"
	RatingRejected RatingStatus = "rejected"
)

// Valid reports whether s is a known moderation status.
func (s RatingStatus) Valid() bool {
	return s == RatingApproved || s == RatingRejected
}

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)

// Rating is one user's star score and review for a course.
type Rating struct {
	ID        int64        `json:"id" db:"id"`
	UserID    int64        `json:"userId" db:"user_id"`
	CourseID  int64        `json:"courseId" db:"course_id"`
	Value     int          `json:"rating" db:"rating"`
	Review    string       `json:"review" db:"review"` // Sanitized plain text
	Status    RatingStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" db:"updated_at"`
}

// RatingSortOrder selects the ordering of a ratings listing.
type RatingSortOrder string

const (
	SortNewest  RatingSortOrder = "newest"
	SortOldest  RatingSortOrder = "oldest"
	SortHighest RatingSortOrder = "highest"
	SortLowest  RatingSortOrder = "lowest"
)

// Valid reports whether o is a known sort order.
func (o RatingSortOrder) Valid() bool {
	switch o {
	case SortNewest, SortOldest, SortHighest, SortLowest:
		return true
	}
	return false
}

// RatingDistribution counts approved ratings per star value 1..5.
type RatingDistribution map[int]int64

// NewRatingDistribution returns a distribution with every bucket present.
func NewRatingDistribution() RatingDistribution {
	d := make(RatingDistribution, MaxRating)
	for v := MinRating; v <= MaxRating; v++ {
		d[v] = 0
	}
	return d
}

// Total returns the number of ratings in the distribution.
func (d RatingDistribution) Total() int64 {
	var total int64
	for _, n := range d {
		total += n
	}
	return total
}

// RatingSummary bundles the aggregate views of a course's approved ratings.
type RatingSummary struct {
	CourseID     int64              `json:"courseId"`
	Average      float64            `json:"average"`
	Count        int64              `json:"count"`
	Distribution RatingDistribution `json:"distribution"`
}

// RatingPage is one page of a ratings listing.
type RatingPage struct {
	Ratings    []*Rating `json:"ratings"`
	TotalItems int64     `json:"totalItems"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
}
