package models

import "time"

// Certificate is an issued proof-of-completion credential.
type Certificate struct {
	ID            int64              `json:"id" db:"id"`
	CertificateID string             `json:"certificateId" db:"certificate_id"`
	UserID        int64              `json:"userId" db:"user_id"`
	CourseID      int64              `json:"courseId" db:"course_id"`
	IssuedAt      time.Time          `json:"issuedAt" db:"issued_at"`
	Payload       CertificatePayload `json:"payload" db:"payload"`
	Seal          string             `json:"-" db:"seal"`
	DocumentPath  *string            `json:"documentPath,omitempty" db:"document_path"`
	Downloads     int64              `json:"downloads" db:"download_count"`
}

// CertificatePayload is the credential content rendered into the document.
type CertificatePayload struct {
	CertificateID  string    `json:"certificateId"`
	UserName       string    `json:"userName"`
	CourseTitle    string    `json:"courseTitle"`
	InstructorName string    `json:"instructorName,omitempty"`
	CompletionDate time.Time `json:"completionDate"`
}

// CertificateVerification is the public answer to a verification request.
type CertificateVerification struct {
	Valid   bool                `json:"valid"`
	Payload *CertificatePayload `json:"payload,omitempty"`
}

// CourseCertificateCount is one row of the most-certified courses ranking.
type CourseCertificateCount struct {
	CourseID int64 `json:"courseId" db:"course_id"`
	Count    int64 `json:"count" db:"count"`
}

// CertificateStatistics summarizes issuance.
type CertificateStatistics struct {
	TotalIssued      int64                    `json:"totalIssued"`
	IssuedThisPeriod int64                    `json:"issuedThisPeriod"`
	PeriodStart      time.Time                `json:"periodStart"`
	TopCourses       []CourseCertificateCount `json:"topCourses"`
}

// CompletedEnrollment identifies a completed enrollment without a certificate.
type CompletedEnrollment struct {
	UserID      int64     `db:"user_id"`
	CourseID    int64     `db:"course_id"`
	CompletedAt time.Time `db:"completed_at"`
}

// BatchResult reports a bulk issuance per user: the certificate identifier
// for every success and the failure reason for everything else.
type BatchResult struct {
	Issued map[int64]string `json:"issued"`
	Failed map[int64]string `json:"failed,omitempty"`
}

// BackfillResult summarizes one back-fill run.
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Issued  int `json:"issued"`
	Failed  int `json:"failed"`
}
