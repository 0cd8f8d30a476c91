package dto

// BatchGenerateRequest requests certificates for several users of one course
type BatchGenerateRequest struct {
	UserIDs []int64 `json:"userIds" binding:"required,min=1,max=500,dive,gt=0"`
}

// BatchGenerateResponse reports the outcome of a batch issuance per user
type BatchGenerateResponse struct {
	Issued map[int64]string `json:"issued"`
	Failed map[int64]string `json:"failed,omitempty"`
}

// CertificateIDResponse carries a certificate identifier
type CertificateIDResponse struct {
	CertificateID string `json:"certificateId" example:"K7Q2M9X4ZP1B"`
}
