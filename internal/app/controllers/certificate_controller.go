package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/coursecred/internal/app/auth"
	"github.com/yigit/coursecred/internal/app/models/dto"
	"github.com/yigit/coursecred/internal/app/services"
	"github.com/yigit/coursecred/internal/middleware"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
)

// DocumentLocator resolves a stored document reference to a file on disk
type DocumentLocator interface {
	FullPath(relPath string) string
}

// CertificateController handles certificate endpoints
type CertificateController struct {
	certificateService services.CertificateService
	authorizer         auth.Authorizer
	documents          DocumentLocator
}

// NewCertificateController creates a new CertificateController
func NewCertificateController(certificateService services.CertificateService, authorizer auth.Authorizer, documents DocumentLocator) *CertificateController {
	return &CertificateController{
		certificateService: certificateService,
		authorizer:         authorizer,
		documents:          documents,
	}
}

func (c *CertificateController) require(ctx *gin.Context, action auth.Action) bool {
	userID := middleware.CurrentUserID(ctx)
	if c.authorizer != nil && c.authorizer.Can(ctx.Request.Context(), userID, action) {
		return true
	}
	middleware.HandleAPIError(ctx, apperrors.NewForbiddenError("you are not allowed to perform this action"))
	return false
}

// Generate issues the authenticated user's certificate for a completed course
// @Summary Generate my certificate
// @Tags certificates
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.CertificateIDResponse}
// @Failure 404 {object} dto.ErrorResponse "Not enrolled"
// @Failure 412 {object} dto.ErrorResponse "Course not completed"
// @Router /courses/{courseId}/certificate [post]
func (c *CertificateController) Generate(ctx *gin.Context) {
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}

	cert, err := c.certificateService.Generate(ctx.Request.Context(), middleware.CurrentUserID(ctx), courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CertificateIDResponse{CertificateID: cert.CertificateID}, "Certificate issued"))
}

// BatchGenerate issues certificates for several users of one course
// @Summary Batch certificate issuance
// @Tags certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "Course ID"
// @Param request body dto.BatchGenerateRequest true "Users"
// @Success 200 {object} dto.APIResponse{data=dto.BatchGenerateResponse}
// @Failure 403 {object} dto.ErrorResponse "Not an administrator"
// @Router /courses/{courseId}/certificates/batch [post]
func (c *CertificateController) BatchGenerate(ctx *gin.Context) {
	if !c.require(ctx, auth.ActionBatchCertificates) {
		return
	}
	courseID, ok := parseIDParam(ctx, "courseId", "Course")
	if !ok {
		return
	}
	req, ok := middleware.ValidatedBody[dto.BatchGenerateRequest](ctx)
	if !ok {
		return
	}

	result, err := c.certificateService.BatchGenerate(ctx.Request.Context(), req.UserIDs, courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.BatchGenerateResponse{Issued: result.Issued, Failed: result.Failed}, ""))
}

// ListMine lists the authenticated user's certificates
// @Summary List my certificates
// @Tags certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Certificate}
// @Router /certificates [get]
func (c *CertificateController) ListMine(ctx *gin.Context) {
	certs, err := c.certificateService.ListForUser(ctx.Request.Context(), middleware.CurrentUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(certs, ""))
}

// Statistics reports issuance totals
// @Summary Certificate statistics
// @Tags certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=models.CertificateStatistics}
// @Failure 403 {object} dto.ErrorResponse "Not an administrator"
// @Router /certificates/statistics [get]
func (c *CertificateController) Statistics(ctx *gin.Context) {
	if !c.require(ctx, auth.ActionCertificateStatsAll) {
		return
	}

	stats, err := c.certificateService.Statistics(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(stats, ""))
}

// Verify checks a certificate identifier. Unknown, malformed and tampered
// identifiers all get the same 404 answer.
// @Summary Verify a certificate
// @Tags certificates
// @Produce json
// @Param certificateId path string true "Certificate ID"
// @Success 200 {object} dto.APIResponse{data=models.CertificateVerification}
// @Failure 404 {object} dto.APIResponse{data=models.CertificateVerification}
// @Router /certificates/{certificateId}/verify [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	verification, err := c.certificateService.Verify(ctx.Request.Context(), ctx.Param("certificateId"))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCertificateNotFound) {
			resp := dto.NewSuccessResponse(verification, "Certificate could not be verified")
			resp.Success = false
			resp.Error = dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Certificate not found")
			ctx.JSON(http.StatusNotFound, resp)
			return
		}
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(verification, "Certificate is valid"))
}

// Download streams the certificate document to its owner or an administrator
// @Summary Download a certificate
// @Tags certificates
// @Produce application/pdf
// @Security BearerAuth
// @Param certificateId path string true "Certificate ID"
// @Success 200 {file} file
// @Failure 403 {object} dto.ErrorResponse "Not allowed"
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Router /certificates/{certificateId}/download [get]
func (c *CertificateController) Download(ctx *gin.Context) {
	cert, ref, err := c.certificateService.Download(ctx.Request.Context(), middleware.CurrentUserID(ctx), ctx.Param("certificateId"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.FileAttachment(c.documents.FullPath(ref), cert.CertificateID+".pdf")
}
