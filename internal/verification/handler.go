package verification

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/questmap/treasure-hunt/internal/geo"
	"github.com/questmap/treasure-hunt/internal/submissions"
	"github.com/questmap/treasure-hunt/pkg/common"
	"github.com/questmap/treasure-hunt/pkg/logger"
	"github.com/questmap/treasure-hunt/pkg/metrics"
	"github.com/questmap/treasure-hunt/pkg/middleware"
	"github.com/questmap/treasure-hunt/pkg/security"
	"github.com/questmap/treasure-hunt/pkg/storage"
	"github.com/questmap/treasure-hunt/pkg/validation"
)

// Handler handles HTTP requests for submission validation
type Handler struct {
	service  *Service
	storage  storage.Storage
	recorder metrics.Recorder
}

// NewHandler creates a new verification handler
func NewHandler(service *Service, store storage.Storage, recorder metrics.Recorder) *Handler {
	return &Handler{service: service, storage: store, recorder: recorder}
}

// RegisterRoutes mounts the verification endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/submissions", h.SubmitProof)
	rg.POST("/submissions/:id/revalidate", h.Revalidate)
	rg.POST("/proofs/upload", h.UploadProofImage)

	admin := rg.Group("/review", middleware.AdminOnly())
	admin.GET("/pending", h.ListPendingReview)
	admin.GET("/:id/proof", h.ReviewProof)
	admin.POST("/:id/resolve", h.ResolveReview)
	admin.GET("/stats", h.WindowStats)
}

// SubmitProofRequest is the submission payload. Latitude and longitude
// carry no required tag: 0 is a legitimate coordinate on the equator and
// the prime meridian, so range checks are left to the validation pipeline.
type SubmitProofRequest struct {
	ChallengeID string          `json:"challenge_id" validate:"required,uuid"`
	ProofType   string          `json:"proof_type" validate:"required"`
	Latitude    float64         `json:"latitude" validate:"latitude"`
	Longitude   float64         `json:"longitude" validate:"longitude"`
	AccuracyM   *float64        `json:"accuracy_m,omitempty"`
	CapturedAt  *time.Time      `json:"captured_at,omitempty"`
	Proof       json.RawMessage `json:"proof" validate:"required"`
}

// checkRequest validates the request shape and decodes the proof payload,
// collecting every failure into a single itemized result.
func checkRequest(req *SubmitProofRequest) (submissions.ProofType, submissions.ProofPayload, *validation.Result) {
	result := validation.ValidateStruct(req)

	decode := &validation.Result{}
	proofType, err := submissions.ParseProofType(req.ProofType)
	if err != nil {
		decode.AddError("proof_type", err.Error(), "INVALID_PROOF_TYPE")
	}

	var proof submissions.ProofPayload
	if err == nil && len(req.Proof) > 0 {
		proof, err = submissions.DecodeProofPayload(proofType, req.Proof)
		if err != nil {
			decode.AddError("proof", err.Error(), "INVALID_PROOF_PAYLOAD")
		}
	}

	result.Merge(decode)
	return proofType, proof, result
}

// SubmitProof accepts a proof submission and runs the validation pipeline
// POST /api/v1/verification/submissions
func (h *Handler) SubmitProof(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	proofType, proof, reqResult := checkRequest(&req)
	if !reqResult.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"errors":  reqResult.Errors,
		})
		return
	}

	challengeID, _ := uuid.Parse(req.ChallengeID)

	sub := &submissions.Submission{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		UserID:      userID,
		ProofType:   proofType,
		GPSFix: geo.Fix{
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
			AccuracyM:  req.AccuracyM,
			CapturedAt: req.CapturedAt,
		},
		Proof:       proof,
		SubmittedAt: time.Now(),
	}

	result, err := h.service.Submit(c.Request.Context(), sub)
	if err != nil {
		if err == submissions.ErrNotFound {
			common.ErrorResponse(c, http.StatusNotFound, "challenge not found")
			return
		}
		logger.WithContext(c.Request.Context()).Error("submission failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to process submission")
		return
	}

	if result.PreValidation != nil && !result.PreValidation.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success":  false,
			"errors":   result.PreValidation.Errors,
			"warnings": result.PreValidation.Warnings,
		})
		return
	}

	common.SuccessResponse(c, http.StatusCreated, result)
}

// Revalidate re-runs validation on an existing submission
// POST /api/v1/verification/submissions/:id/revalidate
func (h *Handler) Revalidate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid submission ID")
		return
	}

	result, err := h.service.Revalidate(c.Request.Context(), id)
	if err != nil {
		if err == submissions.ErrNotFound {
			common.ErrorResponse(c, http.StatusNotFound, "submission not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to revalidate submission")
		return
	}

	common.SuccessResponse(c, http.StatusOK, result)
}

// UploadProofImage stores a proof image and returns its URL for use in a
// subsequent submission
// POST /api/v1/verification/proofs/upload
func (h *Handler) UploadProofImage(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	proofType := c.PostForm("proof_type")
	if _, err := submissions.ParseProofType(proofType); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	mimeType := storage.GetMimeTypeFromExtension(security.SanitizeFilename(header.Filename))
	if !storage.IsImageMimeType(mimeType) {
		common.ErrorResponse(c, http.StatusBadRequest, "proof must be an image")
		return
	}

	key := storage.GenerateProofKey(userID, proofType, security.SanitizeFilename(header.Filename))
	result, err := h.storage.Upload(c.Request.Context(), key, file, header.Size, mimeType)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("proof upload failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to store proof image")
		return
	}

	common.SuccessResponse(c, http.StatusCreated, result)
}

// ListPendingReview lists submissions awaiting manual review
// GET /api/v1/verification/review/pending
func (h *Handler) ListPendingReview(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	subs, err := h.service.PendingReview(c.Request.Context(), limit, offset)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list pending submissions")
		return
	}

	common.SuccessResponse(c, http.StatusOK, subs)
}

// ReviewProof gives a reviewer access to a submission's private proof
// artifact, either as a presigned URL or streamed directly with ?download=true
// GET /api/v1/verification/review/:id/proof
func (h *Handler) ReviewProof(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid submission ID")
		return
	}

	sub, err := h.service.Submission(c.Request.Context(), id)
	if err != nil {
		if err == submissions.ErrNotFound {
			common.ErrorResponse(c, http.StatusNotFound, "submission not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to load submission")
		return
	}

	imageURL := submissions.ImageURL(sub.Proof)
	if imageURL == "" {
		common.ErrorResponse(c, http.StatusNotFound, "submission has no proof artifact")
		return
	}

	key, ok := h.storage.KeyFromURL(imageURL)
	if !ok {
		common.ErrorResponse(c, http.StatusNotFound, "proof artifact is not managed by this service")
		return
	}

	exists, err := h.storage.Exists(c.Request.Context(), key)
	if err != nil || !exists {
		common.ErrorResponse(c, http.StatusNotFound, "proof artifact not found")
		return
	}

	if c.Query("download") == "true" {
		body, err := h.storage.Download(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context()).Error("proof download failed", zap.Error(err))
			common.ErrorResponse(c, http.StatusInternalServerError, "failed to download proof artifact")
			return
		}
		defer body.Close()

		c.Header("Content-Type", storage.GetMimeTypeFromExtension(key))
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, body); err != nil {
			logger.WithContext(c.Request.Context()).Warn("proof stream interrupted", zap.Error(err))
		}
		return
	}

	presigned, err := h.storage.GetPresignedDownloadURL(c.Request.Context(), key, 15*time.Minute)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("proof presign failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to presign proof artifact")
		return
	}

	common.SuccessResponse(c, http.StatusOK, presigned)
}

// ResolveReviewRequest is a reviewer's decision on a pending submission.
type ResolveReviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason" binding:"required"`
}

// ResolveReview applies a manual review decision
// POST /api/v1/verification/review/:id/resolve
func (h *Handler) ResolveReview(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid submission ID")
		return
	}

	var req ResolveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	reason := security.TruncateString(security.SanitizeString(req.Reason), 500)
	if err := h.service.ResolveReview(c.Request.Context(), id, req.Approve, reason); err != nil {
		if err == submissions.ErrNotFound {
			common.ErrorResponse(c, http.StatusNotFound, "submission not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to resolve review")
		return
	}

	common.SuccessResponse(c, http.StatusOK, gin.H{"resolved": true})
}

// WindowStats returns the trailing 24h validation statistics
// GET /api/v1/verification/review/stats
func (h *Handler) WindowStats(c *gin.Context) {
	stats, err := h.recorder.WindowStats(c.Request.Context())
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to load validation stats")
		return
	}

	common.SuccessResponse(c, http.StatusOK, stats)
}
