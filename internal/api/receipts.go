package api

import (
	"errors"
	"fmt"
	"net/http"

	"receipt-verification-api/internal/middleware"
	"receipt-verification-api/internal/response"
	"receipt-verification-api/internal/services"
	"receipt-verification-api/pkg/appstore"

	"github.com/gin-gonic/gin"
)

// VerifyReceiptRequest represents a receipt verification request
type VerifyReceiptRequest struct {
	ReceiptData            string `json:"receipt_data" binding:"required"`
	ExcludeOldTransactions *bool  `json:"exclude_old_transactions"`
	BundleID               string `json:"bundle_id"`
}

func (r VerifyReceiptRequest) input() services.VerifyInput {
	return services.VerifyInput{
		ReceiptData:            r.ReceiptData,
		ExcludeOldTransactions: r.ExcludeOldTransactions,
		BundleID:               r.BundleID,
	}
}

// VerifyBatchRequest represents a batch verification request
type VerifyBatchRequest struct {
	Receipts []VerifyReceiptRequest `json:"receipts" binding:"required,min=1,dive"`
}

// BatchItem is the result for one receipt of a batch
type BatchItem struct {
	Index   int               `json:"index"`
	Success bool              `json:"success"`
	Receipt *appstore.Receipt `json:"receipt,omitempty"`
	Error   *ErrorDetail      `json:"error,omitempty"`
}

// ErrorDetail describes why a receipt was rejected
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Status    *int   `json:"status,omitempty"`
	Retryable *bool  `json:"retryable,omitempty"`
}

// VerifyReceipt verifies a receipt and returns the parsed receipt
func (h *Handler) VerifyReceipt(c *gin.Context) {
	project, _ := middleware.CurrentProject(c)

	var req VerifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	receipt, err := h.Receipts.Verify(c.Request.Context(), project, req.input())
	if err != nil {
		code, detail := describeError(err)
		response.JSON(c, code, response.ErrorWithData(detail.Message, detail))
		return
	}
	response.SuccessJSON(c, receipt)
}

// ValidateReceipt answers whether a receipt is valid without the reason
func (h *Handler) ValidateReceipt(c *gin.Context) {
	project, _ := middleware.CurrentProject(c)

	var req VerifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	valid := h.Receipts.Validate(c.Request.Context(), project, req.input())
	response.SuccessJSON(c, gin.H{"valid": valid})
}

// VerifyReceiptBatch verifies several receipts concurrently
func (h *Handler) VerifyReceiptBatch(c *gin.Context) {
	project, _ := middleware.CurrentProject(c)

	var req VerifyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}
	if h.BatchMaxSize > 0 && len(req.Receipts) > h.BatchMaxSize {
		response.ErrorJSON(c, http.StatusBadRequest, fmt.Sprintf("At most %d receipts per batch", h.BatchMaxSize))
		return
	}

	inputs := make([]services.VerifyInput, len(req.Receipts))
	for i, r := range req.Receipts {
		inputs[i] = r.input()
	}

	results := h.Receipts.VerifyBatch(c.Request.Context(), project, inputs)
	items := make([]BatchItem, len(results))
	for i, r := range results {
		items[i] = BatchItem{Index: r.Index, Success: r.Err == nil, Receipt: r.Receipt}
		if r.Err != nil {
			_, detail := describeError(r.Err)
			items[i].Error = &detail
		}
	}
	response.SuccessJSON(c, gin.H{"results": items})
}

// GetStats returns the verification counters of the calling project
func (h *Handler) GetStats(c *gin.Context) {
	projectID := c.GetString(middleware.ProjectIDKey)
	h.writeStats(c, projectID)
}

func (h *Handler) writeStats(c *gin.Context, projectID string) {
	stats, err := h.Receipts.Stats(c.Request.Context(), projectID)
	if err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to get project stats: "+err.Error())
		return
	}
	response.SuccessJSON(c, gin.H{"project_id": projectID, "counters": stats})
}

// describeError maps a verification failure to an HTTP status and a body
func describeError(err error) (int, ErrorDetail) {
	detail := ErrorDetail{Kind: appstore.ErrorKind(err), Message: err.Error()}

	var (
		verr    *appstore.VerificationError
		timeout *appstore.TimeoutError
	)
	switch {
	case errors.As(err, &verr):
		code, retryable := verr.Code, verr.Retryable
		detail.Kind = "verification"
		detail.Message = verr.Message()
		detail.Status = &code
		detail.Retryable = &retryable
		return http.StatusUnprocessableEntity, detail
	case errors.Is(err, services.ErrBundleMismatch):
		detail.Kind = "bundle_mismatch"
		return http.StatusUnprocessableEntity, detail
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, detail
	case appstore.IsTransportFailure(err):
		return http.StatusBadGateway, detail
	default:
		return http.StatusInternalServerError, detail
	}
}
