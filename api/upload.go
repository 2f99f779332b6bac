package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/torus-agents/pin_service/entity"
	wrapErrors "github.com/torus-agents/pin_service/errors"
	"github.com/torus-agents/pin_service/request"
	"github.com/torus-agents/pin_service/service"
)

type UploadHandler struct {
	uploadService *service.UploadService
	maxBytes      int64
	logger        *slog.Logger
}

func NewUploadHandler(us *service.UploadService, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: us,
		maxBytes:      maxBytes,
		logger:        logger.With("module", "http"),
	}
}

// UploadAndPin, verify the caller's identity and standing, then pin the file
func (h *UploadHandler) UploadAndPin(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	var req request.UploadAndPinReq
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, nil, wrapErrors.WrapWithCode(wrapErrors.CodePayloadTooLarge, "bind upload request", err))
			return
		}
		h.fail(c, nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidRequest, "bind upload request", err))
		return
	}
	var query request.UploadAndPinQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.fail(c, nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidRequest, "bind upload query", err))
		return
	}
	req.Merge(query)
	if err := req.Validate(); err != nil {
		h.fail(c, nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidRequest, "validate upload request", err))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.fail(c, nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidRequest, "open upload", err))
		return
	}
	defer file.Close()

	res, err := h.uploadService.UploadAndPin(c.Request.Context(), service.UploadRequest{
		RequestID: requestIDFromContext(c),
		Address:   strings.TrimSpace(req.Address),
		Mnemonic:  req.Mnemonic,
		Stake:     req.Stake,
		Payload: &entity.UploadPayload{
			Filename:    req.File.Filename,
			ContentType: req.File.Header.Get("Content-Type"),
			Size:        req.File.Size,
			Body:        file,
		},
	})
	if err != nil {
		h.fail(c, res, err)
		return
	}

	c.JSON(http.StatusOK, res.Receipt.Response())
}

func (h *UploadHandler) fail(c *gin.Context, res *service.UploadResult, err error) {
	code := wrapErrors.CodeOf(err)
	status := wrapErrors.HTTPStatus(code)
	body := gin.H{
		"error": wrapErrors.PublicMessage(err),
		"code":  code,
	}
	if wrapErrors.IsDenial(err) && res != nil && res.Decision != nil {
		body["observedBalance"] = res.Decision.ObservedBalance.String()
		body["threshold"] = res.Decision.Threshold.String()
	}

	fields := []any{
		"request_id", requestIDFromContext(c),
		"operation", "upload_and_pin",
		"status_code", status,
		"error_code", code,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "http operation failed", append(fields, "error", err.Error())...)
	} else {
		h.logger.WarnContext(c.Request.Context(), "http operation failed", fields...)
	}

	c.JSON(status, body)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
