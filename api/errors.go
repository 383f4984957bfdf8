package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/memory"
	"github.com/sumrendra/memory-api/pkg/vector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    any    `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
}

// DimensionDetail is the detail payload of a dimension mismatch.
type DimensionDetail struct {
	Configured int  `json:"configured"`
	Embedding  int  `json:"embedding"`
	DB         *int `json:"db"`
}

// statusFor maps a service error to an HTTP status. Only bad input is the
// caller's fault.
func statusFor(err error) int {
	if errors.Is(err, memory.ErrInvalidInput) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// newErrorResponse builds the payload for err. The short message names the
// error class; the detail carries the wrapped message.
func newErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Error:     errorClass(err),
		Detail:    err.Error(),
		Retryable: memory.IsRetryable(err),
	}

	var mismatch *memory.DimensionMismatchError
	if errors.As(err, &mismatch) {
		resp.Detail = DimensionDetail{
			Configured: mismatch.Configured,
			Embedding:  mismatch.Embedding,
			DB:         mismatch.Storage,
		}
	}

	return resp
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, memory.ErrInvalidInput):
		return memory.ErrInvalidInput.Error()
	case errors.Is(err, memory.ErrDimensionMismatch):
		return memory.ErrDimensionMismatch.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, memory.ErrEmbeddingFailed), errors.Is(err, vector.ErrEmbedding):
		return memory.ErrEmbeddingFailed.Error()
	case errors.Is(err, vector.ErrStorageUnavailable):
		return vector.ErrStorageUnavailable.Error()
	case errors.Is(err, vector.ErrWriteFailed):
		return vector.ErrWriteFailed.Error()
	case errors.Is(err, vector.ErrSearchFailed):
		return vector.ErrSearchFailed.Error()
	default:
		return "internal error"
	}
}

// writeError logs err and writes its payload.
func (s *Server) writeError(c *fiber.Ctx, status int, err error) error {
	resp := newErrorResponse(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(resp)
}

// fiberErrorHandler renders errors raised by fiber itself, such as unknown
// routes, in the same payload shape as service errors.
func fiberErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:  err.Error(),
		Detail: c.Path(),
	})
}
