package api

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/memory"
)

// StatusResponse is returned by the liveness and readiness probes.
type StatusResponse struct {
	Status string `json:"status"`
}

// handleHealth reports liveness without touching any dependency.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.memory.Health(c.UserContext()); err != nil {
		return s.writeError(c, fiber.StatusServiceUnavailable, err)
	}
	return c.JSON(StatusResponse{Status: "ok"})
}

// handleReady reports whether the chunk store is reachable.
func (s *Server) handleReady(c *fiber.Ctx) error {
	if err := s.memory.Ready(c.UserContext()); err != nil {
		return s.writeError(c, fiber.StatusServiceUnavailable, err)
	}
	return c.JSON(StatusResponse{Status: "ok"})
}

// handleConfig returns the running configuration and the dimension report.
func (s *Server) handleConfig(c *fiber.Ctx) error {
	report, err := s.memory.Config(c.UserContext())
	if err != nil {
		return s.writeError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(report)
}

// handleStore handles POST /memory/store.
func (s *Server) handleStore(c *fiber.Ctx) error {
	var req memory.StoreRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badBody(c, err)
	}

	result, err := s.memory.Store(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, statusFor(err), err)
	}

	return c.JSON(result)
}

// handleSearch handles POST /memory/search. An omitted top_k defaults to
// memory.DefaultTopK; an explicit out of range value is rejected.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	req := memory.SearchRequest{TopK: memory.DefaultTopK}
	if err := c.BodyParser(&req); err != nil {
		return s.badBody(c, err)
	}

	result, err := s.memory.Search(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, statusFor(err), err)
	}

	return c.JSON(result)
}

// handleDelete handles DELETE /memory/:doc_id.
func (s *Server) handleDelete(c *fiber.Ctx) error {
	docID, err := url.PathUnescape(c.Params("doc_id"))
	if err != nil {
		return s.badBody(c, err)
	}

	// Params are only valid for the lifetime of the handler and the id
	// outlives it in published events.
	result, err := s.memory.Delete(c.UserContext(), strings.Clone(docID))
	if err != nil {
		return s.writeError(c, statusFor(err), err)
	}

	return c.JSON(result)
}

func (s *Server) badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:  memory.ErrInvalidInput.Error(),
		Detail: err.Error(),
	})
}

// requestLogger logs each request at debug level once it completes.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()

	// Render chain errors here so the logged status is the one sent.
	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			return herr
		}
	}

	s.logger.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)

	return nil
}
