package web

import (
	"bufio"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khaledhikmat/vs-face/codec"
	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/lgr"
)

// handleVideoFeed streams annotated camera frames as multipart/x-mixed-replace.
// The camera is opened per request.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	capture, err := s.streamer.Open(s.ctx)
	if err != nil {
		lgr.Logger.Error("error in /video_feed", slog.Any("error", lgr.Trace(err)))
		return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Error: err.Error()})
	}

	c.Set(fiber.HeaderContentType, codec.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// The request context is recycled once the handler returns, so the
	// writer only uses the server context.
	ctx := s.ctx
	streamer := s.streamer
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := streamer.Stream(ctx, capture, w); err != nil {
			lgr.Logger.Debug("video feed ended", slog.Any("reason", err))
		}
	})

	return nil
}

// handleAnalyzeFrame analyses one data-URL image. Every failure is a 500.
func (s *Server) handleAnalyzeFrame(c *fiber.Ctx) error {
	var req model.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return s.analyzeFailed(c, err)
	}

	resp, err := s.frameAnalyzer.AnalyzeRequest(c.UserContext(), req)
	if err != nil {
		return s.analyzeFailed(c, err)
	}

	return c.JSON(resp)
}

func (s *Server) analyzeFailed(c *fiber.Ctx, err error) error {
	lgr.Logger.Error("error in /analyze_frame", slog.Any("error", lgr.Trace(err)))
	return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"analyzer": s.analyzerName,
	})
}
