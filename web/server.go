// Package web serves the video feed and single-frame analysis over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/pipeline"
	"github.com/khaledhikmat/vs-face/service/lgr"
)

// Server is the HTTP surface. Streams started by /video_feed end when ctx is done.
type Server struct {
	ctx           context.Context
	app           *fiber.App
	port          int
	analyzerName  string
	streamer      *pipeline.VideoStreamer
	frameAnalyzer *pipeline.FrameAnalyzer
}

func NewServer(ctx context.Context, port int, analyzerName string, streamer *pipeline.VideoStreamer, frameAnalyzer *pipeline.FrameAnalyzer) *Server {
	s := &Server{
		ctx:           ctx,
		port:          port,
		analyzerName:  analyzerName,
		streamer:      streamer,
		frameAnalyzer: frameAnalyzer,
	}

	app := fiber.New(fiber.Config{
		AppName:               "vs-face",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		// Base64 frames from browsers easily exceed the 4MB default.
		BodyLimit: 16 * 1024 * 1024,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			lgr.Logger.Error("handler panic",
				slog.String("path", c.Path()),
				slog.Any("panic", e),
			)
		},
	}))
	app.Use(cors.New())

	app.Get("/video_feed", s.handleVideoFeed)
	app.Post("/analyze_frame", s.handleAnalyzeFrame)
	app.Get("/healthz", s.handleHealth)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks until the server stops.
func (s *Server) Listen() error {
	lgr.Logger.Info("http server listening", slog.Int("port", s.port))
	return s.app.Listen(fmt.Sprintf(":%d", s.port))
}

func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// errorHandler renders every unhandled error as {"error": "..."}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	return c.Status(code).JSON(model.ErrorResponse{Error: err.Error()})
}
