package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// DurationResolver resolves remote audio durations in microseconds.
type DurationResolver interface {
	AudioDuration(ctx context.Context, url string) (int64, error)
}

// DurationHandler handles audio duration requests
type DurationHandler struct {
	service DurationResolver
}

// NewDurationHandler creates a new duration handler
func NewDurationHandler(service DurationResolver) *DurationHandler {
	return &DurationHandler{service: service}
}

// AudioDurationRequest represents a request to probe a remote audio file
type AudioDurationRequest struct {
	AudioURL string `json:"audio_url"`
}

// AudioDuration downloads the referenced audio and reports its duration in
// microseconds.
func (h *DurationHandler) AudioDuration(c *fiber.Ctx) error {
	var req AudioDurationRequest
	if err := validateBody(c, audioDurationSchema, &req); err != nil {
		return err
	}

	duration, err := h.service.AudioDuration(c.UserContext(), req.AudioURL)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"duration": duration})
}
