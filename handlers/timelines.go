package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Hommy-master/capcut-mate-data/metrics"
	"github.com/Hommy-master/capcut-mate-data/services"
)

// Timelines splits a media span into draft segments. The request carries
// the span in microseconds plus the segment count and strategy.
func Timelines(c *fiber.Ctx) error {
	var req services.TimelinesRequest
	if err := validateBody(c, timelinesSchema, &req); err != nil {
		return err
	}

	result, err := services.GenerateTimelines(req)
	if err != nil {
		return err
	}

	strategy := "equal"
	if req.Type != 0 {
		strategy = "random"
	}
	metrics.RecordTimelines(strategy)

	return c.JSON(result)
}
