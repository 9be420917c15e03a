package middleware

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/Hommy-master/capcut-mate-data/apperr"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// Prepare ensures the working directories exist before any handler runs.
// Drafts and temp files land in volumes that may be recreated underneath a
// running container, so this check happens per request.
func Prepare(dirs ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, dir := range dirs {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				utils.LogRequestError(c, "failed to prepare directory", err, "dir", dir)
				return apperr.New(apperr.InternalServerError, "prepare directory "+dir+": "+err.Error())
			}
		}
		return c.Next()
	}
}
