package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Hommy-master/capcut-mate-data/apperr"
	"github.com/Hommy-master/capcut-mate-data/metrics"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// langKey is the locals key carrying the negotiated response language.
const langKey = "response_lang"

// DetectLanguage picks zh or en from an Accept-Language header. Only the
// first comma-separated token counts; anything unrecognized falls back to zh.
func DetectLanguage(header string) apperr.Lang {
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(strings.TrimSpace(first), "-")
	if strings.EqualFold(tag, "en") {
		return apperr.LangEN
	}
	return apperr.LangZH
}

// Lang reports the language negotiated for the current request.
func Lang(c *fiber.Ctx) apperr.Lang {
	if lang, ok := c.Locals(langKey).(apperr.Lang); ok {
		return lang
	}
	return apperr.LangZH
}

// UnifiedResponse wraps API routes into the envelope contract: the transport
// status is always 200 and the body carries a business code, a localized
// message, and the payload fields. Panics, coded errors, and router errors
// all end up in the same shape.
func UnifiedResponse() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		lang := DetectLanguage(c.Get(fiber.HeaderAcceptLanguage))
		c.Locals(langKey, lang)

		defer func() {
			if r := recover(); r != nil {
				utils.LogRequestError(c, "panic recovered", fmt.Errorf("%v", r), "stack", string(debug.Stack()))
				metrics.RecordBusinessError(apperr.InternalServerError.Value)
				err = writeEnvelope(c, apperr.InternalServerError.Payload(lang, fmt.Sprint(r)))
			}
		}()

		if handlerErr := c.Next(); handlerErr != nil {
			return renderError(c, lang, handlerErr)
		}
		return renderSuccess(c, lang)
	}
}

func renderError(c *fiber.Ctx, lang apperr.Lang, err error) error {
	if coded, ok := apperr.As(err); ok {
		metrics.RecordBusinessError(coded.Code.Value)
		utils.LogRequestError(c, "request failed", err)
		return writeEnvelope(c, coded.Code.Payload(lang, coded.Detail))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		// Router-level errors (404, 405, 429) keep their HTTP status as the
		// business code inside the envelope.
		metrics.RecordBusinessError(fiberErr.Code)
		return writeEnvelope(c, apperr.Payload{
			Code:    fiberErr.Code,
			Message: fmt.Sprintf("HTTP Error %d, detail: %s", fiberErr.Code, fiberErr.Message),
		})
	}

	metrics.RecordBusinessError(apperr.InternalServerError.Value)
	utils.LogRequestError(c, "unhandled error", err)
	return writeEnvelope(c, apperr.InternalServerError.Payload(lang, err.Error()))
}

// renderSuccess normalizes handler output. JSON bodies that already carry
// code and message pass through; other JSON objects are merged under a
// success envelope; non-JSON bodies are left alone.
func renderSuccess(c *fiber.Ctx, lang apperr.Lang) error {
	status := c.Response().StatusCode()
	if status != fiber.StatusOK {
		metrics.RecordBusinessError(status)
		return writeEnvelope(c, apperr.Payload{
			Code:    status,
			Message: fmt.Sprintf("HTTP Error %d, detail: %s", status, string(c.Response().Body())),
		})
	}

	var data map[string]interface{}
	if err := json.Unmarshal(c.Response().Body(), &data); err != nil {
		return nil
	}
	if _, hasCode := data["code"]; hasCode {
		if _, hasMessage := data["message"]; hasMessage {
			return nil
		}
	}

	merged := map[string]interface{}{
		"code":    apperr.Success.Value,
		"message": apperr.Success.Message(lang),
	}
	for k, v := range data {
		merged[k] = v
	}
	return c.JSON(merged)
}

func writeEnvelope(c *fiber.Ctx, payload apperr.Payload) error {
	return c.Status(fiber.StatusOK).JSON(payload)
}
