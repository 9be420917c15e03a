package handlers

import (
	_ "embed"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Hommy-master/capcut-mate-data/apperr"
)

//go:embed schemas/timelines.json
var timelinesSchemaJSON string

//go:embed schemas/audio_duration.json
var audioDurationSchemaJSON string

//go:embed schemas/draft_files.json
var draftFilesSchemaJSON string

// Schemas are compiled once at startup; a broken schema is a build defect
// and panics immediately.
var (
	timelinesSchema     = jsonschema.MustCompileString("timelines.json", timelinesSchemaJSON)
	audioDurationSchema = jsonschema.MustCompileString("audio_duration.json", audioDurationSchemaJSON)
	draftFilesSchema    = jsonschema.MustCompileString("draft_files.json", draftFilesSchemaJSON)
)

// validateBody checks the request body against schema and unmarshals it
// into out. Failures come back as parameter validation errors whose detail
// lists each offending field as "field: reason".
func validateBody(c *fiber.Ctx, schema *jsonschema.Schema, out interface{}) error {
	var raw interface{}
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return apperr.New(apperr.ParamValidationFailed, "body: invalid JSON")
	}
	if err := schema.Validate(raw); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return apperr.New(apperr.ParamValidationFailed, formatValidationError(ve))
		}
		return apperr.New(apperr.ParamValidationFailed, err.Error())
	}
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return apperr.New(apperr.ParamValidationFailed, "body: "+err.Error())
	}
	return nil
}

func formatValidationError(ve *jsonschema.ValidationError) string {
	leaves := collectLeafCauses(ve)
	parts := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		field := strings.ReplaceAll(strings.TrimPrefix(leaf.InstanceLocation, "/"), "/", ".")
		if field == "" {
			field = "body"
		}
		parts = append(parts, field+": "+leaf.Message)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func collectLeafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, collectLeafCauses(cause)...)
	}
	return leaves
}
