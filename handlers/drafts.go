package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Hommy-master/capcut-mate-data/services"
)

// DraftLister lists the downloadable files of a generated draft.
type DraftLister interface {
	DraftFiles(draftURL string) (services.DraftFilesResult, error)
}

// DraftHandler handles draft file requests
type DraftHandler struct {
	service DraftLister
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(service DraftLister) *DraftHandler {
	return &DraftHandler{service: service}
}

// DraftFilesRequest represents a request to list the files of a draft
type DraftFilesRequest struct {
	DraftURL string `json:"draft_url"`
}

// DraftFiles resolves a draft URL into download links for every file the
// draft contains, plus a documentation tip.
func (h *DraftHandler) DraftFiles(c *fiber.Ctx) error {
	var req DraftFilesRequest
	if err := validateBody(c, draftFilesSchema, &req); err != nil {
		return err
	}

	result, err := h.service.DraftFiles(req.DraftURL)
	if err != nil {
		return err
	}

	return c.JSON(result)
}
