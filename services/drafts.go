package services

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/Hommy-master/capcut-mate-data/apperr"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// draftIDPattern keeps draft lookups inside the draft root; anything else
// risks path traversal.
var draftIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// DraftService lists the files of a generated draft and rewrites their
// local paths into downloadable URLs.
type DraftService struct {
	draftDir    string
	appDir      string
	downloadURL string
	tipURL      string
}

// NewDraftService creates a DraftService. appDir is the rewrite root: file
// paths below it are exposed relative to downloadURL.
func NewDraftService(draftDir, appDir, downloadURL, tipURL string) *DraftService {
	return &DraftService{draftDir: draftDir, appDir: appDir, downloadURL: downloadURL, tipURL: tipURL}
}

// DraftFilesResult carries the download links plus a documentation pointer.
type DraftFilesResult struct {
	Files []string `json:"files"`
	Tip   string   `json:"tip"`
}

// DraftFiles resolves the draft referenced by draftURL into download links
// for every file it contains. The draft is identified by the draft_id query
// parameter of the given URL.
func (s *DraftService) DraftFiles(draftURL string) (DraftFilesResult, error) {
	draftID := utils.GetURLParam(draftURL, "draft_id", "")
	if draftID == "" {
		return DraftFilesResult{}, apperr.New(apperr.InvalidDraftURL, "missing draft_id parameter")
	}
	if !draftIDPattern.MatchString(draftID) {
		return DraftFilesResult{}, apperr.New(apperr.InvalidDraftURL, "draft_id contains invalid characters")
	}

	dir := filepath.Join(s.draftDir, draftID)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return DraftFilesResult{}, apperr.New(apperr.ResourceNotFound, "draft "+draftID)
	}

	files := utils.GetAllFiles(dir)
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, utils.PathToURL(f, s.appDir, s.downloadURL))
	}
	utils.LogInfo("Draft files listed", "draft_id", draftID, "count", len(urls))
	return DraftFilesResult{Files: urls, Tip: s.tipURL}, nil
}
