package utils

import (
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GetURLParam extracts the first value of a query parameter from a URL.
// Returns def when the URL is unparsable or the parameter is absent or empty.
func GetURLParam(rawURL, key, def string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	values := u.Query()[key]
	if len(values) == 0 || values[0] == "" {
		return def
	}
	return values[0]
}

// GenUniqueID returns a sortable unique ID: a second-resolution timestamp
// followed by 8 random hex characters.
func GenUniqueID() string {
	id := uuid.New()
	return time.Now().Format("20060102150405") + fmt.Sprintf("%x", id[:4])
}

// GetAllFiles recursively lists every regular file below dir. A missing or
// unreadable directory yields an empty list, not an error.
func GetAllFiles(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// PathToURL rewrites a file path under root into a public URL on base,
// e.g. /app/output/draft/a/x.json -> https://host/output/draft/a/x.json.
func PathToURL(path, root, base string) string {
	prefix := strings.TrimSuffix(root, "/") + "/"
	rel := strings.TrimPrefix(path, prefix)
	return strings.TrimSuffix(base, "/") + "/" + filepath.ToSlash(rel)
}
