package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GenerateUniqueFilename returns a collision-free, filesystem-safe name for an
// upload stored under dir, keeping the original extension.
func GenerateUniqueFilename(dir, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = strings.Trim(unsafeFilenameChars.ReplaceAllString(base, "_"), "_.")
	if len(base) > 60 {
		base = base[:60]
	}
	if base == "" {
		base = "upload"
	}
	stamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("%s_%s_%s%s", stamp, uuid.NewString()[:8], base, ext)
}
