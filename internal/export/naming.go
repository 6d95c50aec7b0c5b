package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/permit-dashboard-api/internal/models"
)

// TimestampLayout is the timestamp embedded in export file names
const TimestampLayout = "20060102_150405"

const maxNameLength = 100

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._@-]+`)
	dotRuns         = regexp.MustCompile(`\.{2,}`)
)

// Sanitize reduces s to a safe single path segment made of letters, digits
// and the characters . _ - @. Separators and ".." sequences never survive. The
// result is empty when nothing usable remains.
func Sanitize(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = dotRuns.ReplaceAllString(s, ".")
	s = strings.Trim(s, "._-")
	if len(s) > maxNameLength {
		s = strings.TrimRight(s[:maxNameLength], "._-")
	}
	return s
}

// FileName builds <base>_<YYYYMMDD_HHMMSS>.<ext> for an already sanitized base
func FileName(base string, at time.Time, format models.ExportFormat) string {
	return fmt.Sprintf("%s_%s.%s", base, at.UTC().Format(TimestampLayout), format.Extension())
}

// Title turns a base name into a report title: "permit_summary" -> "Permit Summary"
func Title(base string) string {
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
