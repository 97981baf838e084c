package webproxy

import (
	"strings"

	"github.com/samber/lo"

	"github.com/looplj/webproxy/internal/pkg/xregexp"
)

// GlobToPattern turns a file-glob style host rule into an anchored regular expression.
// Literal characters are escaped, "*" matches any sequence and "?" any single character.
func GlobToPattern(glob string) string {
	escaped := xregexp.Escape(glob)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")

	return "^" + escaped + "$"
}

func GlobsToPatterns(globs []string) []string {
	return lo.Map(globs, func(glob string, _ int) string {
		return GlobToPattern(glob)
	})
}

// splitBypassList splits a delimited bypass list, dropping blank entries. Entries equal to
// localToken are reported through the local flag instead of being returned.
func splitBypassList(list string, sep string, localToken string) (globs []string, local bool) {
	entries := lo.FilterMap(strings.Split(list, sep), func(entry string, _ int) (string, bool) {
		entry = strings.TrimSpace(entry)
		return entry, entry != ""
	})

	for _, entry := range entries {
		if entry == localToken {
			local = true
			continue
		}

		globs = append(globs, entry)
	}

	return globs, local
}
