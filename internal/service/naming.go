package service

import (
	"path/filepath"
	"strings"

	"studiograb/internal/core/domain"
)

// FinalFileName builds the deterministic download name:
// {orderingPrefix_}{logicalName}{extension}. The extension comes from the
// suggested name when it carries one of plausible length; otherwise the
// kind's default applies, because the remote app sometimes omits
// extensions entirely. Re-applying with the same prefix is a no-op: no
// double prefix, no doubled extension.
func FinalFileName(prefix, logical, suggested string, kind domain.ArtifactKind) string {
	ext := plausibleExtension(suggested)
	if ext == "" {
		ext = kind.DefaultExtension()
	}
	name := sanitizeFileName(logical)
	if name == "" {
		name = kind.String()
	}
	if prefix != "" && !strings.HasPrefix(name, prefix+"_") {
		name = prefix + "_" + name
	}
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}
	return name
}

// plausibleExtension extracts a usable extension from a suggested name:
// 1 to 5 alphanumeric characters after the final dot. Anything else
// (missing, bare dot, oversized, punctuated) is discarded.
func plausibleExtension(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return ""
	}
	body := ext[1:]
	if len(body) > 5 {
		return ""
	}
	for _, r := range body {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return ""
		}
	}
	return strings.ToLower(ext)
}

// sanitizeFileName keeps letters, digits, dot, dash and underscore;
// spaces become underscores and everything else is dropped. Dots survive
// so an already-finalized name passes through unchanged.
func sanitizeFileName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
