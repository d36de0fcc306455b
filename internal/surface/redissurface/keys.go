package redissurface

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxSiteTextLen = 64

// siteTag renders a site id as a key segment. The readable part is sanitized
// and truncated; the hash suffix keeps distinct ids apart after that.
func siteTag(site string) string {
	site = strings.TrimSpace(site)
	safe := sanitize(site)
	if len(safe) > maxSiteTextLen {
		safe = safe[:maxSiteTextLen]
	}
	return fmt.Sprintf("%s:%08x", safe, uint32(xxhash.Sum64String(site)))
}

func overlayKey(site, id string) string {
	return "overlay:" + siteTag(site) + ":" + sanitize(id)
}

func indexKey(site string) string {
	return "overlays:" + siteTag(site)
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			// ':' included, it separates key segments
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
