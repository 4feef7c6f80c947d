package ingest

import (
	"fmt"
	"strings"
)

const bom = string(rune(0xFEFF))

// NormalizeHeaders applies spec §4.6 step 2 to one raw header record:
// trim, strip a leading BOM from the first header, collapse internal
// newlines to a single space, replace blanks with a positional
// placeholder, and dedupe by suffixing later occurrences. Idempotent per
// spec §8: applying it twice equals applying it once.
func NormalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))

	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		h = strings.TrimSpace(h)
		h = collapseNewlines(h)
		if h == "" {
			h = fmt.Sprintf("_col_%d", i+1)
		}

		if n, ok := seen[h]; ok {
			n++
			seen[h] = n
			out[i] = fmt.Sprintf("%s_%d", h, n)
			continue
		}
		seen[h] = 1
		out[i] = h
	}
	return out
}

func collapseNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevWasNewline := false
	for _, r := range s {
		if r == '\n' || r == '\r' {
			if !prevWasNewline {
				b.WriteByte(' ')
			}
			prevWasNewline = true
			continue
		}
		prevWasNewline = false
		b.WriteRune(r)
	}
	return b.String()
}
