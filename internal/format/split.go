package format

import (
	"strings"
	"unicode/utf8"
)

// Split breaks md into chunks of at most limit runes, preferring
// paragraph breaks, then line breaks, then a hard cut. Chunks are
// trimmed and never empty.
func Split(md string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return nil
	}
	if utf8.RuneCountInString(md) <= limit {
		return []string{md}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	add := func(piece, sep string) {
		n := utf8.RuneCountInString(piece)
		sepLen := utf8.RuneCountInString(sep)
		if curLen > 0 && curLen+sepLen+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += sepLen
		}
		cur.WriteString(piece)
		curLen += n
	}

	for _, para := range strings.Split(md, "\n\n") {
		if utf8.RuneCountInString(para) <= limit {
			add(para, "\n\n")
			continue
		}
		flush()
		for _, line := range strings.Split(para, "\n") {
			if utf8.RuneCountInString(line) <= limit {
				add(line, "\n")
				continue
			}
			flush()
			for _, piece := range hardCut(line, limit) {
				add(piece, "")
				flush()
			}
		}
		flush()
	}
	flush()
	return chunks
}

func hardCut(s string, limit int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
