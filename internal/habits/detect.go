package habits

import "regexp"

// category pairs a habit name with the phrases that report it.
type category struct {
	name     string
	patterns []*regexp.Regexp
}

// categories is checked in order; each category matches at most once.
var categories = []category{
	{"exercise", compile(`\bgym\b`, `\bworked out\b`, `\bworkout\b`, `\bexercised\b`, `\bfitness\b`, `\bran\b`, `\bjogged\b`)},
	{"meditation", compile(`\bmeditated\b`, `\bmeditation\b`, `\bmindfulness\b`)},
	{"reading", compile(`\bread\b`, `\breading\b`, `\bfinished .*\bbook\b`)},
	{"water", compile(`\bdrank .*\bwater\b`, `\bhydrated\b`, `\bwater bottles?\b`)},
	{"sleep", compile(`\bslept\b`, `\bwent to bed\b`, `\bgood night\b`, `\b8 hours\b`)},
	{"coding", compile(`\bcoded\b`, `\bcoding\b`, `\bprogramming\b`, `\bdevelopment\b`, `\bgithub\b`)},
	{"writing", compile(`\bwrote\b`, `\bwriting\b`, `\bjournal(ed|ing)?\b`, `\bblog\b`)},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Detect returns the habits text reports, in category order.
func Detect(text string) []string {
	var found []string
	for _, c := range categories {
		for _, p := range c.patterns {
			if p.MatchString(text) {
				found = append(found, c.name)
				break
			}
		}
	}
	return found
}

// Known reports whether name is a detectable habit.
func Known(name string) bool {
	for _, c := range categories {
		if c.name == name {
			return true
		}
	}
	return false
}
