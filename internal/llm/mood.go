package llm

import (
	"regexp"
	"strings"
)

// Mood is the emotional tone detected in a user's recent messages.
type Mood string

// Moods in tie-break order: when two moods score the same, the earlier
// one wins.
const (
	MoodHappy      Mood = "happy"
	MoodDown       Mood = "down"
	MoodExcited    Mood = "excited"
	MoodTired      Mood = "tired"
	MoodFrustrated Mood = "frustrated"
	MoodAnxious    Mood = "anxious"
	MoodNeutral    Mood = "neutral"
)

var moodOrder = []Mood{MoodHappy, MoodDown, MoodExcited, MoodTired, MoodFrustrated, MoodAnxious}

type weightedPattern struct {
	re     *regexp.Regexp
	weight int
}

// Emoji hits weigh 3; keyword hits 1 or 2.
var moodEmoji = map[Mood]*regexp.Regexp{
	MoodHappy:      regexp.MustCompile(`😊|😄|😁|🎉|❤|👍|✨|🔥|😍|🥳|🙌|💪`),
	MoodDown:       regexp.MustCompile(`😢|😭|😔|😞|💔|😩|😟|🥺|😓`),
	MoodExcited:    regexp.MustCompile(`🤩|😎|🚀|⚡|🎯|💯|🔥|🙌|✊`),
	MoodTired:      regexp.MustCompile(`😴|🥱|😫|💤|😵|🫠|😮‍💨`),
	MoodFrustrated: regexp.MustCompile(`😤|😠|😡|🤬|😒|🙄|😑`),
	MoodAnxious:    regexp.MustCompile(`😰|😨|😱|😬|🫨|😖`),
}

var moodKeywords = map[Mood][]weightedPattern{
	MoodHappy: {
		{regexp.MustCompile(`\b(crushed|nailed|killed)\s+(it|that|my)\b`), 2},
		{regexp.MustCompile(`\b(finally|yes|yay|woohoo|awesome)\b`), 2},
		{regexp.MustCompile(`\b(feeling\s+good|doing\s+great|went\s+well)\b`), 2},
		{regexp.MustCompile(`\b(proud|accomplished|achieved|completed)\b`), 1},
	},
	MoodExcited: {
		{regexp.MustCompile(`\b(let's\s+go|let's\s+do\s+this|pumped|hyped|ready)\b`), 2},
		{regexp.MustCompile(`\b(can't\s+wait|so\s+excited|omg|wow)\b`), 2},
		{regexp.MustCompile(`!{2,}`), 1},
	},
	MoodDown: {
		{regexp.MustCompile(`\b(feel(ing)?\s+(bad|down|low|awful|terrible|miserable))\b`), 2},
		{regexp.MustCompile(`\b(failed|messed\s+up|screwed\s+up|disaster)\b`), 2},
		{regexp.MustCompile(`\b(depressed|hopeless|worthless|useless)\b`), 2},
		{regexp.MustCompile(`\b(why\s+bother|what's\s+the\s+point|give\s+up)\b`), 1},
	},
	MoodTired: {
		{regexp.MustCompile(`\b(exhausted|drained|burnt\s+out|wiped\s+out)\b`), 2},
		{regexp.MustCompile(`\b(can'?t\s+(do\s+this|anymore|even))\b`), 2},
		{regexp.MustCompile(`\b(so\s+tired|dead\s+tired|need\s+sleep|need\s+(a\s+)?break)\b`), 2},
	},
	MoodFrustrated: {
		{regexp.MustCompile(`\b(annoying|irritating|frustrating|pissed\s+off)\b`), 2},
		{regexp.MustCompile(`\b(ugh|argh|ffs|wtf|seriously)\b`), 2},
		{regexp.MustCompile(`\b(stuck|blocked|not\s+working|broken)\b`), 1},
	},
	MoodAnxious: {
		{regexp.MustCompile(`\b(worried|anxious|nervous|scared|freaking\s+out)\b`), 2},
		{regexp.MustCompile(`\b(stressed|overwhelmed|panicking)\b`), 2},
		{regexp.MustCompile(`\b(what\s+if|don't\s+know\s+what|uncertain)\b`), 1},
	},
}

// DetectMood scores the last three messages against emoji and keyword
// tables and returns the highest-scoring mood, or MoodNeutral when
// nothing matches.
func DetectMood(messages []string) Mood {
	if len(messages) == 0 {
		return MoodNeutral
	}
	if len(messages) > 3 {
		messages = messages[len(messages)-3:]
	}
	text := strings.ToLower(strings.Join(messages, " "))

	scores := make(map[Mood]int, len(moodOrder))
	for mood, re := range moodEmoji {
		if re.MatchString(text) {
			scores[mood] += 3
		}
	}
	for mood, patterns := range moodKeywords {
		for _, p := range patterns {
			if p.re.MatchString(text) {
				scores[mood] += p.weight
			}
		}
	}

	best, bestScore := MoodNeutral, 0
	for _, m := range moodOrder {
		if scores[m] > bestScore {
			best, bestScore = m, scores[m]
		}
	}
	return best
}

// Temperature is the decoding temperature suited to a mood: looser for
// excitement, tighter for low or anxious moods.
func (m Mood) Temperature() float64 {
	switch m {
	case MoodExcited:
		return 0.9
	case MoodAnxious, MoodDown:
		return 0.5
	case MoodFrustrated:
		return 0.6
	default:
		return 0.7
	}
}

var complexityPattern = regexp.MustCompile(`(?i)how|why|what|explain|tell me about|details`)

// ReplyBudget returns the max-token budget for a conversational reply.
// Later rules override earlier ones.
func ReplyBudget(prompt string, m Mood) int {
	tokens := 100
	if complexityPattern.MatchString(prompt) || len(prompt) > 100 {
		tokens = 200
	}
	if m == MoodDown || m == MoodAnxious {
		tokens = 180
	}
	if m == MoodExcited || m == MoodHappy {
		tokens = 120
	}
	if m == MoodTired {
		tokens = 80
	}
	return tokens
}
