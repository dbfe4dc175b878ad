package health

import (
	"regexp"
	"strconv"
	"strings"
)

// Meal types.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// Mood kinds and the 1-10 level each one is logged with.
const (
	MoodPositive = "positive"
	MoodContent  = "content"
	MoodNeutral  = "neutral"
	MoodAnxious  = "anxious"
	MoodNegative = "negative"
)

// MoodLevel maps a mood kind to its 1-10 level.
func MoodLevel(kind string) int {
	switch kind {
	case MoodPositive:
		return 8
	case MoodContent:
		return 7
	case MoodAnxious:
		return 3
	case MoodNegative:
		return 2
	default:
		return 5
	}
}

// Log kinds for health_logs.
const (
	KindFitness = "fitness"
	KindWater   = "water"
	KindSleep   = "sleep"
)

// Meal is a detected meal mention.
type Meal struct {
	Type        string
	Description string
}

// Mood is a detected mood.
type Mood struct {
	Kind  string
	Level int
	Note  string
}

// Activity is a detected fitness, water or sleep mention.
type Activity struct {
	Kind   string
	Value  float64 // glasses, hours; zero when unknown
	Unit   string
	Detail string // activity name or sleep quality
	Note   string
}

// Detection is everything found in one message.
type Detection struct {
	Meals      []Meal
	Mood       *Mood
	Activities []Activity
}

// Empty reports whether nothing was detected.
func (d Detection) Empty() bool {
	return len(d.Meals) == 0 && d.Mood == nil && len(d.Activities) == 0
}

type pattern struct {
	name string
	res  []*regexp.Regexp
}

func words(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)\b` + e + `\b`)
	}
	return out
}

var mealPatterns = []pattern{
	{MealBreakfast, words(`breakfast`, `morning meal`)},
	{MealLunch, words(`lunch`, `noon meal`)},
	{MealDinner, words(`dinner`, `evening meal`, `supper`)},
	{MealSnack, words(`snacks?`, `treat`, `munch(ed)?`, `nibbled?`)},
}

// moodPatterns is in priority order; strong words outrank weak ones.
var moodPatterns = []pattern{
	{MoodPositive, words(`happy`, `great`, `excellent`, `wonderful`, `fantastic`, `amazing`, `awesome`)},
	{MoodNegative, words(`sad`, `upset`, `angry`, `frustrated`, `disappointed`, `terrible`)},
	{MoodNeutral, words(`okay`, `fine`, `alright`, `meh`, `normal`)},
	{MoodAnxious, words(`anxious`, `worried`, `stressed`, `nervous`, `overwhelmed`)},
	{MoodContent, words(`calm`, `peaceful`, `relaxed`, `content`, `satisfied`)},
}

var strongMood = words(`excellent`, `amazing`, `awesome`, `wonderful`, `fantastic`, `terrible`, `disappointed`)

var (
	fitnessPatterns = words(`workout`, `exercise`, `jogging`, `running`, `gym`, `cardio`, `strength training`, `yoga`, `skipping`)
	waterPatterns   = words(`drank water`, `glass(es)? of water`, `bottles? of water`, `hydrated`, `stayed hydrated`)
	sleepPatterns   = words(`slept`, `bedtime`, `woke up`, `hours of sleep`, `well rested`, `nap`)

	fitnessActivities = []string{"running", "jogging", "cycling", "swimming", "yoga", "pilates", "weights", "cardio", "skipping"}

	waterAmount = regexp.MustCompile(`(?i)(\d+)\s*(glass(?:es)?|bottles?|cups?|liters?|ml|oz)\b`)
	sleepHours  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*hours?\s*(?:of\s*)?sleep`)
	sleptHours  = regexp.MustCompile(`(?i)slept\s+(?:for\s+)?(\d+(?:\.\d+)?)\s*hours?`)
	foodWords   = regexp.MustCompile(`(?i)\b(pizza|pasta|salad|soup|sandwich|chicken|fish|beef|rice|bread|fruit|vegetable|cake|cookie|ice cream|eggs?|oatmeal|toast)\w*`)
)

var mealDescription = map[string]*regexp.Regexp{
	MealBreakfast: regexp.MustCompile(`(?i)breakfast[\s:,]+(?:was\s+|of\s+)?(.{3,}?)(?:[.!]|$)`),
	MealLunch:     regexp.MustCompile(`(?i)lunch[\s:,]+(?:was\s+|of\s+)?(.{3,}?)(?:[.!]|$)`),
	MealDinner:    regexp.MustCompile(`(?i)dinner[\s:,]+(?:was\s+|of\s+)?(.{3,}?)(?:[.!]|$)`),
	MealSnack:     regexp.MustCompile(`(?i)snack[\s:,]+(?:was\s+|of\s+)?(.{3,}?)(?:[.!]|$)`),
}

// Detect scans text for meals, mood, fitness, water and sleep.
func Detect(text string) Detection {
	var d Detection

	for _, p := range mealPatterns {
		if matchAny(p.res, text) {
			d.Meals = append(d.Meals, Meal{Type: p.name, Description: describeMeal(text, p.name)})
		}
	}

	d.Mood = detectMood(text)

	if matchAny(fitnessPatterns, text) {
		d.Activities = append(d.Activities, Activity{
			Kind:   KindFitness,
			Detail: fitnessActivity(text),
			Note:   clip(text, 150),
		})
	}
	if matchAny(waterPatterns, text) {
		amount, unit := waterIntake(text)
		d.Activities = append(d.Activities, Activity{
			Kind:  KindWater,
			Value: amount,
			Unit:  unit,
			Note:  clip(text, 150),
		})
	}
	if matchAny(sleepPatterns, text) {
		hours, quality := sleepData(text)
		a := Activity{Kind: KindSleep, Value: hours, Detail: quality, Note: clip(text, 150)}
		if hours > 0 {
			a.Unit = "hours"
		}
		d.Activities = append(d.Activities, a)
	}
	return d
}

func matchAny(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func describeMeal(text, meal string) string {
	if m := mealDescription[meal].FindStringSubmatch(text); m != nil {
		if d := strings.TrimSpace(m[1]); d != "" {
			return d
		}
	}
	if foods := foodWords.FindAllString(text, 3); len(foods) > 0 {
		return strings.Join(foods, ", ")
	}
	return clip(text, 100)
}

// detectMood returns the best scoring mood. A match in the first 50
// bytes scores higher, as does a strong word.
func detectMood(text string) *Mood {
	var best *Mood
	bestScore := 0
	for _, p := range moodPatterns {
		for _, re := range p.res {
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			score := 5
			if loc[0] < 50 {
				score += 2
			}
			if matchAny(strongMood, text[loc[0]:loc[1]]) {
				score += 3
			}
			if score > bestScore {
				bestScore = score
				best = &Mood{Kind: p.name, Level: MoodLevel(p.name), Note: clip(text, 200)}
			}
		}
	}
	return best
}

func fitnessActivity(text string) string {
	lower := strings.ToLower(text)
	for _, a := range fitnessActivities {
		if strings.Contains(lower, a) {
			return a
		}
	}
	if strings.Contains(lower, "workout") || strings.Contains(lower, "exercise") || strings.Contains(lower, "gym") {
		return "workout"
	}
	return "exercise"
}

// waterIntake defaults to one glass when no amount is given.
func waterIntake(text string) (float64, string) {
	if m := waterAmount.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return float64(n), strings.ToLower(m[2])
	}
	return 1, "glass"
}

func sleepData(text string) (float64, string) {
	m := sleepHours.FindStringSubmatch(text)
	if m == nil {
		m = sleptHours.FindStringSubmatch(text)
	}
	if m != nil {
		hours, _ := strconv.ParseFloat(m[1], 64)
		switch {
		case hours >= 7:
			return hours, "good"
		case hours >= 5:
			return hours, "fair"
		default:
			return hours, "poor"
		}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "well rested"), strings.Contains(lower, "refreshed"):
		return 0, "good"
	case strings.Contains(lower, "tired"), strings.Contains(lower, "exhausted"):
		return 0, "poor"
	}
	return 0, "unknown"
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
