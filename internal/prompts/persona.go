package prompts

import (
	"fmt"
	"strings"
)

// personaTemplate is the system prompt for conversational replies.
// Verbs: user profile, mood, personality line.
const personaTemplate = `You are a personal AI companion chatting on Telegram with these traits:
- Friendly, witty, and motivating
- Remember the user's goals and habits
- Provide practical advice and encouragement
- Keep responses concise but warm
- Adapt your tone to the user's mood
- Help with productivity, habits, and personal growth
- Raise questions only if the conversation is informative, engaging, or the user is opening up

Context about the user: %s
Recent vibe: %s
Personality mix: %s`

var moodPersonalities = map[string]string{
	"happy":      "Be playful and energetic.",
	"down":       "Be supportive but keep it real - no toxic positivity.",
	"excited":    "Match their hype! Use exclamation marks and energy.",
	"tired":      "Be chill and understanding. Short responses.",
	"frustrated": "Be patient and helpful. Don't dismiss their frustration.",
	"anxious":    "Be calm and reassuring. Keep it grounded.",
	"neutral":    "Be balanced - friendly but not over the top.",
}

// TimeOfDay labels a local hour for the personality line.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Morning energy ☀️"
	case hour >= 12 && hour < 17:
		return "Midday flow 🌤️"
	case hour >= 17 && hour < 21:
		return "Evening chill 🌆"
	case hour >= 21 && hour < 24:
		return "Night vibes 🌙"
	default:
		return "Late night hustle 🌃"
	}
}

// Personality combines the mood instruction with the time-of-day label.
func Personality(mood string, hour int) string {
	p, ok := moodPersonalities[mood]
	if !ok {
		p = moodPersonalities["neutral"]
	}
	return p + " " + TimeOfDay(hour)
}

// Persona returns the system prompt for a conversational reply.
// profile is a short description of the user ("name: Sam, timezone:
// Europe/Berlin"); empty profiles render as "{}".
func Persona(profile, mood string, hour int) string {
	if strings.TrimSpace(profile) == "" {
		profile = "{}"
	}
	if mood == "" {
		mood = "neutral"
	}
	return fmt.Sprintf(personaTemplate, profile, mood, Personality(mood, hour))
}
