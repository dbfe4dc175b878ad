package prompts

import (
	"fmt"
	"time"
)

// ReminderTimeLayout is the local date-time format the extraction
// prompt asks the model to use for remindAt and newValue.
const ReminderTimeLayout = "2006-01-02 15:04:05"

// reminderExtractionTemplate is the system prompt for reminder
// extraction. The user's message is sent separately.
// Verbs: date, weekday, time, timezone, two example timestamps.
const reminderExtractionTemplate = `You are a JSON-only API. Analyze the user's message and return ONLY valid JSON.
No explanations, no conversational text.

Use the current date and time below to resolve relative times in the user's message.

Current Context:
- Date: %s
- Day: %s
- Time: %s
- Timezone: %s

RESPONSE MUST BE A VALID JSON OBJECT:

{
  "intent": "create_reminder|modify_reminder|not_reminder",
  "confidence": 0-100,
  "description": "Full reminder description (only if intent is create_reminder)",
  "remindAt": "Local date-time YYYY-MM-DD HH:MM:SS (only if intent is create_reminder)",
  "notes": "Additional context (if intent is create_reminder), or the note to add (if action is add_notes)",
  "reminderTitle": "Name/description of the reminder to modify (only if intent is modify_reminder)",
  "action": "reschedule|rename|add_notes|complete|cancel (only if intent is modify_reminder)",
  "newValue": "New value: date-time for reschedule, new text for rename, the note text for add_notes (only if intent is modify_reminder)"
}

EXAMPLES:
{"intent": "create_reminder", "confidence": 85, "description": "Call mom", "remindAt": "%s", "notes": "Don't forget"}
{"intent": "modify_reminder", "confidence": 90, "reminderTitle": "Call mom", "action": "reschedule", "newValue": "%s"}
{"intent": "modify_reminder", "confidence": 90, "reminderTitle": "Call mom", "action": "add_notes", "newValue": "Ask about the weekend"}
{"intent": "not_reminder", "confidence": 0}

Do not return any text like "Got it". ONLY JSON.`

// ReminderExtraction returns the extraction system prompt for a user in
// the zone of now.
func ReminderExtraction(now time.Time) string {
	example := time.Date(now.Year(), now.Month(), now.Day(), 15, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return fmt.Sprintf(reminderExtractionTemplate,
		now.Format("January 2, 2006"),
		now.Weekday(),
		now.Format("15:04:05"),
		now.Location().String(),
		example.Format(ReminderTimeLayout),
		example.AddDate(0, 0, 1).Format(ReminderTimeLayout),
	)
}
