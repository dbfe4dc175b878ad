package prompts

import "fmt"

// Fixed replies. All are CommonMark.
const (
	GenericError   = "Sorry, something went wrong. Please try again."
	AIUnavailable  = "I'm having trouble thinking right now. Please try again in a moment."
	UnknownCommand = "Unknown command. Type /help to see available commands."
	UnknownAction  = "Unknown action"
	UserNotFound   = "User not found. Please start the bot first."
	CallbackFailed = "An error occurred"

	ReminderFailed = "❌ Could not create reminder. Please try again."
	ModifyFailed   = "❌ Could not process reminder request. Try: 'Remind me to [task] at [time]' or 'Update [reminder name] to [new time]'"

	NoHabits = "No habits tracked yet! I'll automatically detect and track habits from your daily conversations. Try telling me about your workout, reading, or other activities."
	NoTasks  = "📝 No tasks yet. Try saying 'add a task to buy milk'! Or allow me to detect tasks from your messages."
)

const startTemplate = `Hey %s! 👋 I'm your AI personal assistant. I can help you with:

📝 Task management
⏰ Reminders
💪 Habit tracking
📊 Daily reports
💬 Just chatting!

Try saying something like "remind me to call mom tomorrow at 6pm" or tell me about your day!`

// Start is the /start reply.
func Start(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(startTemplate, name)
}

// Help is the /help reply.
const Help = `Here's what I can do:

🤖 **Chat**: Just talk to me naturally!
⏰ **Reminders**: "remind me to X at Y time"
📝 **Tasks**: "add a task to buy milk" or I'll detect them
💪 **Habits**: I'll track habits from your messages
📊 **Reports**: Ask for daily/weekly summaries
📁 **Files**: Send me photos, docs, voice messages

**Commands:**

/tasks - View your tasks
/habits - View your habits
/reminders - View pending reminders
/report - Get today's summary
/settings - Adjust preferences`

var motivations = []string{
	"Great job staying productive! 🌟",
	"Keep up the excellent work! 💪",
	"You're making progress every day! 🚀",
	"Proud of your consistency! 🏆",
	"Another day of growth! 🌱",
}

// Motivation returns a closing line for the daily report, chosen by
// pick modulo the number of lines.
func Motivation(pick int) string {
	if pick < 0 {
		pick = -pick
	}
	return motivations[pick%len(motivations)]
}

// Media acknowledgement prompts, sent through the persona.

// PhotoShared is the prompt for an incoming photo.
func PhotoShared(caption string) string {
	if caption != "" {
		return fmt.Sprintf("User shared a photo with caption: %q. Respond encouragingly and ask relevant questions if appropriate.", caption)
	}
	return "User shared a photo. Respond encouragingly and ask relevant questions if appropriate."
}

// DocumentShared is the prompt for an incoming document.
func DocumentShared(fileName string) string {
	if fileName == "" {
		fileName = "document"
	}
	return fmt.Sprintf("User shared a document named %q. Respond encouragingly and offer to help with document-related tasks.", fileName)
}

// VoiceShared is the prompt for an incoming voice message.
func VoiceShared(seconds int) string {
	return fmt.Sprintf("User sent a voice message (%d seconds). Respond encouragingly and mention that you heard them.", seconds)
}

// SaveFailed is sent when an incoming file could not be recorded. kind
// is "photo", "document" or "voice message".
func SaveFailed(kind string) string {
	return fmt.Sprintf("Sorry, I couldn't save your %s. Please try again.", kind)
}
