package prompts

import "fmt"

// Greeting windows, matched against the user's local hour.
const (
	WindowMorning   = "morning"
	WindowAfternoon = "afternoon"
	WindowEvening   = "evening"
)

var greetings = map[string][]string{
	WindowMorning: {
		"🌅 Good morning, %s! Rise and shine! How are you starting your day today?",
		"☀️ Morning, %s! Ready to conquer the day? What's your plan for today?",
		"🌞 Top of the morning to you, %s! How did you sleep?",
	},
	WindowAfternoon: {
		"🌤️ Good afternoon, %s! Hope your day is going well. How's your energy level?",
		"☀️ Afternoon, %s! How has your day been so far?",
		"🌅 Hi %s! How's everything going this afternoon?",
	},
	WindowEvening: {
		"🌙 Good evening, %s! How was your day? Ready to wind down?",
		"🌆 Evening greetings, %s! What was the highlight of your day?",
		"🌠 Hi %s! How are you feeling as the day comes to a close?",
	},
}

// Greeting returns one of the greetings for window. pick selects the
// variant (taken modulo the number of variants); unknown windows get a
// plain hello.
func Greeting(name, window string, pick int) string {
	if name == "" {
		name = "friend"
	}
	options := greetings[window]
	if len(options) == 0 {
		return fmt.Sprintf("Hi %s!", name)
	}
	if pick < 0 {
		pick = -pick
	}
	return fmt.Sprintf(options[pick%len(options)], name)
}

// GreetingVariants reports how many variants window has.
func GreetingVariants(window string) int {
	return len(greetings[window])
}

// eveningReflectionTemplate is CommonMark; the sender renders it.
// Verbs: first name.
const eveningReflectionTemplate = `🌙 Good evening, %s! Time for your daily reflection.

As the day winds down, let's take a moment to reflect on today and set intentions for tomorrow.

**Daily Reflection:**

- How was your mood today? 😊
- What did you accomplish? ✅
- How did you take care of your health? 💚
- What's something you're grateful for? 🙏
- What would you like to focus on tomorrow? 🎯

You can reply to me with your thoughts, or use /report to get a summary of your day!

Remember to get some good sleep tonight. Make tomorrow great! 🌟`

// EveningReflection returns the nightly reflection message.
func EveningReflection(name string) string {
	if name == "" {
		name = "friend"
	}
	return fmt.Sprintf(eveningReflectionTemplate, name)
}
