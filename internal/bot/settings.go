package bot

import (
	"fmt"

	"github.com/nugget/pulse/internal/reports"
	"github.com/nugget/pulse/internal/telegram"
	"github.com/nugget/pulse/internal/users"
)

// SettingsPage is an argument of the settings callback.
type SettingsPage string

const (
	SettingsMain          SettingsPage = "main"
	SettingsTimezone      SettingsPage = "timezone"
	SettingsNotifications SettingsPage = "notifications"
	SettingsReports       SettingsPage = "reports"
	SettingsHabits        SettingsPage = "habits"
	SettingsClearData     SettingsPage = "clear_data"
	SettingsClose         SettingsPage = "close"
)

// timezones offered on the timezone page.
var timezones = []struct {
	label string
	zone  string
}{
	{"🌍 UTC", "UTC"},
	{"🇺🇸 New York", "America/New_York"},
	{"🇺🇸 Los Angeles", "America/Los_Angeles"},
	{"🇪🇺 Berlin", "Europe/Berlin"},
	{"🇬🇧 London", "Europe/London"},
	{"🇯🇵 Tokyo", "Asia/Tokyo"},
}

func settingsButton(text string, page SettingsPage) telegram.Button {
	return telegram.Button{Text: text, Data: callbackData(CallbackSettings, string(page))}
}

func backKeyboard() *telegram.Keyboard {
	return telegram.NewKeyboard(telegram.Row(settingsButton("⬅️ Back", SettingsMain)))
}

func onOff(p users.Preferences, key string) string {
	if p.Enabled(key) {
		return "on"
	}
	return "off"
}

// settingsMenu returns the text and keyboard for a settings page.
// Unknown pages show the main menu.
func (b *Bot) settingsMenu(user *users.User, page SettingsPage) (string, *telegram.Keyboard) {
	switch page {
	case SettingsTimezone:
		var rows [][]telegram.Button
		for i := 0; i < len(timezones); i += 2 {
			row := []telegram.Button{{Text: timezones[i].label, Data: callbackData(CallbackSetTimezone, timezones[i].zone)}}
			if i+1 < len(timezones) {
				row = append(row, telegram.Button{Text: timezones[i+1].label, Data: callbackData(CallbackSetTimezone, timezones[i+1].zone)})
			}
			rows = append(rows, row)
		}
		rows = append(rows, telegram.Row(settingsButton("⬅️ Back", SettingsMain)))
		return fmt.Sprintf("🌍 Select your timezone (currently %s):", user.Timezone), telegram.NewKeyboard(rows...)

	case SettingsNotifications:
		kb := telegram.NewKeyboard(
			telegram.Row(
				telegram.Button{Text: "🔔 Enable All", Data: callbackData(CallbackSetNotifications, "enable")},
				telegram.Button{Text: "🔕 Disable All", Data: callbackData(CallbackSetNotifications, "disable")},
			),
			telegram.Row(
				telegram.Button{Text: "⏰ Reminders Only", Data: callbackData(CallbackSetNotifications, "reminders")},
				telegram.Button{Text: "📊 Reports Only", Data: callbackData(CallbackSetNotifications, "reports")},
			),
			telegram.Row(settingsButton("⬅️ Back", SettingsMain)),
		)
		p := user.Preferences
		return fmt.Sprintf("🔔 Notification preferences:\n\nReminders: %s  \nReports: %s",
			onOff(p, users.PrefReminderNotifications), onOff(p, users.PrefReportNotifications)), kb

	case SettingsReports:
		kb := telegram.NewKeyboard(
			telegram.Row(
				telegram.Button{Text: "📊 Daily Report", Data: callbackData(CallbackReportType, string(reports.KindDaily))},
				telegram.Button{Text: "📈 Weekly Report", Data: callbackData(CallbackReportType, string(reports.KindWeekly))},
			),
			telegram.Row(telegram.Button{Text: "💪 Habits Overview", Data: callbackData(CallbackReportType, string(reports.KindHabits))}),
			telegram.Row(settingsButton("⬅️ Back", SettingsMain)),
		)
		return "📊 Choose a report type:", kb

	case SettingsHabits:
		kb := telegram.NewKeyboard(
			telegram.Row(telegram.Button{Text: "👀 View Habits", Data: callbackData(CallbackReportType, string(reports.KindHabits))}),
			telegram.Row(settingsButton("⬅️ Back", SettingsMain)),
		)
		return "💪 Habit Management:\n\nI pick up habits from what you tell me. Use /habits to log one with a tap.", kb

	case SettingsClearData:
		kb := telegram.NewKeyboard(telegram.Row(
			telegram.Button{Text: "⚠️ Yes, Clear All", Data: callbackData(CallbackConfirmClear)},
			settingsButton("❌ Cancel", SettingsMain),
		))
		return "⚠️ **Warning**: This will delete all your data including conversations, habits, and reminders. This action cannot be undone!", kb
	}

	kb := telegram.NewKeyboard(
		telegram.Row(settingsButton("🌍 Timezone", SettingsTimezone), settingsButton("🔔 Notifications", SettingsNotifications)),
		telegram.Row(settingsButton("📊 Reports", SettingsReports), settingsButton("💪 Habits", SettingsHabits)),
		telegram.Row(settingsButton("🗑️ Clear Data", SettingsClearData), settingsButton("❌ Close", SettingsClose)),
	)
	return "⚙️ **Settings Menu:**\n\nChoose an option below:", kb
}
