package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Button is one callback button.
type Button struct {
	Text string
	Data string
}

// NewKeyboard builds an inline keyboard from rows of buttons.
func NewKeyboard(rows ...[]Button) *Keyboard {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

// Row is shorthand for a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}
