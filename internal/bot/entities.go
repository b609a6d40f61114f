package bot

import (
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// entityLinks returns the links Telegram marked in a message, in order.
// Offsets are counted in UTF-16 code units, so the text is re-encoded before
// slicing.
func entityLinks(text string, entities []tgbotapi.MessageEntity) []string {
	var links []string
	var units []uint16
	for _, e := range entities {
		switch e.Type {
		case "text_link":
			if e.URL != "" {
				links = append(links, e.URL)
			}
		case "url":
			if units == nil {
				units = utf16.Encode([]rune(text))
			}
			end := e.Offset + e.Length
			if e.Offset < 0 || e.Length <= 0 || end > len(units) {
				continue
			}
			links = append(links, string(utf16.Decode(units[e.Offset:end])))
		}
	}
	return links
}

// messageText prefers the caption for media messages.
func messageText(msg *tgbotapi.Message) (string, []tgbotapi.MessageEntity) {
	if msg.Text != "" {
		return msg.Text, msg.Entities
	}
	return msg.Caption, msg.CaptionEntities
}
