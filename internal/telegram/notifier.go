package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends outbound bot messages: plain texts and inline-keyboard
// buttons that open the mini app, optionally deep-linked to a game.
type Notifier struct {
	bot       *tgbotapi.BotAPI
	webAppURL string
}

func NewNotifier(botToken, webAppURL string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Notifier{bot: bot, webAppURL: webAppURL}, nil
}

// SendText sends a plain message to a chat.
func (n *Notifier) SendText(chatID int64, text string) error {
	_, err := n.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendNewGameButton invites a chat to open the mini app and create a game.
func (n *Notifier) SendNewGameButton(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "Tap the button to start a new game!")
	msg.ReplyMarkup = webAppKeyboard("Create a new game", n.webAppURL)
	_, err := n.bot.Send(msg)
	return err
}

// SendJoinButton invites a chat to open a specific game.
func (n *Notifier) SendJoinButton(chatID int64, text, gameID string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = webAppKeyboard("Open game", fmt.Sprintf("%s?startapp=%s", n.webAppURL, gameID))
	_, err := n.bot.Send(msg)
	return err
}

// The pinned tgbotapi release predates Bot API 6.0 web_app buttons, so the
// markup is a local marshalable shape. MessageConfig.ReplyMarkup is an
// interface value; Telegram only ever sees the JSON.
type webAppMarkup struct {
	InlineKeyboard [][]webAppButton `json:"inline_keyboard"`
}

type webAppButton struct {
	Text   string     `json:"text"`
	WebApp webAppInfo `json:"web_app"`
}

type webAppInfo struct {
	URL string `json:"url"`
}

func webAppKeyboard(label, url string) webAppMarkup {
	return webAppMarkup{
		InlineKeyboard: [][]webAppButton{{
			{Text: label, WebApp: webAppInfo{URL: url}},
		}},
	}
}
