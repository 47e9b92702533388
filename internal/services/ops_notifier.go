package services

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// OpsNotifier шлёт алерты в ops-чат Telegram. Может быть nil — тогда все
// вызовы превращаются в no-op (интеграция опциональна, как и у webhook'ов).
type OpsNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewOpsNotifier(botToken string, chatID int64) *OpsNotifier {
	if botToken == "" || chatID == 0 {
		log.Printf("[tg][skip] ops notifier disabled: token or chat_id empty")
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		log.Printf("[tg][init][err] %v", err)
		return nil
	}
	return &OpsNotifier{bot: bot, chatID: chatID}
}

// NotifyDeliveryFailure — письмо с кодом не ушло; сам код в алерт не попадает.
func (n *OpsNotifier) NotifyDeliveryFailure(email string, cause error) {
	if n == nil || n.bot == nil {
		return
	}
	text := fmt.Sprintf("⚠️ login code delivery failed\nemail: %s\nerror: %v", email, cause)
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		log.Printf("[tg][send][err] chatID=%d err=%v", n.chatID, err)
	}
}
