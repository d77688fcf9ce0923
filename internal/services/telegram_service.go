package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// TelegramService handles sending admin notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// NotifyOrderCompleted reports a received code to the admin chat.
func (s *TelegramService) NotifyOrderCompleted(serviceName, phoneNumber, code string) {
	text := fmt.Sprintf(
		"✅ <b>Code received</b>\nService: %s\nNumber: %s\nCode: <code>%s</code>",
		serviceName, phoneNumber, code,
	)
	if err := s.SendToAdmin(text); err != nil {
		log.Printf("[Telegram] completion notification failed: %v", err)
	}
}

// NotifyOrderExpired reports an expired order to the admin chat.
func (s *TelegramService) NotifyOrderExpired(serviceName, phoneNumber string) {
	text := fmt.Sprintf(
		"⌛ <b>Order expired</b>\nService: %s\nNumber: %s\nWallet refunded automatically.",
		serviceName, phoneNumber,
	)
	if err := s.SendToAdmin(text); err != nil {
		log.Printf("[Telegram] expiry notification failed: %v", err)
	}
}
