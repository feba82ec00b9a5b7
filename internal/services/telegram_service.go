package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/champaran-pos/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService sends order notifications to the shop's admin chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService. An empty token or chat id
// turns every send into a no-op.
func NewTelegramService(client *http.Client, botToken, adminChatID string) *TelegramService {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     telegramAPIBase,
		client:      client,
	}
}

func (s *TelegramService) Name() string { return "telegram" }

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to chatID.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		log.Debug("[Telegram] Bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return errors.Wrap(err, "encode telegram message")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("[Telegram] Failed to send message")
		return errors.Wrap(err, "send telegram message")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("[Telegram] Unexpected status")
		return errors.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		log.Debug("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice formats a whole-unit amount with thousand separators.
func FormatPrice(amount int64, currency string) string {
	if currency == "" {
		currency = "INR"
	}
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	str := fmt.Sprintf("%d", amount)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return sign + result.String() + " " + currency
}

// NotifyNewOrder tells the admin chat about an order that reached intake.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order models.OrderRecord) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		fmt.Fprintf(&itemsList, "%d. <b>%s</b> (%s, %s)\n   %d x %s = %s\n",
			i+1,
			item.ProductName,
			item.ProductVariant,
			item.Size,
			item.Quantity,
			FormatPrice(item.UnitPrice, ""),
			FormatPrice(item.LineTotal, ""),
		)
	}

	screenshot := order.PaymentScreenshotURL
	if screenshot == "" {
		screenshot = order.PaymentScreenshot
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>📍 Address:</b> %s, %s
<b>👥 TL / Member:</b> %s / %s
<b>📦 Items:</b>
%s
<b>Subtotal:</b> %s
<b>Discount:</b> %s
<b>Delivery:</b> %s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderNumber,
		order.CustomerName,
		order.CustomerPhone,
		order.CustomerAddress,
		order.Pincode,
		order.TLName,
		order.MemberName,
		itemsList.String(),
		FormatPrice(order.Subtotal, ""),
		FormatPrice(order.Discount, ""),
		FormatPrice(order.DeliveryFee, ""),
		FormatPrice(order.GrandTotal, ""),
		screenshot,
	)
	if order.Note != "" {
		message += "\n<i>" + order.Note + "</i>"
	}

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifyStatusChange tells the admin chat that an order moved to a new status.
func (s *TelegramService) NotifyStatusChange(ctx context.Context, order models.OrderRecord, previous string) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>🔄 ORDER STATUS</b>
<b>📋 Order:</b> %s
<b>Status:</b> %s → %s
<b>💰 Total:</b> %s`,
		order.OrderNumber,
		previous,
		order.Status,
		FormatPrice(order.GrandTotal, ""),
	)
	return s.SendToAdmin(ctx, message)
}
