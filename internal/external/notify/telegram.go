package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/httputil"
)

// Telegram sends notifications through the Bot API sendMessage endpoint
type Telegram struct {
	http   *httputil.Client
	url    string
	chatID string
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NewTelegram creates a Telegram notifier
func NewTelegram(cfg config.TelegramConfig, httpClient *httputil.Client) *Telegram {
	return &Telegram{
		http:   httpClient,
		url:    fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(cfg.BaseURL, "/"), cfg.BotToken),
		chatID: cfg.ChatID,
	}
}

// Notify posts one message
func (t *Telegram) Notify(ctx context.Context, category contracts.NotifyCategory, message string) error {
	req := sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  format(category, message),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	var resp sendMessageResponse
	if err := t.http.PostJSONInto(ctx, t.url, req, &resp); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram send: %s", resp.Description)
	}
	return nil
}

var icons = map[contracts.NotifyCategory]string{
	contracts.CategoryUniverse:   "🗓",
	contracts.CategoryCandidates: "🎯",
	contracts.CategoryTradeEntry: "🟢",
	contracts.CategoryTradeExit:  "🔴",
	contracts.CategoryNoTrade:    "⏸",
	contracts.CategoryNews:       "📰",
	contracts.CategorySummary:    "📊",
	contracts.CategoryError:      "🚨",
}

func format(category contracts.NotifyCategory, message string) string {
	icon := icons[category]
	if icon == "" {
		icon = "•"
	}
	return fmt.Sprintf("%s <b>%s</b>\n%s", icon, html.EscapeString(strings.ToUpper(string(category))), html.EscapeString(message))
}
