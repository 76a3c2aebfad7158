package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/httputil"
	"github.com/wonny/aegis-swing/pkg/logger"
)

func TestTelegramSendsHTMLMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendMessage", r.URL.Path)
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "42", req.ChatID)
		assert.Equal(t, "HTML", req.ParseMode)
		assert.Contains(t, req.Text, "<b>TRADE-EXIT</b>")
		assert.Contains(t, req.Text, "P&amp;L &lt;0")
		_ = json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	}))
	defer server.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "tok", ChatID: "42", BaseURL: server.URL},
		httputil.New(&config.Config{}, logger.NewNop()).DisableRetry())
	require.NoError(t, tg.Notify(context.Background(), contracts.CategoryTradeExit, "P&L <0"))
}

func TestTelegramReportsAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sendMessageResponse{OK: false, Description: "chat not found"})
	}))
	defer server.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "tok", ChatID: "x", BaseURL: server.URL},
		httputil.New(&config.Config{}, logger.NewNop()).DisableRetry())
	err := tg.Notify(context.Background(), contracts.CategoryError, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

type recorder struct {
	mu   sync.Mutex
	got  []contracts.NotifyCategory
	fail bool
}

func (r *recorder) Notify(ctx context.Context, category contracts.NotifyCategory, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, category)
	if r.fail {
		return errors.New("down")
	}
	return nil
}

func TestDispatcherFansOutAndNeverFails(t *testing.T) {
	failing := &recorder{fail: true}
	ok := &recorder{}
	d := NewDispatcher(logger.NewNop(), failing, ok, NewLog(logger.NewNop()))

	require.NoError(t, d.Notify(context.Background(), contracts.CategoryTradeEntry, "buy AAPL"))
	require.NoError(t, d.Notify(context.Background(), contracts.CategoryError, "boom"))
	d.Close()

	assert.Equal(t, []contracts.NotifyCategory{contracts.CategoryTradeEntry, contracts.CategoryError}, ok.got)
	assert.Len(t, failing.got, 2)

	// Close 이후 알림은 무시
	assert.NoError(t, d.Notify(context.Background(), contracts.CategoryNews, "late"))
	d.Close()
	assert.Len(t, ok.got, 2)
}
