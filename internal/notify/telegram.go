package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AndreyBychenkow/LessonReportBot/internal/review"
	"github.com/AndreyBychenkow/LessonReportBot/internal/version"
)

// TelegramSink posts messages to one chat through the Bot API.
type TelegramSink struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

// NewTelegramSink creates a chat sink. baseURL is the Bot API root,
// e.g. https://api.telegram.org.
func NewTelegramSink(baseURL, token, chatID string) *TelegramSink {
	return &TelegramSink{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type botAPIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *TelegramSink) Send(ctx context.Context, text string) error {
	if n := utf8.RuneCountInString(text); n > review.MaxMessageLen {
		return fmt.Errorf("telegram: message is %d characters, limit is %d", n, review.MaxMessageLen)
	}
	if text == "" {
		return nil
	}

	reqBody, err := json.Marshal(sendMessageRequest{ChatID: s.chatID, Text: text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of logs.
		return fmt.Errorf("telegram: sendMessage: %s", strings.ReplaceAll(err.Error(), s.token, "<token>"))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var apiResp botAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("telegram: %s: unreadable reply: %s", resp.Status, body)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram: %s: %s", resp.Status, apiResp.Description)
	}
	return nil
}
