package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier forwards notifications as JSON to a relay webhook, which
// owns the actual chat-platform delivery. Used when NOTIFY_WEBHOOK_URL is
// configured.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier constructs a WebhookNotifier.
func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Kind      string `json:"kind"`
	GuildID   string `json:"guild_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	RoleID    string `json:"role_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Mention   string `json:"mention,omitempty"`
}

func (n *WebhookNotifier) NotifyDirect(ctx context.Context, userID, message string) error {
	return n.post(ctx, webhookPayload{Kind: "direct", UserID: userID, Message: message})
}

func (n *WebhookNotifier) NotifyChannel(ctx context.Context, channelID, message string, policy MentionPolicy) error {
	return n.post(ctx, webhookPayload{Kind: "channel", ChannelID: channelID, Message: message, Mention: string(policy)})
}

func (n *WebhookNotifier) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return n.post(ctx, webhookPayload{Kind: "grant_role", GuildID: guildID, UserID: userID, RoleID: roleID})
}

func (n *WebhookNotifier) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	return n.post(ctx, webhookPayload{Kind: "revoke_role", GuildID: guildID, UserID: userID, RoleID: roleID})
}

func (n *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
