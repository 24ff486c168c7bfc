package notify

import (
	"context"

	"go.uber.org/zap"
)

// MentionPolicy controls whether a channel message may ping its subject.
type MentionPolicy string

const (
	MentionAllowed    MentionPolicy = "ALLOWED"
	MentionSuppressed MentionPolicy = "SUPPRESSED"
)

// Notifier is the outbound boundary to the chat platform. All methods are
// best-effort: callers log failures and continue, they never fail the
// transition that triggered the notification.
type Notifier interface {
	NotifyDirect(ctx context.Context, userID, message string) error
	NotifyChannel(ctx context.Context, channelID, message string, policy MentionPolicy) error
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
}

// LogNotifier writes every notification to the log instead of a transport.
// It is the default when no webhook is configured and doubles as the
// development-mode notifier.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyDirect(ctx context.Context, userID, message string) error {
	n.logger.Info("direct notification",
		zap.String("user_id", userID),
		zap.String("message", message),
	)
	return nil
}

func (n *LogNotifier) NotifyChannel(ctx context.Context, channelID, message string, policy MentionPolicy) error {
	n.logger.Info("channel notification",
		zap.String("channel_id", channelID),
		zap.String("message", message),
		zap.String("mention_policy", string(policy)),
	)
	return nil
}

func (n *LogNotifier) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	n.logger.Info("grant role",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("role_id", roleID),
	)
	return nil
}

func (n *LogNotifier) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	n.logger.Info("revoke role",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("role_id", roleID),
	)
	return nil
}
