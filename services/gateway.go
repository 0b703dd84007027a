package services

import (
	"context"
	"errors"

	"invite-reward-bot/models"
)

var (
	// ErrPermissionDenied means the platform refused an action (kick, role grant, invite
	// listing). Logged and skipped, never fatal.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStaleReference means a message or channel the bot pointed at no longer exists.
	ErrStaleReference = errors.New("stale reference")
	// ErrUnresolved means no invite could be matched to an arrival.
	ErrUnresolved = errors.New("arrival could not be attributed")
	// ErrNotConfigured means an admin action needs configuration that is missing.
	ErrNotConfigured = errors.New("not configured")
)

// Gateway is everything the engine asks of the chat platform.
type Gateway interface {
	GuildInvites(ctx context.Context, guildID string) (models.LinkSnapshot, error)
	CreateInvite(ctx context.Context, channelID string) (url string, err error)

	IsBooster(ctx context.Context, guildID, userID string) (bool, error)
	KickMember(ctx context.Context, guildID, userID, reason string) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error

	SendEmbed(ctx context.Context, channelID string, embed models.Embed) (messageID string, err error)
	EditEmbed(ctx context.Context, channelID, messageID string, embed models.Embed) error
	SendDirectFile(ctx context.Context, userID, content, filename string, data []byte) error
}
