package middleware

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrForbidden is returned by a Predicate that rejects the caller.
var ErrForbidden = errors.New("you need the Administrator permission for this command")

// Caller is who invoked a command, as far as authorization cares.
type Caller struct {
	UserID      string
	GuildID     string
	Permissions int64
}

// IsAdministrator reports whether the caller holds the Administrator permission.
func (c Caller) IsAdministrator() bool {
	return c.Permissions&discordgo.PermissionAdministrator != 0
}

// CallerFromInteraction extracts the caller of a guild interaction.
func CallerFromInteraction(i *discordgo.InteractionCreate) Caller {
	caller := Caller{GuildID: i.GuildID}
	if i.Member != nil {
		caller.Permissions = i.Member.Permissions
		if i.Member.User != nil {
			caller.UserID = i.Member.User.ID
		}
	} else if i.User != nil {
		caller.UserID = i.User.ID
	}
	return caller
}

// Predicate decides whether a caller may run a command. It is checked before the
// command's handler runs.
type Predicate func(Caller) error

// Everyone lets any caller through.
func Everyone(Caller) error { return nil }

// RequireAdministrator admits guild administrators only.
func RequireAdministrator(c Caller) error {
	if c.GuildID == "" || !c.IsAdministrator() {
		return ErrForbidden
	}
	return nil
}
