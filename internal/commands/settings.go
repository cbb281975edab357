package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// antinukeKeys are the settings /setantinuke accepts, in display order.
var antinukeKeys = []string{
	"timeout_seconds",
	"spam_threshold",
	"spam_window",
	"channel_delete_threshold",
	"channel_delete_window",
	"auto_revoke_dangerous_perms",
	"block_invites",
	"block_nsfw_in_sfw_channels",
}

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes", "y":
		return true
	}
	return false
}

// applyAntinukeSetting writes one key of t and returns the stored value as
// text. Numeric settings must be positive.
func applyAntinukeSetting(t *models.Thresholds, key, value string) (string, error) {
	var num **int
	var flag **bool
	switch key {
	case "timeout_seconds":
		num = &t.TimeoutSeconds
	case "spam_threshold":
		num = &t.SpamThreshold
	case "spam_window":
		num = &t.SpamWindow
	case "channel_delete_threshold":
		num = &t.ChannelDeleteThreshold
	case "channel_delete_window":
		num = &t.ChannelDeleteWindow
	case "auto_revoke_dangerous_perms":
		flag = &t.AutoRevokeDangerousPerms
	case "block_invites":
		flag = &t.BlockInvites
	case "block_nsfw_in_sfw_channels":
		flag = &t.BlockNSFWInSFWChannels
	default:
		return "", usage("`%s` not recognized", key)
	}

	if num != nil {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return "", usage("`%s` needs a positive whole number", key)
		}
		if strings.HasSuffix(key, "_window") && n > models.MaxWindowSeconds {
			return "", usage("`%s` can be at most %d seconds", key, models.MaxWindowSeconds)
		}
		*num = &n
		return strconv.Itoa(n), nil
	}
	b := parseFlag(value)
	*flag = &b
	return strconv.FormatBool(b), nil
}

func (h *Handler) handleSetAntinuke(ctx context.Context, inv invocation) (reply, error) {
	key, value := inv.str("key"), inv.str("value")

	var shown string
	_, err := h.patch(ctx, inv.GuildID, func(s *models.GuildSettings) error {
		var err error
		shown, err = applyAntinukeSetting(&s.Antinuke, key, value)
		return err
	})
	if err != nil {
		if isUsage(err) {
			return reply{}, err
		}
		return reply{}, fmt.Errorf("failed to update settings: %w", err)
	}
	h.trail(inv, inv.GuildID, models.ActionSettingsChange, "", key+"="+shown)
	return reply{embed: okEmbed("Anti-Nuke Updated", fmt.Sprintf("`%s` → `%s`", key, shown))}, nil
}

func (h *Handler) handleSetLog(ctx context.Context, inv invocation) (reply, error) {
	channelID := inv.str("channel")
	if channelID == "" {
		return reply{}, usage("a channel is required")
	}
	_, err := h.patch(ctx, inv.GuildID, func(s *models.GuildSettings) error {
		s.LogChannelID = channelID
		return nil
	})
	if err != nil {
		return reply{}, fmt.Errorf("failed to update settings: %w", err)
	}
	h.trail(inv, channelID, models.ActionSettingsChange, "", "log_channel_id="+channelID)
	return reply{embed: okEmbed("Logging Channel", fmt.Sprintf("Set to <#%s>", channelID))}, nil
}

func (h *Handler) handleSetJail(ctx context.Context, inv invocation) (reply, error) {
	roleID := inv.str("role")
	if roleID == "" || roleID == inv.GuildID {
		return reply{}, usage("pick a role other than @everyone")
	}
	_, err := h.patch(ctx, inv.GuildID, func(s *models.GuildSettings) error {
		s.JailRoleID = roleID
		return nil
	})
	if err != nil {
		return reply{}, fmt.Errorf("failed to update settings: %w", err)
	}
	h.trail(inv, roleID, models.ActionSettingsChange, "", "jail_role_id="+roleID)
	return reply{embed: okEmbed("Jail Role", fmt.Sprintf("Set to <@&%s>", roleID))}, nil
}
