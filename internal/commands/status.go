package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (h *Handler) handleStatus(ctx context.Context, inv invocation) (reply, error) {
	s, err := h.settings(ctx, inv.GuildID)
	if err != nil {
		return reply{}, fmt.Errorf("failed to fetch guild configuration: %w", err)
	}
	return reply{embed: statusEmbed(s, h.deps.Detection.Limits(s), h.deps.Detection.Enabled), ephemeral: true}, nil
}

func statusEmbed(s models.GuildSettings, l models.Limits, enabled bool) *discordgo.MessageEmbed {
	securityLevel := "**Enabled**"
	if !enabled {
		securityLevel = "Disabled (process-wide)"
	}

	logChannelText := "Not configured"
	if s.LogChannelID != "" {
		logChannelText = fmt.Sprintf("<#%s>", s.LogChannelID)
	}
	jailText := "Created on first /jail"
	if s.JailRoleID != "" {
		jailText = fmt.Sprintf("<@&%s>", s.JailRoleID)
	}

	detection := strings.Join([]string{
		fmt.Sprintf("Spam: `%d` msgs / `%ds`", l.SpamThreshold, l.SpamWindow),
		fmt.Sprintf("Channel deletes: `%d` / `%ds`", l.ChannelDeleteThreshold, l.ChannelDeleteWindow),
		fmt.Sprintf("Timeout: `%ds`", l.TimeoutSeconds),
	}, "\n")
	filters := strings.Join([]string{
		"Auto-revoke dangerous perms: `" + onOff(l.AutoRevokeDangerousPerms) + "`",
		"Block invites: `" + onOff(l.BlockInvites) + "`",
		"Block images in SFW channels: `" + onOff(l.BlockNSFWInSFWChannels) + "`",
	}, "\n")

	return &discordgo.MessageEmbed{
		Title:       "System Status Overview",
		Description: "Current anti-nuke configuration for this server.",
		Color:       0x2B2D31,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Security Level", Value: securityLevel, Inline: false},
			{Name: "Audit Logging", Value: logChannelText, Inline: true},
			{Name: "Jail Role", Value: jailText, Inline: true},
			{Name: "Thresholds", Value: detection, Inline: false},
			{Name: "Filters", Value: filters, Inline: false},
			{Name: "Whitelisted", Value: fmt.Sprintf("%d user(s)", len(s.WhitelistIDs)), Inline: true},
			{Name: "Jailed", Value: fmt.Sprintf("%d member(s)", len(s.Jailed)), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
