package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
)

// maxInfractionLines keeps the listing well below the embed description limit.
const maxInfractionLines = 20

func (h *Handler) handleWarn(ctx context.Context, inv invocation) (reply, error) {
	memberID, err := inv.member("member")
	if err != nil {
		return reply{}, err
	}

	w := models.NewWarnRecord(inv.UserID, inv.str("reason"), time.Now())
	if err := h.deps.Store.AddWarn(ctx, inv.GuildID, memberID, w); err != nil {
		return reply{}, fmt.Errorf("failed to save warning: %w", err)
	}
	h.trail(inv, memberID, models.ActionWarn, w.Reason, fmt.Sprintf("warn #%d", w.ID))

	h.dmWarn(inv.GuildID, memberID, w)
	h.notify(ctx, inv.GuildID, notifier.WarnEmbed(memberID, inv.UserID, w))

	desc := fmt.Sprintf("<@%s> warned `#%d`\nReason: *%s*", memberID, w.ID, w.Reason)
	return reply{embed: okEmbed("Warned", desc)}, nil
}

// dmWarn tells the member about the warning. Members with closed DMs are
// skipped silently.
func (h *Handler) dmWarn(guildID, memberID string, w models.WarnRecord) {
	if h.deps.DM == nil {
		return
	}
	ch, err := h.deps.DM.UserChannelCreate(memberID)
	if err != nil {
		logging.Debug("Cannot open DM with %s: %v", memberID, err)
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       "You were warned",
		Color:       notifier.ColorWarning,
		Description: fmt.Sprintf("Server: `%s`\nBy: <@%s>\nReason: *%s*\nID: `%d`", guildID, w.ModeratorID, w.Reason, w.ID),
	}
	if _, err := h.deps.DM.ChannelMessageSendEmbed(ch.ID, embed); err != nil {
		logging.Debug("Warn DM to %s failed: %v", memberID, err)
	}
}

func (h *Handler) handleRemoveWarn(ctx context.Context, inv invocation) (reply, error) {
	memberID, err := inv.member("member")
	if err != nil {
		return reply{}, err
	}
	warnID, ok := inv.integer("warn_id")
	if !ok {
		return reply{}, usage("a warn id is required")
	}

	removed, err := h.deps.Store.RemoveWarn(ctx, inv.GuildID, memberID, int(warnID))
	if err != nil {
		return reply{}, fmt.Errorf("failed to remove warning: %w", err)
	}
	if !removed {
		return reply{embed: okEmbed("Not Found", fmt.Sprintf("<@%s> warn `#%d` not found.", memberID, warnID))}, nil
	}
	return reply{embed: okEmbed("Removed Warn", fmt.Sprintf("<@%s> warn `#%d` removed.", memberID, warnID))}, nil
}

func (h *Handler) handleInfractions(ctx context.Context, inv invocation) (reply, error) {
	memberID := inv.str("member")
	if memberID == "" {
		memberID = inv.UserID
	}

	warns, err := h.deps.Store.Warns(ctx, inv.GuildID, memberID)
	if err != nil {
		return reply{}, fmt.Errorf("failed to load warnings: %w", err)
	}
	if len(warns) == 0 {
		return reply{embed: okEmbed("Infractions", fmt.Sprintf("<@%s> has **0** warnings.", memberID))}, nil
	}
	return reply{embed: okEmbed("Infractions", formatInfractions(memberID, warns))}, nil
}

func formatInfractions(memberID string, warns []models.WarnRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<@%s> has **%d** warning(s)\n", memberID, len(warns))
	for i, w := range warns {
		if i == maxInfractionLines {
			fmt.Fprintf(&b, "…and %d more", len(warns)-maxInfractionLines)
			break
		}
		fmt.Fprintf(&b, "`#%d` • *%s* • <@%s> • <t:%d:R>\n", w.ID, w.Reason, w.ModeratorID, w.Time.Unix())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) handleClearWarns(ctx context.Context, inv invocation) (reply, error) {
	memberID, err := inv.member("member")
	if err != nil {
		return reply{}, err
	}
	n, err := h.deps.Store.ClearWarns(ctx, inv.GuildID, memberID)
	if err != nil {
		return reply{}, fmt.Errorf("failed to clear warnings: %w", err)
	}
	return reply{embed: okEmbed("Cleared Warns", fmt.Sprintf("Cleared %d warning(s) for <@%s>", n, memberID))}, nil
}
