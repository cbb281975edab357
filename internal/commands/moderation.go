package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/decision"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
	"github.com/eryxsegithub/TheStudioBot/pkg/util"
)

func okEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       notifier.ColorOK,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (inv invocation) member(name string) (string, error) {
	// Options carry bare ids; pasted mentions are reduced to the id.
	id, _ := util.ParseMention(inv.str(name))
	if id == "" {
		return "", usage("a member is required")
	}
	return id, nil
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	d, err := util.ParseDuration(raw, def)
	if err != nil {
		return 0, usage("%v", err)
	}
	return d, nil
}

func orDefault(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

func (h *Handler) handleJail(ctx context.Context, inv invocation) (reply, error) {
	memberID, err := inv.member("member")
	if err != nil {
		return reply{}, err
	}
	if memberID == inv.UserID {
		return reply{}, usage("you cannot jail yourself")
	}
	d, err := parseDuration(inv.str("duration"), h.deps.Detection.DefaultJail())
	if err != nil {
		return reply{}, err
	}
	reason := orDefault(inv.str("reason"), fmt.Sprintf("Jailed by %s", inv.UserID))

	rec, err := h.deps.Quarantine.Jail(ctx, inv.GuildID, memberID, d, reason)
	if err != nil {
		return reply{}, fmt.Errorf("jail failed: %w", err)
	}

	detail := fmt.Sprintf("For **%s**, released <t:%d:R>\n*%s*", util.HumanDuration(d), rec.ReleaseAt.Unix(), reason)
	h.notify(ctx, inv.GuildID, notifier.QuarantineEmbed("Member Jailed", memberID, inv.UserID, detail))
	return reply{embed: okEmbed("Jailed", fmt.Sprintf("<@%s> for **%s**", memberID, util.HumanDuration(d)))}, nil
}

func (h *Handler) handleUnjail(ctx context.Context, inv invocation) (reply, error) {
	memberID, err := inv.member("member")
	if err != nil {
		return reply{}, err
	}

	restored, err := h.deps.Quarantine.Unjail(ctx, inv.GuildID, memberID)
	if errors.Is(err, decision.ErrNotQuarantined) {
		return reply{embed: okEmbed("Not Jailed", fmt.Sprintf("<@%s> isn't jailed.", memberID))}, nil
	}
	if err != nil {
		return reply{}, fmt.Errorf("unjail failed: %w", err)
	}

	detail := fmt.Sprintf("Restored %d role(s)", len(restored))
	h.notify(ctx, inv.GuildID, notifier.QuarantineEmbed("Member Unjailed", memberID, inv.UserID, detail))
	return reply{embed: okEmbed("Unjailed", fmt.Sprintf("<@%s> restored.", memberID))}, nil
}

func (h *Handler) handleTempRole(ctx context.Context, inv invocation) (reply, error) {
	memberID, err := inv.member("member")
	if err != nil {
		return reply{}, err
	}
	roleID := inv.str("role")
	if roleID == "" {
		return reply{}, usage("a role is required")
	}
	if roleID == inv.GuildID {
		return reply{}, usage("the @everyone role cannot be granted")
	}
	d, err := parseDuration(inv.str("duration"), h.deps.Detection.DefaultTempRole())
	if err != nil {
		return reply{}, err
	}
	reason := orDefault(inv.str("reason"), fmt.Sprintf("Temp role by %s", inv.UserID))

	expires, err := h.deps.TempGrants.Grant(ctx, inv.GuildID, memberID, roleID, d, reason)
	if err != nil {
		return reply{}, fmt.Errorf("temp role failed: %w", err)
	}
	desc := fmt.Sprintf("Gave <@&%s> to <@%s> for **%s** (expires <t:%d:R>)", roleID, memberID, util.HumanDuration(d), expires.Unix())
	return reply{embed: okEmbed("Temp Role", desc)}, nil
}
