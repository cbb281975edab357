package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// handleWhitelist handles /whitelist add|remove|view
func (h *Handler) handleWhitelist(ctx context.Context, inv invocation) (reply, error) {
	switch inv.Sub {
	case "add":
		return h.handleWhitelistAdd(ctx, inv)
	case "remove":
		return h.handleWhitelistRemove(ctx, inv)
	case "view":
		return h.handleWhitelistView(ctx, inv)
	}
	return reply{}, usage("use /whitelist add, remove or view")
}

func (h *Handler) handleWhitelistAdd(ctx context.Context, inv invocation) (reply, error) {
	userID, err := inv.member("user")
	if err != nil {
		return reply{}, err
	}

	var added bool
	_, err = h.patch(ctx, inv.GuildID, func(s *models.GuildSettings) error {
		added = s.AddWhitelist(userID)
		return nil
	})
	if err != nil {
		return reply{}, fmt.Errorf("failed to update whitelist: %w", err)
	}
	if !added {
		return reply{embed: okEmbed("Whitelist", fmt.Sprintf("<@%s> is already whitelisted.", userID)), ephemeral: true}, nil
	}
	h.trail(inv, userID, models.ActionWhitelistAdd, "", "")
	return reply{embed: okEmbed("Whitelist Updated", fmt.Sprintf("Added <@%s>", userID))}, nil
}

func (h *Handler) handleWhitelistRemove(ctx context.Context, inv invocation) (reply, error) {
	userID, err := inv.member("user")
	if err != nil {
		return reply{}, err
	}

	var removed bool
	_, err = h.patch(ctx, inv.GuildID, func(s *models.GuildSettings) error {
		removed = s.RemoveWhitelist(userID)
		return nil
	})
	if err != nil {
		return reply{}, fmt.Errorf("failed to update whitelist: %w", err)
	}
	if !removed {
		return reply{embed: okEmbed("Whitelist", fmt.Sprintf("<@%s> is not whitelisted.", userID)), ephemeral: true}, nil
	}
	h.trail(inv, userID, models.ActionWhitelistDrop, "", "")
	return reply{embed: okEmbed("Whitelist Updated", fmt.Sprintf("Removed <@%s>", userID))}, nil
}

func (h *Handler) handleWhitelistView(ctx context.Context, inv invocation) (reply, error) {
	s, err := h.settings(ctx, inv.GuildID)
	if err != nil {
		return reply{}, fmt.Errorf("failed to fetch whitelist: %w", err)
	}
	if len(s.WhitelistIDs) == 0 {
		return reply{embed: okEmbed("Whitelist Registry", "No users are currently whitelisted."), ephemeral: true}, nil
	}

	lines := make([]string, 0, len(s.WhitelistIDs))
	for _, id := range s.WhitelistIDs {
		lines = append(lines, fmt.Sprintf("• <@%s> (`%s`)", id, id))
	}
	return reply{embed: okEmbed("Whitelist Registry", strings.Join(lines, "\n")), ephemeral: true}, nil
}
