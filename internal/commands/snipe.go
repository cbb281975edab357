package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
	"github.com/eryxsegithub/TheStudioBot/internal/state"
)

const noContent = "*<no content>*"

func orNoContent(s string) string {
	if s == "" {
		return noContent
	}
	return s
}

func (h *Handler) handleSnipe(_ context.Context, inv invocation) (reply, error) {
	sn, ok := h.deps.Snipes.LastDeleted(inv.GuildID, inv.ChannelID)
	if !ok {
		return reply{embed: okEmbed("Snipe", "Nothing to snipe yet.")}, nil
	}
	return reply{embed: snipeEmbed(sn)}, nil
}

func (h *Handler) handleEditSnipe(_ context.Context, inv invocation) (reply, error) {
	sn, ok := h.deps.Snipes.LastEdited(inv.GuildID, inv.ChannelID)
	if !ok {
		return reply{embed: okEmbed("Edit Snipe", "Nothing to snipe yet.")}, nil
	}
	return reply{embed: editSnipeEmbed(sn)}, nil
}

func snipeEmbed(sn state.Snipe) *discordgo.MessageEmbed {
	desc := orNoContent(sn.Message.Content)
	if n := len(sn.Message.Attachments); n > 0 {
		desc += fmt.Sprintf("\n\n📎 %d attachment(s)", n)
	}
	return &discordgo.MessageEmbed{
		Title:       "Sniped " + sn.Message.AuthorName,
		Description: desc,
		Color:       notifier.ColorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Author ID: " + sn.Message.AuthorID},
		Timestamp:   sn.At.Format(time.RFC3339),
	}
}

func editSnipeEmbed(sn state.Snipe) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Edited by " + sn.Message.AuthorName,
		Description: fmt.Sprintf("__Before__: %s\n__After__: %s", orNoContent(sn.Before), orNoContent(sn.Message.Content)),
		Color:       notifier.ColorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Author ID: " + sn.Message.AuthorID},
		Timestamp:   sn.At.Format(time.RFC3339),
	}
}
