package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/pkg/util"
)

const (
	ColorAlert   = 0xED4245
	ColorWarning = 0xFEE75C
	ColorOK      = 0x57F287
	ColorInfo    = 0x5865F2
)

const footer = "The Studio Anti-Nuke"

func mention(id string) string {
	return fmt.Sprintf("<@%s> (`%s`)", id, id)
}

// BreachEmbed describes an enforcement run. steps lists what was applied.
func BreachEmbed(b models.Breach, timeout time.Duration, steps []string) *discordgo.MessageEmbed {
	applied := "none"
	if len(steps) > 0 {
		applied = strings.Join(steps, ", ")
	}
	return &discordgo.MessageEmbed{
		Title:       "Anti-Nuke Triggered",
		Color:       ColorAlert,
		Description: fmt.Sprintf("**Reason:** *%s*", b.Reason),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Offender", Value: mention(b.ActorID), Inline: true},
			{Name: "Category", Value: b.Category.Title(), Inline: true},
			{Name: "Timeout", Value: "`" + util.HumanDuration(timeout) + "`", Inline: true},
			{Name: "Actions", Value: applied, Inline: false},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp: b.Timestamp.Format(time.RFC3339),
	}
}

// ContentBlockedEmbed reports a deleted invite or image.
func ContentBlockedEmbed(title, authorID, channelID string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Color:       ColorWarning,
		Description: fmt.Sprintf("<@%s> in <#%s>", authorID, channelID),
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
	}
}

func WarnEmbed(targetID, moderatorID string, w models.WarnRecord) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Member Warned",
		Color: ColorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: mention(targetID), Inline: true},
			{Name: "Moderator", Value: mention(moderatorID), Inline: true},
			{Name: "Warn ID", Value: fmt.Sprintf("`%d`", w.ID), Inline: true},
			{Name: "Reason", Value: w.Reason, Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: footer},
	}
}

func QuarantineEmbed(title, memberID, moderatorID, detail string) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       title,
		Color:       ColorInfo,
		Description: detail,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: mention(memberID), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: footer},
	}
	if moderatorID != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Moderator", Value: mention(moderatorID), Inline: true})
	}
	return e
}
