package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

var (
	permManageGuild = models.PermManageGuild
	permManageRoles = models.PermManageRoles
	permModerate    = models.PermModerateMembers
	permJail        = models.PermManageRoles | models.PermModerateMembers
	dmDisabled      = false
)

func userOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        name,
		Description: description,
		Type:        discordgo.ApplicationCommandOptionUser,
		Required:    required,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        name,
		Description: description,
		Type:        discordgo.ApplicationCommandOptionString,
		Required:    required,
	}
}

func guarded(cmd *discordgo.ApplicationCommand, perms *int64) *discordgo.ApplicationCommand {
	cmd.DefaultMemberPermissions = perms
	cmd.DMPermission = &dmDisabled
	return cmd
}

// Definitions returns all application commands. Discord hides guarded
// commands from members lacking the listed permissions.
func Definitions() []*discordgo.ApplicationCommand {
	settingKeys := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(antinukeKeys))
	for _, k := range antinukeKeys {
		settingKeys = append(settingKeys, &discordgo.ApplicationCommandOptionChoice{Name: k, Value: k})
	}

	return []*discordgo.ApplicationCommand{
		guarded(&discordgo.ApplicationCommand{
			Name:        "jail",
			Description: "Strip a member's roles and lock them into the jail channel",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member to jail", true),
				stringOption("duration", "How long, e.g. 30m, 2h, 1d (default 1h)", false),
				stringOption("reason", "Reason for the audit log", false),
			},
		}, &permJail),
		guarded(&discordgo.ApplicationCommand{
			Name:        "unjail",
			Description: "Release a jailed member and restore their roles",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member to release", true),
			},
		}, &permJail),
		guarded(&discordgo.ApplicationCommand{
			Name:        "temprole",
			Description: "Give a role that is removed again after a while",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member to receive the role", true),
				{
					Name:        "role",
					Description: "Role to grant",
					Type:        discordgo.ApplicationCommandOptionRole,
					Required:    true,
				},
				stringOption("duration", "How long, e.g. 10m, 1h (default 10m)", false),
				stringOption("reason", "Reason for the audit log", false),
			},
		}, &permManageRoles),
		guarded(&discordgo.ApplicationCommand{
			Name:        "warn",
			Description: "Issue a warning to a member (DM + log)",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member to warn", true),
				stringOption("reason", "Why the member is warned", false),
			},
		}, &permModerate),
		guarded(&discordgo.ApplicationCommand{
			Name:        "removewarn",
			Description: "Remove a warning by ID from a member",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member the warning belongs to", true),
				{
					Name:        "warn_id",
					Description: "Warning ID",
					Type:        discordgo.ApplicationCommandOptionInteger,
					Required:    true,
				},
			},
		}, &permModerate),
		{
			Name:        "infractions",
			Description: "List a member's warnings",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member to look up (default: you)", false),
			},
		},
		guarded(&discordgo.ApplicationCommand{
			Name:        "clearwarns",
			Description: "Clear all warnings of a member",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member whose warnings are cleared", true),
			},
		}, &permModerate),
		guarded(&discordgo.ApplicationCommand{
			Name:        "whitelist",
			Description: "Manage users exempt from anti-nuke enforcement",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "add",
					Description: "Add a user to the whitelist",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options:     []*discordgo.ApplicationCommandOption{userOption("user", "User to whitelist", true)},
				},
				{
					Name:        "remove",
					Description: "Remove a user from the whitelist",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options:     []*discordgo.ApplicationCommandOption{userOption("user", "User to remove", true)},
				},
				{
					Name:        "view",
					Description: "View all whitelisted users",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		}, &permManageGuild),
		guarded(&discordgo.ApplicationCommand{
			Name:        "setlog",
			Description: "Set the channel that receives moderation logs",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:         "channel",
					Description:  "Log channel",
					Type:         discordgo.ApplicationCommandOptionChannel,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					Required:     true,
				},
			},
		}, &permManageGuild),
		guarded(&discordgo.ApplicationCommand{
			Name:        "setjail",
			Description: "Use an existing role as the jail role",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "role",
					Description: "Jail role",
					Type:        discordgo.ApplicationCommandOptionRole,
					Required:    true,
				},
			},
		}, &permManageRoles),
		guarded(&discordgo.ApplicationCommand{
			Name:        "setantinuke",
			Description: "Change an anti-nuke setting",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "key",
					Description: "Setting to change",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
					Choices:     settingKeys,
				},
				stringOption("value", "Number of seconds/events, or on/off", true),
			},
		}, &permManageGuild),
		guarded(&discordgo.ApplicationCommand{
			Name:        "status",
			Description: "Show this server's anti-nuke configuration",
		}, &permManageGuild),
		{
			Name:        "snipe",
			Description: "Show the last deleted message in this channel",
		},
		{
			Name:        "editsnipe",
			Description: "Show the last edited message in this channel",
		},
		{
			Name:        "stats",
			Description: "Show bot and host statistics",
		},
		{
			Name:        "ping",
			Description: "Check gateway latency",
		},
	}
}
