package dispatcher

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Role struct {
	ID          string
	Name        string
	Permissions int64
	Position    int
	Managed     bool
}

type Member struct {
	UserID string
	Roles  []string
	Bot    bool
}

type Channel struct {
	ID   string
	Name string
	Text bool
}

// Mutator is the set of guild mutations enforcement needs. Every method
// returns ErrPermissionDenied (possibly joined with the cause) when Discord
// refuses for lack of permission.
type Mutator interface {
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	Member(ctx context.Context, guildID, userID string) (Member, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error
	SetRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error
	CreateRole(ctx context.Context, guildID, name, reason string) (Role, error)
	EditRolePermissions(ctx context.Context, guildID, roleID string, perms int64, reason string) error

	Channels(ctx context.Context, guildID string) ([]Channel, error)
	SetRoleOverwrite(ctx context.Context, channelID, roleID string, allow, deny int64) error
	CreateTextChannel(ctx context.Context, guildID, name, roleID string, allow, deny int64) (Channel, error)
}

// Discord implements Mutator over a discordgo session, with timeouts going
// through the fasthttp executor.
type Discord struct {
	session  *discordgo.Session
	timeouts *TimeoutExecutor
}

func NewDiscord(session *discordgo.Session, timeouts *TimeoutExecutor) *Discord {
	return &Discord{session: session, timeouts: timeouts}
}

func opts(ctx context.Context, reason string) []discordgo.RequestOption {
	o := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		o = append(o, discordgo.WithAuditLogReason(reason))
	}
	return o
}

func (d *Discord) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	if d.timeouts != nil {
		return d.timeouts.Timeout(ctx, guildID, userID, until, reason)
	}
	var ts *time.Time
	if !until.IsZero() {
		ts = &until
	}
	_, err := d.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{
		CommunicationDisabledUntil: ts,
	}, opts(ctx, reason)...)
	return classify(err)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return classify(d.session.ChannelMessageDelete(channelID, messageID, opts(ctx, "")...))
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (Member, error) {
	if m, err := d.session.State.Member(guildID, userID); err == nil && m.User != nil {
		return toMember(m), nil
	}
	m, err := d.session.GuildMember(guildID, userID, opts(ctx, "")...)
	if err != nil {
		return Member{}, classify(err)
	}
	return toMember(m), nil
}

func toMember(m *discordgo.Member) Member {
	out := Member{Roles: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Bot = m.User.Bot
	}
	return out
}

func (d *Discord) Roles(ctx context.Context, guildID string) ([]Role, error) {
	roles, err := d.session.GuildRoles(guildID, opts(ctx, "")...)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRole(r))
	}
	return out, nil
}

func toRole(r *discordgo.Role) Role {
	return Role{ID: r.ID, Name: r.Name, Permissions: r.Permissions, Position: r.Position, Managed: r.Managed}
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return classify(d.session.GuildMemberRoleAdd(guildID, userID, roleID, opts(ctx, reason)...))
}

func (d *Discord) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return classify(d.session.GuildMemberRoleRemove(guildID, userID, roleID, opts(ctx, reason)...))
}

func (d *Discord) SetRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error {
	roles := append([]string{}, roleIDs...)
	_, err := d.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &roles}, opts(ctx, reason)...)
	return classify(err)
}

func (d *Discord) CreateRole(ctx context.Context, guildID, name, reason string) (Role, error) {
	var none int64
	r, err := d.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name, Permissions: &none}, opts(ctx, reason)...)
	if err != nil {
		return Role{}, classify(err)
	}
	return toRole(r), nil
}

func (d *Discord) EditRolePermissions(ctx context.Context, guildID, roleID string, perms int64, reason string) error {
	_, err := d.session.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Permissions: &perms}, opts(ctx, reason)...)
	return classify(err)
}

func (d *Discord) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	chans, err := d.session.GuildChannels(guildID, opts(ctx, "")...)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Channel, 0, len(chans))
	for _, c := range chans {
		out = append(out, Channel{ID: c.ID, Name: c.Name, Text: c.Type == discordgo.ChannelTypeGuildText})
	}
	return out, nil
}

func (d *Discord) SetRoleOverwrite(ctx context.Context, channelID, roleID string, allow, deny int64) error {
	return classify(d.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, allow, deny, opts(ctx, "")...))
}

// CreateTextChannel creates a text channel with one role overwrite.
func (d *Discord) CreateTextChannel(ctx context.Context, guildID, name, roleID string, allow, deny int64) (Channel, error) {
	c, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: roleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: allow, Deny: deny},
		},
	}, opts(ctx, "")...)
	if err != nil {
		return Channel{}, classify(err)
	}
	return Channel{ID: c.ID, Name: c.Name, Text: true}, nil
}
