package decision

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// fakeGuild is an in-memory guild implementing dispatcher.Mutator.
type fakeGuild struct {
	mu         sync.Mutex
	roles      map[string]dispatcher.Role
	members    map[string][]string
	channels   []dispatcher.Channel
	overwrites map[string][2]int64
	timeouts   map[string]time.Time
	deleted    []string
	nextID     int

	// deny makes the named operations fail with ErrPermissionDenied.
	deny map[string]bool
	fail map[string]error
}

func newFakeGuild() *fakeGuild {
	return &fakeGuild{
		roles:      make(map[string]dispatcher.Role),
		members:    make(map[string][]string),
		overwrites: make(map[string][2]int64),
		timeouts:   make(map[string]time.Time),
		deny:       make(map[string]bool),
		fail:       make(map[string]error),
	}
}

func (f *fakeGuild) check(op string) error {
	if f.deny[op] {
		return dispatcher.ErrPermissionDenied
	}
	return f.fail[op]
}

func (f *fakeGuild) addRole(id string, perms int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[id] = dispatcher.Role{ID: id, Name: id, Permissions: perms}
}

func (f *fakeGuild) setMember(id string, roles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[id] = roles
}

func (f *fakeGuild) memberRoles(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.members[id])
	slices.Sort(out)
	return out
}

func (f *fakeGuild) Timeout(_ context.Context, _, userID string, until time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("timeout"); err != nil {
		return err
	}
	f.timeouts[userID] = until
	return nil
}

func (f *fakeGuild) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("delete"); err != nil {
		return err
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeGuild) Member(_ context.Context, _, userID string) (dispatcher.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("member"); err != nil {
		return dispatcher.Member{}, err
	}
	roles, ok := f.members[userID]
	if !ok {
		return dispatcher.Member{}, dispatcher.ErrUnknownResource
	}
	return dispatcher.Member{UserID: userID, Roles: slices.Clone(roles)}, nil
}

func (f *fakeGuild) Roles(context.Context, string) ([]dispatcher.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("roles"); err != nil {
		return nil, err
	}
	out := make([]dispatcher.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeGuild) AddRole(_ context.Context, _, userID, roleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("add_role"); err != nil {
		return err
	}
	if !slices.Contains(f.members[userID], roleID) {
		f.members[userID] = append(f.members[userID], roleID)
	}
	return nil
}

func (f *fakeGuild) RemoveRole(_ context.Context, _, userID, roleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("remove_role"); err != nil {
		return err
	}
	f.members[userID] = slices.DeleteFunc(f.members[userID], func(id string) bool { return id == roleID })
	return nil
}

func (f *fakeGuild) SetRoles(_ context.Context, _, userID string, roleIDs []string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("set_roles"); err != nil {
		return err
	}
	f.members[userID] = slices.Clone(roleIDs)
	return nil
}

func (f *fakeGuild) CreateRole(_ context.Context, _, name, _ string) (dispatcher.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("create_role"); err != nil {
		return dispatcher.Role{}, err
	}
	f.nextID++
	r := dispatcher.Role{ID: fmt.Sprintf("%s-%d", name, f.nextID), Name: name}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeGuild) EditRolePermissions(_ context.Context, _, roleID string, perms int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("edit_role"); err != nil {
		return err
	}
	r := f.roles[roleID]
	r.Permissions = perms
	f.roles[roleID] = r
	return nil
}

func (f *fakeGuild) Channels(context.Context, string) ([]dispatcher.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.channels), nil
}

func (f *fakeGuild) SetRoleOverwrite(_ context.Context, channelID, roleID string, allow, deny int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("overwrite"); err != nil {
		return err
	}
	f.overwrites[channelID+"/"+roleID] = [2]int64{allow, deny}
	return nil
}

func (f *fakeGuild) CreateTextChannel(_ context.Context, _, name, roleID string, allow, deny int64) (dispatcher.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("create_channel"); err != nil {
		return dispatcher.Channel{}, err
	}
	ch := dispatcher.Channel{ID: "ch-" + name, Name: name, Text: true}
	f.channels = append(f.channels, ch)
	f.overwrites[ch.ID+"/"+roleID] = [2]int64{allow, deny}
	return ch, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	embeds []*discordgo.MessageEmbed
	err    error
}

func (n *fakeNotifier) NotifyRoutine(ctx context.Context, settings models.GuildSettings, embed *discordgo.MessageEmbed) error {
	return n.Notify(ctx, settings, embed)
}

func (n *fakeNotifier) Notify(_ context.Context, _ models.GuildSettings, embed *discordgo.MessageEmbed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.embeds = append(n.embeds, embed)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *fakeAudit) Enqueue(e models.AuditEntry) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return true
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
