package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
)

// messageCacheSize is how many messages per channel discordgo keeps so that
// deletes and edits carry the previous content.
const messageCacheSize = 200

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildBans

type Session struct {
	discord *discordgo.Session
	roles   *RoleCache

	mu      sync.RWMutex
	ctx     context.Context
	botID   string
	onReady []func(selfID string)
}

func New(token string) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = intents
	dg.State.MaxMessageCount = messageCacheSize

	return &Session{
		discord: dg,
		roles:   NewRoleCache(),
		ctx:     context.Background(),
	}, nil
}

// Discord returns the underlying discordgo session.
func (s *Session) Discord() *discordgo.Session {
	return s.discord
}

// BotID is empty until the gateway sent READY.
func (s *Session) BotID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.botID
}

// OnReady registers fn to run with the bot's user id on every READY.
func (s *Session) OnReady(fn func(selfID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReady = append(s.onReady, fn)
}

// Open connects to the gateway. Event handlers derive their contexts from
// ctx, so cancelling it aborts in-flight enforcement.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	logging.Info("Discord gateway connected")
	return nil
}

func (s *Session) Close() error {
	if s.discord != nil {
		return s.discord.Close()
	}
	return nil
}

func (s *Session) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// RegisterCommands replaces the application's slash commands. An empty
// guildID registers them globally.
func (s *Session) RegisterCommands(appID, guildID string, commands []*discordgo.ApplicationCommand) error {
	if appID == "" {
		appID = s.BotID()
	}
	if appID == "" && s.discord.State != nil && s.discord.State.User != nil {
		appID = s.discord.State.User.ID
	}
	if appID == "" {
		return fmt.Errorf("failed to register commands: application id unknown")
	}
	registered, err := s.discord.ApplicationCommandBulkOverwrite(appID, guildID, commands)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	scope := "globally"
	if guildID != "" {
		scope = "in guild " + guildID
	}
	logging.Info("Registered %d slash commands %s", len(registered), scope)
	return nil
}

func (s *Session) AddHandler(handler interface{}) func() {
	return s.discord.AddHandler(handler)
}
