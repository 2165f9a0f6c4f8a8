// Package bot adapts the command surface to Discord prefix commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"hustled/internal/business"
	"hustled/internal/config"
	"hustled/internal/economy"
	"hustled/internal/roulette"
)

type Bot struct {
	cfg      config.BotConfig
	log      *slog.Logger
	economy  *economy.Service
	registry *business.Registry
	roulette *roulette.Engine

	session *discordgo.Session

	mu      sync.Mutex
	waiters map[string]chan string
}

func New(cfg config.BotConfig, logger *slog.Logger, econ *economy.Service, registry *business.Registry, eng *roulette.Engine) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		cfg:      cfg,
		log:      logger,
		economy:  econ,
		registry: registry,
		roulette: eng,
		session:  session,
		waiters:  make(map[string]chan string),
	}
	session.AddHandler(b.onMessage)
	return b, nil
}

func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	b.log.Info("bot connected", "prefix", b.cfg.CommandPrefix)
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// Notify delivers a message to an actor over DM. Registry and roulette
// events use this for owner and bettor callbacks.
func (b *Bot) Notify(_ context.Context, actorID, message string) error {
	ch, err := b.session.UserChannelCreate(actorID)
	if err != nil {
		return fmt.Errorf("open dm: %w", err)
	}
	if _, err := b.session.ChannelMessageSend(ch.ID, message); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

func (b *Bot) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)

	// A pending waiter on this channel+author claims the message before
	// command dispatch. That is how multi-step prompts collect replies.
	if b.deliverReply(m.ChannelID, m.Author.ID, content) {
		return
	}

	if !strings.HasPrefix(content, b.cfg.CommandPrefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.cfg.CommandPrefix))
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	b.dispatch(ctx, m, cmd, args)
}

func (b *Bot) deliverReply(channelID, authorID, content string) bool {
	b.mu.Lock()
	ch, ok := b.waiters[waiterKey(channelID, authorID)]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- content:
		return true
	default:
		return false
	}
}

// awaitReply blocks until the author sends another message in the channel
// or the context expires.
func (b *Bot) awaitReply(ctx context.Context, channelID, authorID string) (string, error) {
	key := waiterKey(channelID, authorID)
	ch := make(chan string, 1)

	b.mu.Lock()
	b.waiters[key] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.waiters, key)
		b.mu.Unlock()
	}()

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func waiterKey(channelID, authorID string) string {
	return channelID + ":" + authorID
}

func (b *Bot) reply(m *discordgo.MessageCreate, format string, args ...any) {
	if _, err := b.session.ChannelMessageSend(m.ChannelID, fmt.Sprintf(format, args...)); err != nil {
		b.log.Warn("send message failed", "channel", m.ChannelID, "err", err)
	}
}

func (b *Bot) isAdmin(m *discordgo.MessageCreate) bool {
	if b.cfg.AdminRoleID == "" || m.Member == nil {
		return false
	}
	for _, role := range m.Member.Roles {
		if role == b.cfg.AdminRoleID {
			return true
		}
	}
	return false
}

// messagePrompter runs an application capture in the channel the command
// came from, collecting replies from the same author.
type messagePrompter struct {
	bot       *Bot
	channelID string
	authorID  string
}

func (p *messagePrompter) Ask(ctx context.Context, prompt string) (string, error) {
	if _, err := p.bot.session.ChannelMessageSend(p.channelID, prompt); err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	return p.bot.awaitReply(ctx, p.channelID, p.authorID)
}
