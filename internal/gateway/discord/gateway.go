// Package discord connects the message pipeline and voice playback to a
// Discord bot session.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/handlers"
	"github.com/luisa-bot-go/internal/i18n"
	"github.com/luisa-bot-go/internal/models"
	"github.com/luisa-bot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Intents needed for messages, reactions and voice presence.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsMessageContent

// NewSession creates an unopened bot session.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	return session, nil
}

// Gateway dispatches session events to the handlers
type Gateway struct {
	session   *discordgo.Session
	config    *config.Config
	messages  *handlers.MessageHandler
	commands  *handlers.CommandHandler
	voice     *VoiceManager
	localizer *i18n.Localizer
	logger    *logrus.Logger

	ctx context.Context
}

// NewGateway creates a new gateway
func NewGateway(
	session *discordgo.Session,
	cfg *config.Config,
	messages *handlers.MessageHandler,
	commands *handlers.CommandHandler,
	voice *VoiceManager,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *Gateway {
	return &Gateway{
		session:   session,
		config:    cfg,
		messages:  messages,
		commands:  commands,
		voice:     voice,
		localizer: localizer,
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Run opens the session and blocks until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	g.ctx = ctx

	g.session.AddHandler(g.onReady)
	g.session.AddHandler(g.onMessageCreate)
	g.session.AddHandler(g.voice.onVoiceStateUpdate)

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	<-ctx.Done()

	g.voice.LeaveAll()
	if err := g.session.Close(); err != nil {
		g.logger.WithError(err).Warn("Failed to close discord session")
	}
	return nil
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.logger.Info(g.localizer.Get(g.config.I18n.DefaultLanguage, i18n.MsgBotStarted, map[string]interface{}{
		"User": r.User.Username,
	}))

	if err := s.UpdateGameStatus(0, g.config.Bot.StatusText); err != nil {
		g.logger.WithError(err).Warn("Failed to update status")
	}
}

func (g *Gateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	botID := ""
	if s.State.User != nil {
		botID = s.State.User.ID
	}
	msg := ToMessage(m.Message, botID, g.config.Persona.Name)
	entry := logger.WithMessage(g.logger, msg.ChannelID, msg.AuthorID)

	out := g.messages.HandleMessage(g.ctx, msg)

	if out.Reaction != "" {
		if err := s.MessageReactionAdd(m.ChannelID, m.ID, out.Reaction); err != nil {
			entry.WithError(err).Warn("Failed to add reaction")
		}
	}

	if out.Reason == handlers.ReasonCommand {
		if reply := g.commands.HandleCommand(g.ctx, msg); reply != "" {
			if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
				entry.WithError(err).Error("Failed to send command reply")
			}
		}
		return
	}

	if out.Ignored {
		return
	}

	if !sleep(g.ctx, out.Delay) {
		return
	}
	if err := s.ChannelTyping(m.ChannelID); err != nil {
		entry.WithError(err).Debug("Failed to send typing indicator")
	}
	if !sleep(g.ctx, out.Typing) {
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, out.Reply); err != nil {
		entry.WithError(err).Error("Failed to send reply")
	}
}

// ToMessage maps a Discord message, rewriting mentions of the bot user to
// the persona name so they count as direct mentions.
func ToMessage(m *discordgo.Message, botID, personaName string) models.Message {
	msg := models.Message{
		ID:           m.ID,
		ChannelID:    m.ChannelID,
		GuildID:      m.GuildID,
		Content:      m.Content,
		HasReference: m.MessageReference != nil,
		CreatedAt:    m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.IsBot = m.Author.Bot
	}

	if botID != "" {
		for _, form := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
			msg.Content = strings.ReplaceAll(msg.Content, form, personaName)
		}
	}
	return msg
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
