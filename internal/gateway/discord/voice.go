package discord

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/middleware"
	"github.com/luisa-bot-go/internal/random"
	"github.com/luisa-bot-go/internal/services/audio"
	"github.com/sirupsen/logrus"
)

type voiceSession struct {
	conn  *discordgo.VoiceConnection
	queue *audio.Queue
	sink  *voiceSink
}

// VoiceManager owns the voice connection and playback queue of every guild.
type VoiceManager struct {
	session   *discordgo.Session
	persona   config.PersonaConfig
	options   audio.Options
	providers []audio.Provider
	presets   *audio.PresetRegistry
	cleaner   *audio.Cleaner
	random    random.Source
	logger    *logrus.Logger
	metrics   *middleware.Metrics

	mu     sync.Mutex
	guilds map[string]*voiceSession
}

// NewVoiceManager creates a voice manager
func NewVoiceManager(
	session *discordgo.Session,
	cfg *config.Config,
	providers []audio.Provider,
	presets *audio.PresetRegistry,
	cleaner *audio.Cleaner,
	src random.Source,
	logger *logrus.Logger,
	metrics *middleware.Metrics,
) *VoiceManager {
	return &VoiceManager{
		session:   session,
		persona:   cfg.Persona,
		options:   audio.OptionsFromConfig(&cfg.Audio),
		providers: providers,
		presets:   presets,
		cleaner:   cleaner,
		random:    src,
		logger:    logger,
		metrics:   metrics,
		guilds:    make(map[string]*voiceSession),
	}
}

// Queue returns the playback queue and sink of guildID when connected.
func (v *VoiceManager) Queue(guildID string) (*audio.Queue, audio.Sink, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	vs, ok := v.guilds[guildID]
	if !ok {
		return nil, nil, false
	}
	return vs.queue, vs.sink, true
}

// Join connects to channelID muted, replacing any connection in the guild.
func (v *VoiceManager) Join(guildID, channelID string) error {
	v.Leave(guildID)

	conn, err := v.session.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	if err := waitReady(conn, v.persona.VoiceReadyWait); err != nil {
		conn.Disconnect()
		return err
	}

	v.mu.Lock()
	v.guilds[guildID] = &voiceSession{
		conn:  conn,
		queue: audio.NewQueue(guildID, v.options, v.providers, v.presets, v.cleaner, v.logger, v.metrics),
		sink:  newVoiceSink(conn, v.logger),
	}
	v.mu.Unlock()

	v.logger.WithFields(logrus.Fields{
		"guild_id":   guildID,
		"channel_id": channelID,
	}).Info("Joined voice channel")
	return nil
}

// Leave stops playback and disconnects from guildID.
func (v *VoiceManager) Leave(guildID string) bool {
	v.mu.Lock()
	vs, ok := v.guilds[guildID]
	delete(v.guilds, guildID)
	v.mu.Unlock()

	if !ok {
		return false
	}

	vs.queue.Stop()
	if err := vs.conn.Disconnect(); err != nil {
		v.logger.WithError(err).WithField("guild_id", guildID).Warn("Failed to disconnect from voice")
	}
	v.logger.WithField("guild_id", guildID).Info("Left voice channel")
	return true
}

// LeaveAll disconnects from every guild.
func (v *VoiceManager) LeaveAll() {
	v.mu.Lock()
	ids := make([]string, 0, len(v.guilds))
	for id := range v.guilds {
		ids = append(ids, id)
	}
	v.mu.Unlock()

	for _, id := range ids {
		v.Leave(id)
	}
}

func (v *VoiceManager) channelOf(guildID string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	if vs, ok := v.guilds[guildID]; ok {
		return vs.conn.ChannelID
	}
	return ""
}

// onVoiceStateUpdate sometimes follows a user into voice and leaves once
// the bot is alone.
func (v *VoiceManager) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if s.State.User != nil && vsu.UserID == s.State.User.ID {
		return
	}

	before := ""
	if vsu.BeforeUpdate != nil {
		before = vsu.BeforeUpdate.ChannelID
	}
	guildID := vsu.GuildID

	switch {
	case before == "" && vsu.ChannelID != "":
		if v.channelOf(guildID) != "" || v.random.Float64() >= v.persona.VoiceJoinChance {
			return
		}
		channelID := vsu.ChannelID
		delay := random.Between(v.random, v.persona.VoiceJoinDelay.Min, v.persona.VoiceJoinDelay.Max)
		time.AfterFunc(delay, func() {
			if err := v.Join(guildID, channelID); err != nil {
				v.logger.WithError(err).WithField("guild_id", guildID).Warn("Ambient voice join failed")
			}
		})

	case before != "" && vsu.ChannelID != before:
		current := v.channelOf(guildID)
		if current != before || !v.alone(s, guildID, current) {
			return
		}
		delay := random.Between(v.random, v.persona.VoiceLeaveDelay.Min, v.persona.VoiceLeaveDelay.Max)
		time.AfterFunc(delay, func() {
			if v.channelOf(guildID) == current && v.alone(s, guildID, current) {
				v.Leave(guildID)
			}
		})
	}
}

// alone reports whether nobody but the bot is in channelID.
func (v *VoiceManager) alone(s *discordgo.Session, guildID, channelID string) bool {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return false
	}

	members := 0
	for _, state := range guild.VoiceStates {
		if state.ChannelID == channelID && (s.State.User == nil || state.UserID != s.State.User.ID) {
			members++
		}
	}
	return members == 0
}

func waitReady(conn *discordgo.VoiceConnection, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn.RLock()
		ready := conn.Ready
		conn.RUnlock()
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("voice connection not ready after %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
