package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"
	"github.com/sirupsen/logrus"
)

// streamDrainTimeout bounds the wait for the stream to notice a stopped
// encoder.
const streamDrainTimeout = 5 * time.Second

// voiceSink streams audio files into a voice connection through ffmpeg.
type voiceSink struct {
	conn    *discordgo.VoiceConnection
	options *dca.EncodeOptions
	logger  *logrus.Logger
}

func newVoiceSink(conn *discordgo.VoiceConnection, logger *logrus.Logger) *voiceSink {
	opts := *dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = 96
	opts.Application = dca.AudioApplicationAudio

	return &voiceSink{conn: conn, options: &opts, logger: logger}
}

// Play blocks until the file has been streamed or ctx is done.
func (s *voiceSink) Play(ctx context.Context, path string) error {
	encoding, err := dca.EncodeFile(path, s.options)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	defer encoding.Cleanup()

	if err := s.conn.Speaking(true); err != nil {
		s.logger.WithError(err).Debug("Failed to set speaking state")
	}
	defer s.conn.Speaking(false)

	done := make(chan error, 1)
	dca.NewStream(encoding, s.conn, done)

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stream failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		if err := encoding.Stop(); err != nil {
			s.logger.WithError(err).Debug("Failed to stop encoder")
		}
		select {
		case <-done:
		case <-time.After(streamDrainTimeout):
			s.logger.WithField("path", path).Warn("Voice stream did not drain after stop")
		}
		return ctx.Err()
	}
}
