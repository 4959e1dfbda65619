package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luisa-bot-go/internal/config"
	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// Artifact is a playable audio file produced by a provider.
type Artifact struct {
	Path string
	// Temporary artifacts are deleted by the Cleaner after playback.
	Temporary bool
}

// Provider synthesizes speech for one chunk of text.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string) (Artifact, error)
}

func tempPath(dir, ext string) string {
	return filepath.Join(dir, "tts_"+uuid.NewString()+ext)
}

// writeArtifact streams body into a new temp file, removing it on failure.
func writeArtifact(dir, ext string, body io.Reader) (Artifact, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create temp dir: %w", err)
	}

	path := tempPath(dir, ext)
	file, err := os.Create(path)
	if err != nil {
		return Artifact{}, err
	}

	n, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("empty audio response")
	}
	if err != nil {
		os.Remove(path)
		return Artifact{}, err
	}
	return Artifact{Path: path, Temporary: true}, nil
}

// GoogleTTS downloads speech from the Google Translate TTS endpoint.
type GoogleTTS struct {
	baseURL    string
	language   string
	tempDir    string
	httpClient *http.Client
}

func NewGoogleTTS(cfg *config.GoogleTTSConfig, language, tempDir string, timeout time.Duration) *GoogleTTS {
	return &GoogleTTS{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		language:   language,
		tempDir:    tempDir,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *GoogleTTS) Name() string { return "google_tts" }

func (g *GoogleTTS) Synthesize(ctx context.Context, text string) (Artifact, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", g.language)
	q.Set("total", "1")
	q.Set("idx", "0")
	q.Set("textlen", strconv.Itoa(len([]rune(text))))
	q.Set("client", "tw-ob")
	q.Set("prev", "input")
	q.Set("ttsspeed", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return Artifact{}, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Artifact{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Artifact{}, fmt.Errorf("google tts returned status %d", resp.StatusCode)
	}

	return writeArtifact(g.tempDir, ".mp3", resp.Body)
}

// Espeak renders speech offline with the espeak binary.
type Espeak struct {
	binary  string
	voice   string
	speed   int
	tempDir string
}

func NewEspeak(cfg *config.EspeakConfig, tempDir string) *Espeak {
	return &Espeak{binary: cfg.Binary, voice: cfg.Voice, speed: cfg.Speed, tempDir: tempDir}
}

func (e *Espeak) Name() string { return "espeak" }

func (e *Espeak) Synthesize(ctx context.Context, text string) (Artifact, error) {
	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create temp dir: %w", err)
	}

	path := tempPath(e.tempDir, ".wav")
	cmd := exec.CommandContext(ctx, e.binary, "-v", e.voice, "-s", strconv.Itoa(e.speed), "-w", path, text)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("espeak failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("espeak produced no audio")
	}
	return Artifact{Path: path, Temporary: true}, nil
}

// OpenAISpeech uses the OpenAI speech endpoint.
type OpenAISpeech struct {
	client  openaigo.Client
	apiKey  string
	model   string
	voice   string
	tempDir string
	logger  *logrus.Logger
}

func NewOpenAISpeech(cfg *config.SpeechConfig, provider *config.ProviderConfig, tempDir string, timeout time.Duration, logger *logrus.Logger, opts ...option.RequestOption) *OpenAISpeech {
	apiKey := strings.TrimSpace(provider.APIKey)

	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL := strings.TrimSpace(provider.BaseURL); baseURL != "" {
		base = append(base, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &OpenAISpeech{
		client:  openaigo.NewClient(append(base, opts...)...),
		apiKey:  apiKey,
		model:   cfg.Model,
		voice:   cfg.Voice,
		tempDir: tempDir,
		logger:  logger,
	}
}

func (o *OpenAISpeech) Name() string { return "openai" }

func (o *OpenAISpeech) Synthesize(ctx context.Context, text string) (Artifact, error) {
	if o.apiKey == "" {
		return Artifact{}, fmt.Errorf("openai speech: %w", ErrNoProvider)
	}

	resp, err := o.client.Audio.Speech.New(ctx, openaigo.AudioSpeechNewParams{
		Input:          text,
		Model:          openaigo.SpeechModel(o.model),
		Voice:          openaigo.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openaigo.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Body.Close()

	return writeArtifact(o.tempDir, ".mp3", resp.Body)
}

// ProvidersFromConfig builds the speech providers in the configured order.
// Unknown names are logged and skipped.
func ProvidersFromConfig(cfg *config.AudioConfig, openai *config.ProviderConfig, logger *logrus.Logger) []Provider {
	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case "google_tts":
			providers = append(providers, NewGoogleTTS(&cfg.GoogleTTS, cfg.Language, cfg.TempDir, cfg.SynthTimeout))
		case "espeak":
			providers = append(providers, NewEspeak(&cfg.Espeak, cfg.TempDir))
		case "openai":
			providers = append(providers, NewOpenAISpeech(&cfg.OpenAI, openai, cfg.TempDir, cfg.SynthTimeout, logger))
		default:
			logger.WithField("provider", name).Warn("Unknown speech provider, skipping")
		}
	}
	return providers
}
