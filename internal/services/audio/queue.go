// Package audio serializes voice playback: speech is synthesized through an
// ordered provider chain, presets are played from disk, one request at a time.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/fallback"
	"github.com/luisa-bot-go/internal/middleware"
	"github.com/luisa-bot-go/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrPresetNotFound    = errors.New("preset not found")
	ErrPresetFileMissing = errors.New("preset file missing")
	ErrStopped           = errors.New("playback stopped")
	ErrNoProvider        = errors.New("no speech provider succeeded")
	ErrEmptyRequest      = errors.New("request has neither text nor preset")
)

// Sink plays an audio file into a voice connection. Play blocks until the
// file finished or ctx is done.
type Sink interface {
	Play(ctx context.Context, path string) error
}

// State of a queue.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Request is either speech (Text) or a preset (PresetID).
type Request struct {
	ID       string
	Text     string
	PresetID string
	Sink     Sink
}

// Result reports how a request ended. A playback timeout is a soft
// completion: TimedOut is set and Err stays nil.
type Result struct {
	RequestID string
	Provider  string
	Chunks    int
	TimedOut  bool
	Err       error
}

type Options struct {
	ChunkSize       int
	ChunkPause      time.Duration
	RequestGap      time.Duration
	PlaybackTimeout time.Duration
	SynthTimeout    time.Duration
	// WindDown is how long a cancelled sink may take to return before the
	// queue moves on without it.
	WindDown time.Duration
}

const defaultWindDown = 5 * time.Second

func OptionsFromConfig(cfg *config.AudioConfig) Options {
	return Options{
		ChunkSize:       cfg.ChunkSize,
		ChunkPause:      cfg.ChunkPause,
		RequestGap:      cfg.RequestGap,
		PlaybackTimeout: cfg.PlaybackTimeout,
		SynthTimeout:    cfg.SynthTimeout,
	}
}

type job struct {
	req  Request
	done chan Result
}

// Queue plays requests strictly one after another.
type Queue struct {
	name      string
	opts      Options
	providers []Provider
	presets   *PresetRegistry
	cleaner   *Cleaner
	logger    *logrus.Logger
	metrics   *middleware.Metrics

	mu      sync.Mutex
	state   State
	running bool
	pending []*job
	cancel  context.CancelFunc
}

// NewQueue creates a queue; name identifies it in logs and metrics (the guild).
func NewQueue(name string, opts Options, providers []Provider, presets *PresetRegistry, cleaner *Cleaner, logger *logrus.Logger, metrics *middleware.Metrics) *Queue {
	if opts.WindDown <= 0 {
		opts.WindDown = defaultWindDown
	}
	return &Queue{
		name:      name,
		opts:      opts,
		providers: providers,
		presets:   presets,
		cleaner:   cleaner,
		logger:    logger,
		metrics:   metrics,
	}
}

// Enqueue appends req and starts processing when idle. The returned channel
// receives exactly one Result.
func (q *Queue) Enqueue(req Request) <-chan Result {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	j := &job{req: req, done: make(chan Result, 1)}

	q.mu.Lock()
	q.pending = append(q.pending, j)
	q.metrics.SetAudioQueueDepth(q.name, len(q.pending))
	if !q.running {
		q.running = true
		go q.run()
	}
	q.mu.Unlock()

	return j.done
}

// PlayPreset validates the preset before queueing it and waits for the result.
func (q *Queue) PlayPreset(ctx context.Context, id string, sink Sink) Result {
	preset, ok := q.presets.Lookup(id)
	if !ok {
		return Result{Err: fmt.Errorf("%w: %s", ErrPresetNotFound, id)}
	}
	if _, err := os.Stat(preset.Path); err != nil {
		return Result{Err: fmt.Errorf("%w: %s", ErrPresetFileMissing, preset.Filename)}
	}

	done := q.Enqueue(Request{PresetID: id, Sink: sink})
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// Stop halts the current playback and drops every pending request.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	for _, j := range q.pending {
		j.done <- Result{RequestID: j.req.ID, Err: ErrStopped}
	}
	dropped := len(q.pending)
	q.pending = nil
	q.state = Idle
	q.metrics.SetAudioQueueDepth(q.name, 0)

	q.logger.WithFields(logrus.Fields{
		"queue":   q.name,
		"dropped": dropped,
	}).Info("Audio queue stopped")
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Pending returns the number of requests waiting behind the current one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.state = Idle
			q.cancel = nil
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending = q.pending[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.cancel = cancel
		q.state = Playing
		q.metrics.SetAudioQueueDepth(q.name, len(q.pending))
		q.mu.Unlock()

		res := q.process(ctx, j.req)
		stopped := ctx.Err() != nil
		cancel()

		q.mu.Lock()
		q.cancel = nil
		q.state = Idle
		more := len(q.pending) > 0
		q.mu.Unlock()

		if stopped && res.Err == nil {
			res.Err = ErrStopped
		}
		j.done <- res

		if more && q.opts.RequestGap > 0 {
			time.Sleep(q.opts.RequestGap)
		}
	}
}

func (q *Queue) process(ctx context.Context, req Request) Result {
	ctx, span := telemetry.StartSpan(ctx, "audio", "process_request",
		attribute.String("request_id", req.ID),
		attribute.String("queue", q.name))
	defer span.End()

	entry := q.logger.WithFields(logrus.Fields{
		"queue":      q.name,
		"request_id": req.ID,
	})

	var res Result
	switch {
	case req.PresetID != "":
		res = q.playPreset(ctx, req)
	case req.Text != "":
		res = q.speak(ctx, req)
	default:
		res = Result{Err: ErrEmptyRequest}
	}
	res.RequestID = req.ID

	status := "success"
	switch {
	case errors.Is(res.Err, ErrStopped) || errors.Is(res.Err, context.Canceled):
		res.Err = ErrStopped
		status = "stopped"
	case res.Err != nil:
		status = "failed"
		telemetry.RecordError(span, res.Err)
		entry.WithError(res.Err).Warn("Dropping audio request")
	case res.TimedOut:
		status = "timeout"
	}
	provider := res.Provider
	if provider == "" {
		provider = "none"
	}
	q.metrics.RecordAudioPlayback(provider, status)
	return res
}

func (q *Queue) playPreset(ctx context.Context, req Request) Result {
	preset, ok := q.presets.Lookup(req.PresetID)
	if !ok {
		return Result{Provider: "preset", Err: fmt.Errorf("%w: %s", ErrPresetNotFound, req.PresetID)}
	}
	if _, err := os.Stat(preset.Path); err != nil {
		return Result{Provider: "preset", Err: fmt.Errorf("%w: %s", ErrPresetFileMissing, preset.Filename)}
	}

	timedOut, err := q.play(ctx, req.Sink, preset.Path)
	return Result{Provider: "preset", Chunks: 1, TimedOut: timedOut, Err: err}
}

type chunkOutcome struct {
	timedOut bool
}

// speak plays each chunk through the first provider that can synthesize and
// play it. A chunk nobody can voice drops the rest of the request.
func (q *Queue) speak(ctx context.Context, req Request) Result {
	chunks := SplitText(req.Text, q.opts.ChunkSize)
	res := Result{Chunks: len(chunks)}

	for i, chunk := range chunks {
		steps := make([]fallback.Step[chunkOutcome], 0, len(q.providers))
		for _, p := range q.providers {
			steps = append(steps, fallback.Step[chunkOutcome]{
				Name: p.Name(),
				Run: func(ctx context.Context) (chunkOutcome, error) {
					return q.speakChunk(ctx, p, req.Sink, chunk)
				},
			})
		}

		outcome, provider, err := fallback.Run(ctx, q.logger, "audio", steps)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Provider: res.Provider, Chunks: len(chunks), Err: ErrStopped}
			}
			res.Err = fmt.Errorf("chunk %d/%d: %w: %w", i+1, len(chunks), ErrNoProvider, err)
			return res
		}
		res.Provider = provider
		res.TimedOut = res.TimedOut || outcome.timedOut

		if i < len(chunks)-1 && q.opts.ChunkPause > 0 {
			select {
			case <-ctx.Done():
				return Result{Provider: res.Provider, Chunks: len(chunks), Err: ErrStopped}
			case <-time.After(q.opts.ChunkPause):
			}
		}
	}
	return res
}

func (q *Queue) speakChunk(ctx context.Context, p Provider, sink Sink, text string) (chunkOutcome, error) {
	synthCtx := ctx
	if q.opts.SynthTimeout > 0 {
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(ctx, q.opts.SynthTimeout)
		defer cancel()
	}

	artifact, err := p.Synthesize(synthCtx, text)
	if err != nil {
		return chunkOutcome{}, err
	}
	if artifact.Temporary && q.cleaner != nil {
		defer q.cleaner.Schedule(artifact.Path)
	}

	timedOut, err := q.play(ctx, sink, artifact.Path)
	return chunkOutcome{timedOut: timedOut}, err
}

// play waits for the sink up to the playback timeout. Running out of time is
// reported as timedOut, not as an error.
func (q *Queue) play(ctx context.Context, sink Sink, path string) (bool, error) {
	if sink == nil {
		return false, errors.New("no audio sink")
	}

	var (
		playCtx context.Context
		cancel  context.CancelFunc
	)
	if q.opts.PlaybackTimeout > 0 {
		playCtx, cancel = context.WithTimeout(ctx, q.opts.PlaybackTimeout)
	} else {
		playCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sink.Play(playCtx, path)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(playCtx.Err(), context.DeadlineExceeded) {
			return true, nil
		}
		return false, err
	case <-playCtx.Done():
		cancel()
		q.awaitSink(done, path)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		q.logger.WithFields(logrus.Fields{
			"queue": q.name,
			"path":  path,
		}).Warn("Playback timed out, advancing")
		return true, nil
	}
}

// awaitSink gives a cancelled sink up to WindDown to stop, so the next
// request never plays over its tail.
func (q *Queue) awaitSink(done <-chan error, path string) {
	t := time.NewTimer(q.opts.WindDown)
	defer t.Stop()

	select {
	case <-done:
	case <-t.C:
		q.logger.WithFields(logrus.Fields{
			"queue": q.name,
			"path":  path,
		}).Error("Sink ignored cancellation, advancing anyway")
	}
}
