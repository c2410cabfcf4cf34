package mpt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/mptmeter/internal/observe"
	"github.com/MrWong99/mptmeter/pkg/audio"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// ctxCheckInterval is how many frames pass between context checks. The
// pipeline itself never blocks; the check only honours caller timeouts.
const ctxCheckInterval = 256

// Analyzer runs complete analyses over in-memory PCM. Its parameters can be
// swapped at runtime with [Analyzer.SetParams]; each analysis takes a
// snapshot at start. An Analyzer is safe for concurrent use.
type Analyzer struct {
	engine     vad.Engine
	engineName string
	metrics    *observe.Metrics
	params     atomic.Pointer[Params]
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithEngine names the VAD engine in results and spans.
func WithEngine(name string) Option {
	return func(a *Analyzer) { a.engineName = name }
}

// NewAnalyzer returns an Analyzer using engine for voice activity detection.
func NewAnalyzer(engine vad.Engine, p Params, opts ...Option) (*Analyzer, error) {
	if engine == nil {
		return nil, errors.New("mpt: nil vad engine")
	}
	a := &Analyzer{engine: engine}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if err := a.SetParams(p); err != nil {
		return nil, err
	}
	return a, nil
}

// Params returns the current parameter snapshot.
func (a *Analyzer) Params() Params {
	return *a.params.Load()
}

// SetParams validates p (after defaulting) and makes it the snapshot for
// analyses started from now on.
func (a *Analyzer) SetParams(p Params) error {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("mpt: invalid params: %w", err)
	}
	a.params.Store(&p)
	return nil
}

// EngineName returns the configured VAD engine name.
func (a *Analyzer) EngineName() string { return a.engineName }

// NewSession starts a streaming analysis with the current parameters. The
// caller feeds it with [Session.Write] or [Session.Push] and must call
// [Analyzer.Finish] to record the outcome.
func (a *Analyzer) NewSession(ctx context.Context) (*Session, error) {
	return NewSession(a.engine, a.Params(),
		WithEngineName(a.engineName),
		WithLogger(observe.Logger(ctx)),
	)
}

// Finish assembles the result of a streaming session, records it and closes
// the session.
func (a *Analyzer) Finish(ctx context.Context, s *Session, started time.Time) Result {
	res := s.Result()
	if err := s.Close(); err != nil {
		observe.Logger(ctx).Warn("close vad session", "err", err)
	}
	a.record(ctx, res, time.Since(started))
	return res
}

// Analyze runs the full pipeline over pcm, which must be in f and f must be
// the 16 kHz mono 16-bit contract. Clinical edge cases (no speech, too short)
// come back as an INVALID [Result] with a nil error; only contract violations
// and VAD engine failures are returned as errors.
func (a *Analyzer) Analyze(ctx context.Context, pcm []byte, f audio.Format) (Result, error) {
	start := time.Now()
	p := a.Params()

	ctx, span := observe.StartSpan(ctx, "mpt.Analyze",
		trace.WithAttributes(
			attribute.Int("audio.bytes", len(pcm)),
			attribute.String("vad.engine", a.engineName),
		),
	)
	defer span.End()

	frames, err := audio.Frames(pcm, f, p.FrameDuration)
	if err != nil {
		err = invalidAudio("pcm contract", err)
		observe.Fail(span, err)
		a.metrics.RecordAnalysisError(ctx, "invalid_audio")
		return Result{}, err
	}

	sess, err := NewSession(a.engine, p, WithEngineName(a.engineName), WithLogger(observe.Logger(ctx)))
	if err != nil {
		observe.Fail(span, err)
		return Result{}, err
	}
	defer sess.Close()

	n := 0
	for fr := range frames {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				observe.Fail(span, err)
				return Result{}, err
			}
		}
		n++
		done, err := sess.Push(fr)
		if err != nil {
			observe.Fail(span, err)
			a.metrics.RecordAnalysisError(ctx, errorKind(err))
			return Result{}, err
		}
		if done {
			break
		}
	}

	res := sess.Result()
	span.AddEvent("mpt.Calibrate", trace.WithAttributes(
		attribute.Float64("noise_level", res.Debug.NoiseLevel),
		attribute.Int("vad_mode", res.Debug.VADMode),
		attribute.Int("frames", res.Debug.CalibrationFrames),
		attribute.Bool("insufficient", res.Debug.CalibrationInsufficient),
	))
	span.SetAttributes(
		attribute.String("mpt.urgency", string(res.Urgency)),
		attribute.Float64("mpt.duration_s", res.DurationSeconds),
		attribute.String("mpt.termination", string(res.Debug.Termination)),
	)
	a.record(ctx, res, time.Since(start))
	return res, nil
}

func (a *Analyzer) record(ctx context.Context, res Result, elapsed time.Duration) {
	a.metrics.RecordAnalysis(ctx, string(res.Urgency), res.VADModeLabel(), elapsed.Seconds(), res.DurationSeconds, res.Valid())
	if err := res.Err(); err != nil {
		a.metrics.RecordAnalysisError(ctx, errorKind(err))
	}
	observe.Logger(ctx).Debug("analysis complete",
		"urgency", res.Urgency,
		"duration_s", res.DurationSeconds,
		"noise_level", res.Debug.NoiseLevel,
		"vad_mode", res.Debug.VADMode,
		"speech_pct", res.Debug.SpeechFramePercent,
		"termination", res.Debug.Termination,
		"elapsed", elapsed,
	)
}

// errorKind returns the metric label for err.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAudio):
		return "invalid_audio"
	case errors.Is(err, ErrNoSpeechDetected):
		return "no_speech"
	case errors.Is(err, ErrTooShort):
		return "too_short"
	case errors.Is(err, vad.ErrInvalidConfig):
		return "vad_config"
	default:
		return "vad_engine"
	}
}
