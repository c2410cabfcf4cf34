package mpt

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/mptmeter/pkg/audio"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

var errSessionClosed = errors.New("mpt: session closed")

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithEngineName sets the engine name reported in Debug.Engine.
func WithEngineName(name string) SessionOption {
	return func(s *Session) { s.engineName = name }
}

// WithLogger sets the logger for per-frame diagnostics. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// Session is one analysis in progress. Frames are pushed strictly in order;
// the first ones fill the calibration window, after which a VAD session is
// opened with the calibrated mode and every further frame drives the
// boundary detector until phonation ends.
//
// A Session is not safe for concurrent use.
type Session struct {
	params     Params
	engine     vad.Engine
	engineName string
	log        *slog.Logger
	frameBytes int

	seg        *audio.Segmenter
	cal        *Calibrator
	calResult  CalibrationResult
	calibrated bool
	handle     vad.SessionHandle
	det        *Detector
}

// NewSession returns a Session for engine. Zero fields of p take their
// defaults; p is validated after that.
func NewSession(engine vad.Engine, p Params, opts ...SessionOption) (*Session, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("mpt: invalid params: %w", err)
	}
	seg, err := audio.NewSegmenter(p.FrameDuration)
	if err != nil {
		return nil, err
	}
	s := &Session{
		params:     p,
		engine:     engine,
		log:        slog.Default(),
		frameBytes: audio.FrameBytes(p.FrameDuration),
		seg:        seg,
		cal:        NewCalibrator(p),
		det:        NewDetector(p.SilenceTimeout),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Push consumes one frame and reports whether phonation has ended. Frames
// pushed after that are ignored. It fails with [ErrInvalidAudio] for a frame
// of the wrong length and when the VAD session cannot be opened.
func (s *Session) Push(f audio.AudioFrame) (bool, error) {
	if s.Done() {
		return true, nil
	}
	if len(f.Data) != s.frameBytes {
		return false, invalidAudio(fmt.Sprintf("frame %d is %d bytes, want %d", f.Index, len(f.Data), s.frameBytes), nil)
	}

	if !s.calibrated {
		if s.cal.Add(f) {
			if err := s.openVAD(); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if s.handle == nil {
		return false, errSessionClosed
	}
	speech, err := s.handle.IsSpeech(f.Data)
	if err != nil {
		s.det.countVADError()
		s.log.Debug("vad frame error, counted as silence", "frame", f.Index, "err", err)
		speech = false
	}
	return s.det.Observe(FrameDecision{Frame: f, IsSpeech: speech, Timestamp: f.Timestamp}), nil
}

// Write segments a chunk of contract PCM and pushes every completed frame.
// Partial frames are carried to the next call.
func (s *Session) Write(pcm []byte) (bool, error) {
	for _, f := range s.seg.Write(pcm) {
		done, err := s.Push(f)
		if err != nil || done {
			return done, err
		}
	}
	return s.Done(), nil
}

// Done reports whether phonation has ended by silence timeout.
func (s *Session) Done() bool {
	return s.det.Event().Done()
}

// Calibration returns the calibration result, or the partial estimate when
// the window has not been filled yet.
func (s *Session) Calibration() CalibrationResult {
	if s.calibrated {
		return s.calResult
	}
	return s.cal.Result()
}

// Result finalizes the session as if the stream ended now and returns the
// assembled result. Calling it more than once returns the same result.
func (s *Session) Result() Result {
	cal := s.Calibration()
	if cal.Insufficient {
		s.log.Debug("calibrated on partial window",
			"err", ErrInsufficientCalibration,
			"frames", cal.Frames,
			"want", s.params.CalibrationFrames(),
		)
	}
	ev := s.det.Finish()
	return Assemble(cal, ev, Judge(ev, s.params), s.det.Stats(), s.engineName)
}

// Close releases the VAD session. It is safe to call more than once.
func (s *Session) Close() error {
	if s.handle == nil {
		return nil
	}
	h := s.handle
	s.handle = nil
	return h.Close()
}

func (s *Session) openVAD() error {
	s.calResult = s.cal.Result()
	s.calibrated = true
	h, err := s.engine.NewSession(s.params.vadConfig(s.calResult))
	if err != nil {
		return fmt.Errorf("mpt: open vad session: %w", err)
	}
	s.handle = h
	s.log.Debug("calibrated",
		"noise_level", s.calResult.NoiseLevel,
		"vad_mode", int(s.calResult.VADMode),
		"frames", s.calResult.Frames,
	)
	return nil
}
