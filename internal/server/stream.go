package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/mptmeter/internal/mpt"
	"github.com/MrWong99/mptmeter/internal/observe"
	"github.com/MrWong99/mptmeter/internal/store"
	"github.com/MrWong99/mptmeter/pkg/audio"
)

// streamReadLimit caps a single WebSocket message.
const streamReadLimit = 1 << 20

// Client → server control messages.
type controlMessage struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Server → client messages.
type readyMessage struct {
	Type             string `json:"type"`
	SampleRate       int    `json:"sampleRate"`
	FrameMs          int64  `json:"frameMs"`
	CalibrationMs    int64  `json:"calibrationMs"`
	SilenceTimeoutMs int64  `json:"silenceTimeoutMs"`
}

type calibratedMessage struct {
	Type       string  `json:"type"`
	NoiseLevel float64 `json:"noiseLevel"`
	VADMode    int     `json:"vadMode"`
}

type endedMessage struct {
	Type string `json:"type"`
}

type resultMessage struct {
	Type string `json:"type"`
	analysisResponse
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// streamState is the per-connection analysis state. It is owned by the
// handler goroutine.
type streamState struct {
	sess       *mpt.Session
	started    time.Time
	conv       *audio.Converter
	received   int64
	calibrated bool
	audioSeen  bool
	finished   bool
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		log.Debug("websocket accept", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(streamReadLimit)

	sess, err := s.analyzer.NewSession(ctx)
	if err != nil {
		log.Error("open analysis session", "err", err)
		conn.Close(websocket.StatusInternalError, "analysis unavailable")
		return
	}
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	st := &streamState{
		sess:    sess,
		started: time.Now(),
		conv:    &audio.Converter{Source: audio.Contract, Log: log},
	}
	defer func() {
		if !st.finished {
			// Client went away: record the outcome, keep nothing.
			s.analyzer.Finish(ctx, st.sess, st.started)
		}
	}()

	p := s.analyzer.Params()
	if err := wsjson.Write(ctx, conn, readyMessage{
		Type:             "ready",
		SampleRate:       audio.ContractSampleRate,
		FrameMs:          p.FrameDuration.Milliseconds(),
		CalibrationMs:    p.CalibrationWindow.Milliseconds(),
		SilenceTimeoutMs: p.SilenceTimeout.Milliseconds(),
	}); err != nil {
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				log.Debug("stream closed by client")
			} else {
				log.Debug("stream read", "err", err)
			}
			return
		}

		var done bool
		switch typ {
		case websocket.MessageBinary:
			done, err = s.streamAudio(ctx, conn, st, data)
		case websocket.MessageText:
			done, err = s.streamControl(st, data)
		}
		if err != nil {
			var ce closeError
			if !errors.As(err, &ce) {
				ce = closeError{status: websocket.StatusUnsupportedData, err: err}
			}
			_ = wsjson.Write(ctx, conn, errorMessage{Type: "error", Error: ce.err.Error()})
			conn.Close(ce.status, "analysis aborted")
			return
		}
		if done {
			s.streamFinish(ctx, conn, st)
			return
		}
	}
}

// closeError carries the WebSocket close status for a protocol failure.
type closeError struct {
	status websocket.StatusCode
	err    error
}

func (e closeError) Error() string { return e.err.Error() }

// streamAudio feeds one binary chunk and reports whether phonation ended.
func (s *Server) streamAudio(ctx context.Context, conn *websocket.Conn, st *streamState, data []byte) (bool, error) {
	st.audioSeen = true
	st.received += int64(len(data))
	if st.received > s.maxUpload {
		return false, closeError{
			status: websocket.StatusMessageTooBig,
			err:    fmt.Errorf("stream exceeds %d bytes", s.maxUpload),
		}
	}

	done, err := st.sess.Write(st.conv.Convert(data))
	if err != nil {
		return false, err
	}

	if !st.calibrated {
		if cal := st.sess.Calibration(); !cal.Insufficient {
			st.calibrated = true
			if err := wsjson.Write(ctx, conn, calibratedMessage{
				Type:       "calibrated",
				NoiseLevel: cal.NoiseLevel,
				VADMode:    int(cal.VADMode),
			}); err != nil {
				return false, err
			}
		}
	}

	if done {
		if err := wsjson.Write(ctx, conn, endedMessage{Type: "ended"}); err != nil {
			return false, err
		}
	}
	return done, nil
}

// streamControl handles a text message. "start" declares the source format
// and must precede any audio; "finish" ends the recording.
func (s *Server) streamControl(st *streamState, data []byte) (bool, error) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false, fmt.Errorf("invalid control message: %w", err)
	}
	switch msg.Type {
	case "start":
		if st.audioSeen {
			return false, errors.New("start must precede audio")
		}
		f := audio.Format{SampleRate: msg.SampleRate, Channels: msg.Channels, BitDepth: audio.ContractBitDepth}
		if f.SampleRate == 0 {
			f.SampleRate = audio.ContractSampleRate
		}
		if f.Channels == 0 {
			f.Channels = audio.ContractChannels
		}
		if f.SampleRate < 0 || f.Channels < 0 {
			return false, fmt.Errorf("invalid source format %s", f)
		}
		st.conv = &audio.Converter{Source: f, Log: st.conv.Log}
		return false, nil
	case "finish":
		return true, nil
	default:
		return false, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (s *Server) streamFinish(ctx context.Context, conn *websocket.Conn, st *streamState) {
	st.finished = true
	res := s.analyzer.Finish(ctx, st.sess, st.started)
	rec, saved := s.save(ctx, store.SourceStream, res)
	if err := wsjson.Write(ctx, conn, resultMessage{
		Type:             "result",
		analysisResponse: newAnalysisResponse(res, rec, saved),
	}); err != nil {
		observe.Logger(ctx).Debug("write stream result", "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
