package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/mptmeter/internal/mpt"
	"github.com/MrWong99/mptmeter/internal/observe"
	"github.com/MrWong99/mptmeter/internal/store"
	"github.com/MrWong99/mptmeter/pkg/audio"
)

// errNoAudio is reported when a request carries no audio at all.
var errNoAudio = errors.New("No audio data provided")

// analyzeRequest is the JSON upload form. AudioData is a base64 WAV file,
// optionally as a data URL.
type analyzeRequest struct {
	AudioData string `json:"audio_data"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	pcm, err := readAudio(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("audio exceeds %d bytes", tooBig.Limit))
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	res, err := s.analyzer.Analyze(ctx, pcm, audio.Contract)
	if err != nil {
		switch {
		case errors.Is(err, mpt.ErrInvalidAudio):
			writeError(w, http.StatusBadRequest, err.Error())
		case ctx.Err() != nil:
			log.Debug("analysis abandoned by client", "err", err)
		default:
			log.Error("analysis failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Processing error: "+err.Error())
		}
		return
	}

	rec, saved := s.save(ctx, store.SourceUpload, res)
	writeJSON(w, http.StatusOK, newAnalysisResponse(res, rec, saved))
}

// readAudio returns the request audio adapted to the PCM contract. The
// body may be JSON carrying base64 WAV, a raw WAV file or raw L16 PCM.
func readAudio(r *http.Request) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil && ct != "" {
		return nil, fmt.Errorf("bad Content-Type %q: %w", ct, err)
	}

	switch mediaType {
	case "", "application/json":
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, err
			}
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		if req.AudioData == "" {
			return nil, errNoAudio
		}
		data, err := decodeBase64(req.AudioData)
		if err != nil {
			return nil, err
		}
		return wavToContract(data)

	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return wavToContract(data)

	case "audio/l16":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return l16ToContract(data, params)

	default:
		return nil, fmt.Errorf("unsupported Content-Type %q: send application/json, audio/wav or audio/L16", mediaType)
	}
}

// decodeBase64 accepts plain base64 and data URLs
// ("data:audio/wav;base64,...").
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audio_data is not valid base64: %w", err)
	}
	if len(data) == 0 {
		return nil, errNoAudio
	}
	return data, nil
}

func wavToContract(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errNoAudio
	}
	if !audio.IsWAV(data) {
		return nil, fmt.Errorf("%w: expected a RIFF/WAVE container", audio.ErrNotWAV)
	}
	pcm, _, err := audio.LoadWAV(data)
	return pcm, err
}

// l16ToContract converts big-endian linear PCM (RFC 2586) described by the
// rate and channels media type parameters.
func l16ToContract(data []byte, params map[string]string) ([]byte, error) {
	if len(data) == 0 {
		return nil, errNoAudio
	}
	f := audio.Format{SampleRate: audio.ContractSampleRate, Channels: 1, BitDepth: 16}
	if v, ok := params["rate"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("audio/L16: invalid rate %q", v)
		}
		f.SampleRate = n
	}
	if v, ok := params["channels"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("audio/L16: invalid channels %q", v)
		}
		f.Channels = n
	}
	if len(data)%2 != 0 {
		return nil, errors.New("audio/L16: odd byte count")
	}
	le := make([]byte, len(data))
	for i := 0; i+1 < len(data); i += 2 {
		le[i], le[i+1] = data[i+1], data[i]
	}
	return audio.ToContract(le, f)
}
