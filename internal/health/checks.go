package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/mptmeter/pkg/audio"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// VADCheck returns a [Checker] that opens a session on engine in its most
// permissive mode and classifies one frame of digital silence. A detector
// that calls silence speech is reported as broken.
func VADCheck(engine vad.Engine) Checker {
	return Checker{
		Name: "vad",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cfg := vad.Config{
				SampleRate:  audio.ContractSampleRate,
				FrameSizeMs: int(audio.DefaultFrameDuration.Milliseconds()),
				Mode:        vad.ModeQuality,
			}
			sess, err := engine.NewSession(cfg)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}
			defer sess.Close()

			speech, err := sess.IsSpeech(make([]byte, cfg.FrameBytes()))
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}
			if speech {
				return errors.New("silence classified as speech")
			}
			return nil
		},
	}
}

// Pinger is satisfied by stores that can verify their backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps p as a [Checker] named name.
func PingCheck(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}
