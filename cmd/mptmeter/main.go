// Command mptmeter measures Maximum Phonation Time from voice recordings,
// either once over WAV files or as an HTTP/WebSocket service.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/MrWong99/mptmeter/internal/cli"
	"github.com/MrWong99/mptmeter/internal/config"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
	"github.com/MrWong99/mptmeter/pkg/provider/vad/energy"
	"github.com/MrWong99/mptmeter/pkg/provider/vad/webrtc"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Version versionFlag `short:"v" help:"Show version information."`

	Analyze analyzeCmd `cmd:"" help:"Measure phonation time in WAV recordings."`
	Serve   serveCmd   `cmd:"" help:"Run the HTTP and WebSocket analysis service."`
}

type versionFlag bool

// BeforeReset prints the version and exits before required arguments are
// checked.
func (v versionFlag) BeforeReset(app *kong.Kong) error {
	cli.PrintVersion(app.Stdout, version)
	app.Exit(0)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var c CLI
	code := -1
	parser, err := kong.New(&c,
		kong.Name("mptmeter"),
		kong.Description("Maximum Phonation Time analysis"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(n int) { code = n }),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)
	if err != nil {
		cli.PrintError(stderr, err.Error())
		return 1
	}
	ctx, err := parser.Parse(args)
	if code >= 0 {
		return code
	}
	if err != nil {
		cli.PrintError(stderr, err.Error())
		return 1
	}
	if err := ctx.Run(&globals{stdout: stdout, stderr: stderr}); err != nil {
		var ec exitCode
		if errors.As(err, &ec) {
			return int(ec)
		}
		cli.PrintError(stderr, err.Error())
		return 1
	}
	return 0
}

// globals is bound into every command's Run method.
type globals struct {
	stdout io.Writer
	stderr io.Writer
}

// exitCode is returned by commands that already reported their failure and
// only need to set the process status.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// ── VAD wiring ────────────────────────────────────────────────────────────────

// registerBuiltinVAD registers every VAD engine that ships with mptmeter.
func registerBuiltinVAD(reg *config.Registry) {
	reg.RegisterVAD(webrtc.Name, func(config.ProviderEntry) (vad.Engine, error) {
		return webrtc.New(), nil
	})
	reg.RegisterVAD(energy.Name, func(e config.ProviderEntry) (vad.Engine, error) {
		var opts energy.Options
		floor, err := e.FloatsOption("floor", len(opts.Floor))
		if err != nil {
			return nil, err
		}
		ratio, err := e.FloatsOption("ratio", len(opts.Ratio))
		if err != nil {
			return nil, err
		}
		copy(opts.Floor[:], floor)
		copy(opts.Ratio[:], ratio)
		return energy.New(opts), nil
	})
}

// buildVAD resolves entry against the built-in engines.
func buildVAD(entry config.ProviderEntry) (vad.Engine, error) {
	reg := config.NewRegistry()
	registerBuiltinVAD(reg)
	eng, err := reg.CreateVAD(entry)
	if err != nil {
		return nil, fmt.Errorf("vad %q (available: %v): %w", entry.Name, reg.VADNames(), err)
	}
	return eng, nil
}

// ── Logging ───────────────────────────────────────────────────────────────────

// newLogger returns a text logger on w whose level can change at runtime.
func newLogger(w io.Writer, level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(level.Level())
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), lvl
}
