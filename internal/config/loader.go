package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidVADNames lists the VAD engines shipped with mptmeter. Used by
// [Validate] to warn about unrecognised names.
var ValidVADNames = []string{"webrtc", "energy"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset server, VAD and store fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":5000"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.VAD.Name == "" {
		cfg.VAD.Name = "webrtc"
	}
	if cfg.Store.HistoryLimit == 0 {
		cfg.Store.HistoryLimit = 100
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Analysis
	if err := cfg.Analysis.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}

	// VAD
	validateVADName(cfg.VAD.Name)

	// Store
	if cfg.Store.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("store.history_limit %d must not be negative", cfg.Store.HistoryLimit))
	}
	if cfg.Store.PostgresDSN == "" {
		slog.Debug("store.postgres_dsn is empty; analysis history will be kept in memory")
	}

	return errors.Join(errs...)
}

// validateVADName logs a warning if name is non-empty and not one of
// [ValidVADNames].
func validateVADName(name string) {
	if name == "" || slices.Contains(ValidVADNames, name) {
		return
	}
	slog.Warn("unknown vad engine name; may be a typo or a third-party engine",
		"name", name,
		"known", ValidVADNames,
	)
}
