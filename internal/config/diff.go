package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Hot-reloadable fields carry their new value; the rest are only flagged so
// the caller can warn that a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AnalysisChanged is true when any pipeline constant changed. Analyses
	// started after the swap use the new values.
	AnalysisChanged bool
	NewAnalysis     AnalysisConfig

	CORSChanged bool
	NewCORS     []string

	// RestartRequired lists top-level keys whose change only takes effect
	// after a restart (listen address, upload limit, TLS, VAD engine, store).
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.AnalysisChanged && !d.CORSChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Compare the effective parameters so that spelling a default out
	// explicitly is not a change.
	if !reflect.DeepEqual(old.Analysis.Params(), new.Analysis.Params()) {
		d.AnalysisChanged = true
		d.NewAnalysis = new.Analysis
	}

	if !reflect.DeepEqual(old.Server.CORSOrigins, new.Server.CORSOrigins) {
		d.CORSChanged = true
		d.NewCORS = new.Server.CORSOrigins
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.MaxUploadBytes != new.Server.MaxUploadBytes ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.VAD, new.VAD) {
		d.RestartRequired = append(d.RestartRequired, "vad")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}

	return d
}
