package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Hot-reloadable fields are reported individually; everything else that
// changed is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	VocabularyChanged bool
	NewVocabulary     []string

	// ThresholdsChanged is true when either matcher threshold changed.
	ThresholdsChanged bool

	OutputDirChanged bool
	NewOutputDir     string

	// RestartRequired lists the config keys that changed but only take
	// effect after a restart.
	RestartRequired []string
}

// HotChanges reports whether any live-applicable field changed.
func (d ConfigDiff) HotChanges() bool {
	return d.LogLevelChanged || d.VocabularyChanged || d.ThresholdsChanged || d.OutputDirChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Vocabulary correction
	if !slices.Equal(old.Transcript.Vocabulary, new.Transcript.Vocabulary) {
		d.VocabularyChanged = true
		d.NewVocabulary = slices.Clone(new.Transcript.Vocabulary)
	}
	if old.Transcript.PhoneticThreshold != new.Transcript.PhoneticThreshold ||
		old.Transcript.FuzzyThreshold != new.Transcript.FuzzyThreshold {
		d.ThresholdsChanged = true
	}
	if old.Transcript.OutputDir != new.Transcript.OutputDir {
		d.OutputDirChanged = true
		d.NewOutputDir = new.Transcript.OutputDir
	}

	// Fields bound at start-up.
	restart := func(key string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart("server.log_file", old.Server.LogFile != new.Server.LogFile)
	restart("server.status_addr", old.Server.StatusAddr != new.Server.StatusAddr)
	restart("backend", old.Backend != new.Backend)
	restart("audio", old.Audio != new.Audio)
	restart("archive", old.Archive != new.Archive)
	restart("telemetry.service_name", old.Telemetry != new.Telemetry)

	return d
}
