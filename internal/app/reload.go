package app

import (
	"log/slog"

	"github.com/MrWong99/livescribe/internal/config"
)

// Reload applies the hot-reloadable differences between old and new and
// warns about changes that need a restart. Its signature matches the
// [config.Watcher] callback.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged {
		if a.level != nil {
			a.level.Set(d.NewLogLevel.SlogLevel())
		}
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VocabularyChanged {
		a.corrector.SetVocabulary(d.NewVocabulary)
		slog.Info("vocabulary reloaded", "terms", len(d.NewVocabulary))
	}
	if d.ThresholdsChanged {
		a.corrector.SetMatcher(newMatcher(new))
		slog.Info("matcher thresholds changed",
			"phonetic", new.Transcript.PhoneticThreshold,
			"fuzzy", new.Transcript.FuzzyThreshold,
		)
	}
	if d.OutputDirChanged {
		dir := d.NewOutputDir
		a.outputDir.Store(&dir)
		slog.Info("output directory changed", "dir", dir)
	}
	for _, key := range d.RestartRequired {
		slog.Warn("config change requires a restart to take effect", "key", key)
	}
}
