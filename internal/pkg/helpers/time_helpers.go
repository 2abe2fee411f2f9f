package helpers

import (
	"time"

	"github.com/rs/zerolog"
)

// ParseDuration parses a config duration such as "30s" or "12h". Empty or
// malformed values fall back to def, with a warning for the malformed case.
func ParseDuration(value string, def time.Duration, lgr zerolog.Logger) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		lgr.Warn().Err(err).Str("value", value).Dur("default", def).Msg("Unusable duration, using default")
		return def
	}
	return d
}
