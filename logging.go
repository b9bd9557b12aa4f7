package calendarcache

import "github.com/rs/zerolog"

// newLogger returns a child of logger tagged with component.
// A console logger is used if logger is nil.
func newLogger(logger *zerolog.Logger, component string) zerolog.Logger {
	var l zerolog.Logger
	if logger == nil {
		l = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		l = *logger
	}
	return l.With().
		Str("component", component).
		Logger()
}
