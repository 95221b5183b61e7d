package wsmanager

import (
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// party is the common base of Server and Client. Options which make sense on both sides accept a party.
type party interface {
	setLoggers(info StructuredLogger, dbg StructuredLogger)
	setCodec(codec Codec)
}

// StructuredLogger is the simplest logging interface for structured logging.
// See github.com/go-kit/log
type StructuredLogger interface {
	Log(keyVals ...interface{}) error
}

// Logger sets the logger used by the party to log info events.
// If debug is true, debug log event are generated, too
func Logger(logger StructuredLogger, debug bool) func(party) error {
	return func(p party) error {
		if logger == nil {
			return errors.New("option Logger: logger is nil")
		}
		i, d := buildInfoDebugLogger(logger, debug)
		p.setLoggers(i, d)
		return nil
	}
}

// WithCodec sets the Codec used to decode invocations and encode results.
// Server and Client must use the same codec. Default is the JSONCodec.
func WithCodec(codec Codec) func(party) error {
	return func(p party) error {
		if codec == nil {
			return errors.New("option WithCodec: codec is nil")
		}
		p.setCodec(codec)
		return nil
	}
}

func buildInfoDebugLogger(logger log.Logger, debug bool) (log.Logger, log.Logger) {
	if debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return level.Info(logger), log.With(level.Debug(logger), "caller", log.DefaultCaller)
}
