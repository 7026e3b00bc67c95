package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperationThreshold is the duration above which OperationTimer warns.
const SlowOperationThreshold = 10 * time.Second

// OperationTimer returns a func that logs how long the operation took.
//
//	defer utils.OperationTimer("widget_poll", log)()
func OperationTimer(operation string, log zerolog.Logger) func() time.Duration {
	return operationTimer(operation, log, time.Now)
}

func operationTimer(operation string, log zerolog.Logger, now func() time.Time) func() time.Duration {
	start := now()

	return func() time.Duration {
		duration := now().Sub(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > SlowOperationThreshold {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}
		return duration
	}
}
