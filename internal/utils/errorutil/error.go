package errorutil

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// LogContextError logs err, noting when the failure came from ctx expiring
// rather than from the operation itself.
func LogContextError(log zerolog.Logger, ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		log.Error().Err(err).AnErr("context", ctx.Err()).Msg(msg + " - timed out")
		return
	}
	log.Error().Err(err).Msg(msg)
}

// Canceled reports whether err was caused by cancellation or a deadline
func Canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
