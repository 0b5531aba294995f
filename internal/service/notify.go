package service

import (
	"context"

	"recharge-store/internal/core/ports"

	"github.com/rs/zerolog"
)

// notifyQuietly appends a notification after the triggering operation has
// committed. A failure is logged and never returned.
func notifyQuietly(ctx context.Context, n ports.Notifier, log zerolog.Logger, req ports.NotifyRequest) {
	if n == nil {
		return
	}
	if _, err := n.Notify(ctx, req); err != nil {
		log.Warn().Err(err).
			Str("user_id", req.UserID.String()).
			Str("title", req.Title).
			Msg("failed to create notification")
	}
}
