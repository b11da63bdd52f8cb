package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crewdesk/automation/pkg/events"
)

// LogEvents registers a handler that writes every lifecycle event to logger and starts consuming.
func LogEvents(ctx context.Context, logger *slog.Logger, subscriber EventSubscriber) error {
	for _, eventType := range events.Types {
		err := subscriber.Handle(eventType, func(ctx context.Context, event any) error {
			logger.InfoContext(ctx, "automation event", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	err := subscriber.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.Topic, err)
	}

	return nil
}
