package commands

import (
	"context"
	"time"

	"github.com/kingrea/walkthrough/internal/eventbridge"
)

const bridgeShutdownTimeout = 2 * time.Second

// startBridge starts the HTTP event bridge with a router feeding sessions.
// The returned stop func is safe to call once the server is up.
func startBridge(ctx context.Context, e *env, settings eventbridge.Settings) (*eventbridge.Router, *eventbridge.Server, func(), error) {
	router := eventbridge.NewRouter(eventbridge.RouterWithLogger(e.diag()))
	server := eventbridge.NewServer(settings,
		eventbridge.WithProcessor(router),
		eventbridge.WithSessions(router),
		eventbridge.WithLogger(e.diag()),
	)
	if err := server.Start(ctx); err != nil {
		return nil, nil, nil, err
	}
	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), bridgeShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && e.logger != nil {
			e.logger.Printf("eventbridge: shutdown: %v", err)
		}
	}
	return router, server, stop, nil
}
