// Command panel-client keeps one reconnecting socket session open and
// prints every envelope it receives as a JSON line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/judgeboard/internal/client"
	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
)

func main() {
	var (
		url       = flag.String("url", envOr("JUDGEBOARD_URL", "ws://localhost:9080/ws"), "Socket URL")
		role      = flag.String("role", envOr("JUDGEBOARD_ROLE", string(protocol.RoleDisplay)), "admin, display or judge")
		judgeID   = flag.String("judge", os.Getenv("JUDGEBOARD_JUDGE_ID"), "Judge id, required for the judge role")
		attempts  = flag.Uint("attempts", 10, "Reconnect attempts before giving up")
		heartbeat = flag.Duration("heartbeat", 30*time.Second, "Heartbeat interval")
		format    = flag.String("log-format", "text", "text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(logger.Format(*format))); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	log := logger.Named("panel-client")

	r, err := protocol.ParseRole(*role)
	if err != nil {
		log.Error(context.Background(), "bad role", logger.Error(err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := client.New(*url,
		client.WithRole(r),
		client.WithJudgeID(*judgeID),
		client.WithMaxAttempts(*attempts),
		client.WithHeartbeatInterval(*heartbeat),
		client.WithLogger(log),
	)

	enc := json.NewEncoder(os.Stdout)
	agent.SubscribeAll(func(env protocol.Envelope) {
		_ = enc.Encode(env)
	})

	if err := agent.Run(ctx); err != nil {
		log.Error(ctx, "session ended", logger.Error(err))
		if errors.Is(err, client.ErrAuthRejected) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
