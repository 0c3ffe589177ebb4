package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/johndosdos/chatsync/internal/broker"
	"github.com/johndosdos/chatsync/internal/broker/worker"
	"github.com/johndosdos/chatsync/internal/chat"
	"github.com/johndosdos/chatsync/internal/config"
	"github.com/johndosdos/chatsync/internal/database"
	"github.com/johndosdos/chatsync/internal/handler"
	ratelimiter "github.com/johndosdos/chatsync/internal/rate_limiter"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if err := cfg.RequireServer(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply database migrations before starting")
	return cmd
}

func connectNATS(cfg config.Config) (*nats.Conn, error) {
	opts := []nats.Option{nats.Timeout(5 * time.Second), nats.Name("chatsync")}

	if cfg.NATSCred != "" {
		opts = append(opts, nats.UserCredentials(cfg.NATSCred))
	} else if cfg.NATSUser != "" && cfg.NATSPassword != "" {
		opts = append(opts, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}

	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

func serve(ctx context.Context, cfg config.Config, migrate bool) error {
	slog.Info("Starting application...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Init DB
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("could not connect to the postgresql database: %w", err)
	}
	defer pool.Close()

	if migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	// Init NATS
	nc, err := connectNATS(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := nc.Drain(); err != nil {
			slog.Warn("couldn't drain NATS conn", "error", err)
		}
	}()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create jetstream instance: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     broker.StreamName,
		Subjects: []string{broker.SubjectGlobalRoom},
		MaxBytes: 1 << 30, // 1GB max storage
	})
	if err != nil {
		return fmt.Errorf("failed to create/update stream: %w", err)
	}

	hub := chat.NewHub(database.New(pool),
		chat.WithPublisher(broker.NewPublisher(js)),
		chat.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err := hub.Seed(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// hub.Run is our central hub that is always listening for client related events.
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	if err := broker.Subscribe(ctx, stream, worker.Forward(ctx, hub.BrokerMsg)); err != nil {
		return err
	}

	limiter := ratelimiter.NewIPRateLimiter(ctx, cfg.RateRequests, cfg.RateWindow, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler.NewRouter(hub, limiter, handler.RateLimit{Requests: cfg.RateRequests, Window: cfg.RateWindow}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	g.Go(func() error {
		slog.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received; shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("Server stopped")
	return err
}
