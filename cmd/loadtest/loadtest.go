// Command loadtest drives a running chat server with concurrent clients,
// each posting, editing and deleting its own messages while subscribed to
// the live feed, then checks that every client converged on the same list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/client"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "chat server URL")
	clients := flag.Int("clients", 10, "number of concurrent clients")
	messages := flag.Int("messages", 20, "messages per client")
	settle := flag.Duration("settle", 2*time.Second, "time to wait for the feed to drain")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *server, *clients, *messages, *settle); err != nil {
		slog.Error("load test failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, server string, n, perClient int, settle time.Duration) error {
	subCtx, cancelSubs := context.WithCancel(ctx)
	defer cancelSubs()

	subs, subCtx := errgroup.WithContext(subCtx)
	all := make([]*client.Client, 0, n)
	for i := 0; i < n; i++ {
		c, err := client.New(server, internal.Author{
			UserID:   uuid.NewString(),
			Username: fmt.Sprintf("load-%d", i),
		})
		if err != nil {
			return err
		}
		if err := c.Load(ctx); err != nil {
			return err
		}
		all = append(all, c)
		subs.Go(func() error { return c.Subscribe(subCtx) })
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range all {
		g.Go(func() error {
			for j := 0; j < perClient; j++ {
				msg, err := c.AddMessage(gctx, fmt.Sprintf("%s #%d", c.Author().Username, j))
				if err != nil {
					return err
				}
				switch j % 3 {
				case 1:
					if _, err := c.EditMessage(gctx, msg, msg.Text+" (edited)"); err != nil {
						return err
					}
				case 2:
					if err := c.DeleteMessage(gctx, msg.ID); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	time.Sleep(settle)
	cancelSubs()
	if err := subs.Wait(); err != nil {
		return fmt.Errorf("subscription failed: %w", err)
	}

	ref := all[0].Snapshot()
	diverged := 0
	for _, c := range all[1:] {
		snap := c.Snapshot()
		if len(snap) != len(ref) {
			diverged++
			continue
		}
		for i := range snap {
			if snap[i] != ref[i] {
				diverged++
				break
			}
		}
	}

	slog.Info("load test finished",
		"clients", n,
		"mutations", n*perClient,
		"elapsed", elapsed,
		"per_second", float64(n*perClient)/elapsed.Seconds(),
		"diverged_clients", diverged)

	if diverged > 0 {
		return fmt.Errorf("%d of %d clients diverged", diverged, n)
	}
	return nil
}
