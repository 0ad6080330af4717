package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/lexisync/internal/engine"
	"github.com/lazypower/lexisync/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and sync scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	// One lock for the API and the scheduler: stores are single-writer.
	var mu sync.Mutex

	mu.Lock()
	failed, err := mgr.UpgradeAll()
	mu.Unlock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: upgrade check failed: %v\n", err)
	} else if len(failed) > 0 {
		fmt.Fprintf(os.Stderr, "warning: upgrade failed for %s\n", strings.Join(failed, ", "))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Sync.Enabled {
		sched, err := engine.NewScheduler(mgr, &mu, cfg.Sync.Schedule)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		if next, err := sched.Next(time.Now()); err == nil {
			fmt.Fprintf(os.Stderr, "  sync: %s (next %s)\n", sched.Expr(), next.Format(time.RFC3339))
		}
	}

	srv := server.New(mgr, &mu, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "lexisync serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  user: %s\n", mgr.UserID())
		fmt.Fprintf(os.Stderr, "  data: %s (%s)\n", cfg.Paths.UserDataDir, cfg.Storage.Backend)
		fmt.Fprintf(os.Stderr, "  sync dir: %s\n", cfg.Paths.SyncDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
