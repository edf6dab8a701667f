// ABOUTME: Watch command streaming realtime notifications to stdout
// ABOUTME: Optionally serves the client's prometheus metrics while it runs

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/markalston/propdesk/internal/realtime"
	"github.com/markalston/propdesk/internal/session"
)

var watchMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print realtime notifications as they arrive",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if code := runWatch(ctx, os.Stdout, watchMetricsAddr); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve /metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}

// slotPrinter writes one line per slot update
type slotPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *slotPrinter) watcher(slot session.Slot) func(*session.Event) {
	return func(ev *session.Event) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if ev == nil {
			fmt.Fprintf(p.w, "%-26s cleared\n", slot)
			return
		}
		line := fmt.Sprintf("%s %-26s %s", ev.ReceivedAt.Format(time.TimeOnly), slot, ev.Kind)
		if ev.OrderID != 0 {
			line += fmt.Sprintf(" order=%d", ev.OrderID)
		}
		if ev.UpdateType != "" {
			line += " update=" + ev.UpdateType
		}
		if len(ev.Payload) > 0 {
			line += " " + string(ev.Payload)
		}
		fmt.Fprintln(p.w, line)
	}
}

// runWatch listens until interrupted or logged out and returns the exit code
func runWatch(ctx context.Context, w io.Writer, metricsAddr string) int {
	d, err := loadDeps(ctx, logStderr)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}
	defer d.close()

	if !d.store.IsAuthenticated() {
		fmt.Fprintln(w, "Not logged in")
		return exitNotLoggedIn
	}

	printer := &slotPrinter{w: w}
	for _, slot := range session.AllSlots {
		cancel, err := d.store.Notifications().Watch(slot, printer.watcher(slot))
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return exitUsage
		}
		defer cancel()
	}

	l, err := d.newListener(realtime.WithStatusHook(func(connected bool) {
		printer.mu.Lock()
		defer printer.mu.Unlock()
		if connected {
			fmt.Fprintln(w, "Connected, waiting for notifications")
		} else {
			fmt.Fprintln(w, "Disconnected")
		}
	}))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		srv := metricsServer(metricsAddr, d.registry)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var runErr error
	g.Go(func() error {
		runErr = l.Run(gctx)
		// Stop the metrics server however the listener ended
		return errListenerDone
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errListenerDone) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitAPI
	}

	switch {
	case runErr == nil:
		fmt.Fprintln(w, "Session ended")
		return exitNotLoggedIn
	case errors.Is(runErr, context.Canceled):
		return exitOK
	case errors.Is(runErr, realtime.ErrNotAuthenticated):
		fmt.Fprintln(w, "Not logged in")
		return exitNotLoggedIn
	default:
		fmt.Fprintf(w, "Error: %v\n", runErr)
		return exitAPI
	}
}

var errListenerDone = errors.New("listener done")

// metricsServer exposes reg plus Go runtime collectors on /metrics
func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
