package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/tonewave/pkg/synth/wsport"
)

var (
	serveAddr      string
	serveFrameRate int
	serveChunk     time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine to browsers over WebSocket",
	Long: `Serve the engine over WebSocket on /ws.

Every connection gets its own engine. The browser sends notePress,
noteRelease, activateMic and sampling requests as JSON and receives the
rendered mix as 16-bit PCM binary frames.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		frameRate := cfg.Server.FrameRate
		if cmd.Flags().Changed("frame-rate") {
			frameRate = serveFrameRate
		}
		chunk := cfg.Server.Chunk()
		if cmd.Flags().Changed("chunk") {
			chunk = serveChunk
		}

		logger := slog.Default()
		srv, err := wsport.NewServer(cfg.Engine,
			wsport.WithLogger(logger.With("component", "wsport")),
			wsport.WithFrameRate(frameRate),
			wsport.WithChunk(chunk),
		)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, logger, addr, srv)
	},
}

func serve(ctx context.Context, logger *slog.Logger, addr string, srv *wsport.Server) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("tonewave: listening", "addr", addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("tonewave: shutting down", "sessions", srv.Sessions())
	// Hijacked WebSocket connections are not tracked by Shutdown.
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&serveFrameRate, "frame-rate", 60, "sampling ticks per second")
	serveCmd.Flags().DurationVar(&serveChunk, "chunk", 20*time.Millisecond, "rendered audio frame duration")
	rootCmd.AddCommand(serveCmd)
}
