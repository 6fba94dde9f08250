package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/goXRPLdig/internal/server"
)

var serverListenAddr string

// serverCmd starts the JSON-RPC server (the default action).
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the aggregation JSON-RPC server",
	Long: `Start the xrpldig server exposing the snapshot cache over HTTP
JSON-RPC in the XRPL envelope format, plus a health check endpoint.

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Running xrpldig with no subcommand starts the server.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}

	serverCmd.Flags().StringVar(&serverListenAddr, "listen", "", "listen address (default: configured listen_addr)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverListenAddr != "" {
		cfg.Server.ListenAddr = serverListenAddr
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := buildStack(cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	rpcServer, err := server.New(st.snapshots, st.registry,
		server.WithRequestTimeout(cfg.Timeouts.Request),
		server.WithServerLogger(log))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", rpcServer)
	mux.Handle("/rpc", rpcServer)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"xrpldig"}`))
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			zap.String("addr", cfg.Server.ListenAddr),
			zap.String("network", cfg.Network))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
