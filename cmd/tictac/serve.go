package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/tui-tictac/internal/config"
	"github.com/vovakirdan/tui-tictac/internal/platform/tui"
	"github.com/vovakirdan/tui-tictac/internal/remote"
)

var (
	flagHTTPAddr string
	flagSSHAddr  string
	flagHostKey  string
	flagNoSSH    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the shared session store and SSH server",
	Long: `Serve the session store to remote players over a websocket and
let people play over SSH. A janitor reclaims stale sessions in the background.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.tictac/host_key

Examples:
  tictac serve                        # Store on :8080, SSH on :23234
  tictac serve --http :9000 --no-ssh  # Store only
  tictac serve --store memory         # Keep sessions in memory

Players can connect with:
  ssh localhost -p 23234
  tictac play --store remote --url ws://localhost:8080/ws`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagHTTPAddr, "http", "", "Store websocket address (host:port)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (host:port)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().BoolVar(&flagNoSSH, "no-ssh", false, "Do not start the SSH server")
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := loadConfig()
	if flagHTTPAddr != "" {
		cfg.Server.HTTPAddr = flagHTTPAddr
	}
	if flagSSHAddr != "" {
		cfg.Server.SSHAddr = flagSSHAddr
	}
	if flagHostKey != "" {
		cfg.Server.HostKey = flagHostKey
	}
	if cfg.Store.Backend == config.BackendRemote {
		fmt.Fprintln(os.Stderr, "Error: serve needs a local store backend (sqlite or memory)")
		os.Exit(1)
	}

	logger := newLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer be.Close()

	coord := newCoordinator(be, cfg, logger)

	var sshServer *tui.SSHServer
	if !flagNoSSH {
		sshServer, err = tui.NewSSHServer(tui.SSHServerConfig{
			Address:     cfg.Server.SSHAddr,
			HostKeyPath: cfg.Server.HostKey,
			IdleTimeout: cfg.Server.IdleTimeout,
		}, coord, be.recorder, be.stats, logger.WithPrefix("ssh"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
			os.Exit(1)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return remote.NewServer(be.store, logger.WithPrefix("store")).ListenAndServe(ctx, cfg.Server.HTTPAddr)
	})
	if sshServer != nil {
		g.Go(func() error {
			return sshServer.ListenAndServe(ctx)
		})
	}
	g.Go(func() error {
		return coord.RunJanitor(ctx)
	})

	fmt.Printf("Serving sessions on %s (ws path /ws)\n", cfg.Server.HTTPAddr)
	if sshServer != nil {
		fmt.Printf("SSH play on %s\n", sshServer.Addr())
	}
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}
