package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ovnxlate/ovnxlate/internal/config"
	"github.com/ovnxlate/ovnxlate/internal/control"
	"github.com/ovnxlate/ovnxlate/internal/election"
	"github.com/ovnxlate/ovnxlate/internal/engine"
	"github.com/ovnxlate/ovnxlate/internal/ovsdb"
	"github.com/ovnxlate/ovnxlate/internal/xlog"
)

// version is set by the release build's -ldflags; "dev" otherwise.
var version = "dev"

var (
	nbFlag      string
	sbFlag      string
	unixctlFlag string
	pidfileFlag string
	configFlag  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ovn-xlated",
		Short: "Translates OVN northbound intent into southbound logical flows",
		Long: `ovn-xlated reads the OVN_Northbound database, computes the logical
flows, multicast groups, and port bindings it implies, and writes the result
to OVN_Southbound (spec.md §1).

  ovn-xlated run                     # run the reconciliation loop
  ovn-xlated version                 # print version information`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reconciliation loop until terminated",
		RunE:  runDaemon,
	}
	runCmd.Flags().StringVar(&configFlag, "config", "", "path to YAML config file")
	runCmd.Flags().StringVar(&nbFlag, "nb", "", "northbound database endpoint (overrides config)")
	runCmd.Flags().StringVar(&sbFlag, "sb", "", "southbound database endpoint (overrides config)")
	runCmd.Flags().StringVar(&unixctlFlag, "unixctl", "", "control socket path (overrides config)")
	runCmd.Flags().StringVar(&pidfileFlag, "pidfile", "", "write the daemon's pid to this path")

	rootCmd.AddCommand(runCmd, &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ovn-xlated %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if nbFlag != "" {
		cfg.NBConnection = nbFlag
	}
	if sbFlag != "" {
		cfg.SBConnection = sbFlag
	}
	if unixctlFlag != "" {
		cfg.UnixCtl = unixctlFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := xlog.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if pidfileFlag != "" {
		if err := os.WriteFile(pidfileFlag, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("writing pidfile: %w", err)
		}
		defer os.Remove(pidfileFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := ovsdb.Dial(ctx, cfg.NBConnection, cfg.SBConnection)
	if err != nil {
		return fmt.Errorf("connecting to OVN databases: %w", err)
	}
	defer db.Close()

	if err := os.Remove(cfg.UnixCtl); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing stale control socket: %w", err)
	}
	ln, err := net.Listen("unix", cfg.UnixCtl)
	if err != nil {
		return fmt.Errorf("listening on control socket: %w", err)
	}
	defer ln.Close()

	locker, err := newFileLocker(cfg.UnixCtl + ".lock")
	if err != nil {
		return fmt.Errorf("opening leader lock file: %w", err)
	}
	defer locker.close()

	pauser := election.New(locker, "ovn-xlated")
	ctl := control.NewServer(ln, pauser)
	go func() {
		if err := ctl.Serve(); err != nil {
			xlog.WithField("error", err).Debug("control socket stopped accepting connections")
		}
	}()
	defer ctl.Close()

	eng := engine.New(cfg, db, pauser, ctl)

	xlog.WithFields(map[string]interface{}{
		"nb": cfg.NBConnection, "sb": cfg.SBConnection, "unixctl": cfg.UnixCtl,
	}).Info("ovn-xlated starting")

	return eng.Run(ctx)
}
