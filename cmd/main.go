package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/composite"
	"github.com/brettbedarf/workspacefs/config"
	"github.com/brettbedarf/workspacefs/fusemount"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/localdir"
	"github.com/brettbedarf/workspacefs/persist"
	"github.com/brettbedarf/workspacefs/readonly"
	"github.com/brettbedarf/workspacefs/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

type pair struct{ key, value string }

type options struct {
	configPath  string
	override    config.ConfigOverride
	locals      []pair
	manifests   []pair
	metricsAddr string
	umount      bool
	mountpoint  string
}

// parsePair splits "key=value"; both sides must be present
func parsePair(s string) (pair, error) {
	key, value, ok := strings.Cut(s, "=")
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return pair{}, fmt.Errorf("expected name=path, got %q", s)
	}
	return pair{key, value}, nil
}

func parseFlags(args []string) (*options, error) {
	var (
		opts      options
		verbose   int
		stateDir  string
		homeName  string
		locals    []string
		manifests []string
	)
	flags := pflag.NewFlagSet("workspacefs", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.StringVar(&stateDir, "state-dir", "", "Directory to save workspaces in (default: memory only)")
	flags.StringVar(&homeName, "home", "", "Display name of the home workspace when it is first created")
	flags.StringArrayVar(&locals, "local", nil, "Mount a local directory as name=path (repeatable)")
	flags.StringArrayVar(&manifests, "manifest", nil, "Mount a read-only manifest as type=path, type one of library, docs, book, examples (repeatable)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolVarP(&opts.umount, "umount", "u", false,
		"Unmount the mountpoint first if needed. Useful for debuggers that don't exit properly.")
	flags.IntVarP(&verbose, "verbose", "v", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if flags.Changed("verbose") {
		opts.override.LogLvl = &verbose
	}
	if flags.Changed("state-dir") {
		opts.override.StateDir = &stateDir
	}
	if flags.Changed("home") {
		opts.override.HomeName = &homeName
	}
	for _, s := range locals {
		p, err := parsePair(s)
		if err != nil {
			return nil, fmt.Errorf("--local: %w", err)
		}
		opts.locals = append(opts.locals, p)
	}
	for _, s := range manifests {
		p, err := parsePair(s)
		if err != nil {
			return nil, fmt.Errorf("--manifest: %w", err)
		}
		if !workspace.Type(p.key).ReadOnly() {
			return nil, fmt.Errorf("--manifest: %q is not a read-only workspace type", p.key)
		}
		opts.manifests = append(opts.manifests, p)
	}
	opts.mountpoint = flags.Arg(0)
	return &opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openSlot(cfg *config.Config) (persist.Slot, error) {
	if cfg.StateDir == "" {
		return persist.NewMemorySlots(), nil
	}
	return persist.NewFileSlots(cfg.StateDir, cfg.CompressState)
}

func run(opts *options, stdout io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.Merge(&opts.override)

	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	logger.Info().Str("stateDir", cfg.StateDir).Str("mnt", opts.mountpoint).Msg("workspacefs initializing")

	slot, err := openSlot(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	ns := composite.New(composite.WithMetrics(composite.NewMetrics(reg)))
	registry := workspace.New(slot,
		workspace.WithComposite(ns),
		workspace.WithHomeName(cfg.HomeName),
		workspace.WithDebounce(cfg.DebounceWindow),
		workspace.WithFlushDelay(cfg.LocalFlushDelay),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// built-in mounts take their well-known paths before saved workspaces load
	for _, m := range opts.manifests {
		manifest, err := readonly.LoadManifest(m.value)
		if err != nil {
			return err
		}
		store, err := readonly.FromManifest(manifest)
		if err != nil {
			return err
		}
		if _, err := registry.RegisterReadOnly(workspace.Type(m.key), manifest.Name, store); err != nil {
			return err
		}
	}
	if err := registry.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to save workspaces")
		}
	}()

	for _, l := range opts.locals {
		if err := attachLocal(ctx, registry, l); err != nil {
			return err
		}
	}

	if opts.metricsAddr != "" {
		srv := &http.Server{Addr: opts.metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", opts.metricsAddr).Msg("Metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	if opts.mountpoint == "" {
		printTree(stdout, ns.Tree(), "")
		return nil
	}
	if opts.umount {
		cmd := exec.Command("fusermount", "-u", opts.mountpoint)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	srv, err := fusemount.Mount(opts.mountpoint, ns, cfg.MountOptions)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		logger.Info().Msg("Received signal, unmounting filesystem")
		if err := srv.Unmount(); err != nil {
			logger.Error().Err(err).Msg("Failed to unmount filesystem")
		}
	}()
	srv.Wait()
	logger.Info().Msg("Filesystem unmounted")
	return nil
}

// attachLocal reconnects the saved local workspace named l.key to l.value,
// or adds it when there is none
func attachLocal(ctx context.Context, registry *workspace.Registry, l pair) error {
	logger := util.GetLogger("main")

	h, err := localdir.NewOSHandle(l.value)
	if err != nil {
		return err
	}
	for _, ws := range registry.List() {
		if ws.Type == workspace.TypeLocal && ws.Name == l.key {
			logger.Debug().Str("name", l.key).Str("dir", l.value).Msg("Reconnecting saved workspace")
			return registry.Reconnect(ctx, ws.ID, h)
		}
	}
	_, err = registry.CreateLocal(ctx, l.key, h)
	return err
}

// printTree writes one line per node, folders marked with a trailing slash
func printTree(w io.Writer, nodes []*workspacefs.TreeNode, indent string) {
	for _, n := range nodes {
		line := indent + n.Name
		if n.IsDir() {
			line += "/"
		}
		var flags []string
		if n.IsWorkspace {
			flags = append(flags, n.Path)
		}
		if n.IsReadOnly {
			flags = append(flags, "read-only")
		}
		if n.IsDisconnected {
			flags = append(flags, "disconnected")
		}
		if len(flags) > 0 {
			line += " (" + strings.Join(flags, ", ") + ")"
		}
		fmt.Fprintln(w, line)
		printTree(w, n.Children, indent+"  ")
	}
}
