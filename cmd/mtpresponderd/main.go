// Command mtpresponderd bridges a host filesystem subtree to a USB host
// speaking MTP, using named pipes as a stand-in transport for real bulk
// endpoints.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/pkg"
	"github.com/ardnew/mtpresponder/responder"
	"github.com/ardnew/mtpresponder/storage"
	"github.com/ardnew/mtpresponder/transport/fifo"
)

var (
	fifoDir       string
	storageRoots  []string
	manufacturer  string
	model         string
	serial        string
	deviceVersion string
	friendlyName  string
	metricsAddr   string
	verbose       bool
	jsonLog       bool
	watch         bool
)

var rootCmd = &cobra.Command{
	Use:           "mtpresponderd",
	Short:         "Expose a host filesystem subtree to a USB host as an MTP object store",
	Long:          "mtpresponderd runs the MTP transaction engine over a named-pipe transport, serving one or more directory trees as browsable storages.",
	RunE:          runDaemon,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&fifoDir, "fifo-dir", "", "directory of named pipes bridging the transport (required)")
	flags.StringArrayVar(&storageRoots, "root", nil, "mount_path[:display_name[:hidden]] storage root to expose (repeatable)")
	flags.StringVar(&manufacturer, "manufacturer", "mtpresponder", "reported device manufacturer")
	flags.StringVar(&model, "model", "Generic MTP Responder", "reported device model")
	flags.StringVar(&serial, "serial", "", "reported device serial number (random if empty)")
	flags.StringVar(&deviceVersion, "device-version", "1.0", "reported device firmware version")
	flags.StringVar(&friendlyName, "friendly-name", "", "DEVICE_FRIENDLY_NAME device property (defaults to --model)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&jsonLog, "json", false, "log in JSON instead of text")
	flags.BoolVar(&watch, "watch", true, "push filesystem changes into the object database via fsnotify")
	rootCmd.MarkFlagRequired("fifo-dir")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	if len(storageRoots) == 0 {
		return fmt.Errorf("at least one --root is required")
	}

	db := objectdb.NewDatabase()
	registry := storage.NewRegistry(db)

	watchers, err := mountRoots(db, registry)
	if err != nil {
		return err
	}
	defer func() {
		for _, w := range watchers {
			w.Close()
		}
	}()

	metrics, stopMetrics := startMetrics()
	if stopMetrics != nil {
		defer stopMetrics()
	}

	transport, err := fifo.New(fifoDir)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	defer transport.Close()

	engine := responder.NewEngine(mtp.NewCodec(), transport, db, registry, responder.Config{
		Manufacturer:  manufacturer,
		Model:         model,
		DeviceVersion: deviceVersion,
		Serial:        serial,
		FriendlyName:  friendlyName,
	}, metrics)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	watchShutdown(cancel)

	pkg.LogInfo(pkg.ComponentEngine, "mtp responder starting", "fifoDir", fifoDir, "storages", len(storageRoots))
	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("engine run: %w", err)
	}
	pkg.LogInfo(pkg.ComponentEngine, "mtp responder stopped")
	return nil
}

// mountRoots registers every --root with the registry, probing free
// space once up front, and starts a fsnotify Watcher per root unless
// --watch=false.
func mountRoots(db *objectdb.Database, registry *storage.Registry) ([]*storage.Watcher, error) {
	var watchers []*storage.Watcher
	for i, spec := range storageRoots {
		mountPath, displayName, hidden := parseRootSpec(spec)

		desc := storage.Descriptor{
			ID:               mtp.StorageID(0x00010001 + uint32(i)),
			Type:             mtp.StorageTypeFixedRAM,
			FilesystemType:   mtp.FSTypeGenericHierarchical,
			AccessCapability: mtp.AccessReadWrite,
			Description:      displayName,
			MountPath:        mountPath,
		}
		if err := desc.Refresh(); err != nil {
			pkg.LogWarn(pkg.ComponentStorage, "initial capacity probe failed", "path", mountPath, "err", err)
		}
		registry.Add(desc, displayName, hidden)

		if !watch {
			continue
		}
		w, err := storage.NewWatcher(db, mountPath)
		if err != nil {
			pkg.LogWarn(pkg.ComponentStorage, "filesystem watch disabled", "path", mountPath, "err", err)
			continue
		}
		go w.Run()
		watchers = append(watchers, w)
	}
	return watchers, nil
}

// parseRootSpec splits a --root value of the form
// path[:display_name[:hidden]].
func parseRootSpec(spec string) (mountPath, displayName string, hidden bool) {
	parts := strings.SplitN(spec, ":", 3)
	mountPath = parts[0]
	displayName = filepath.Base(mountPath)
	if len(parts) > 1 && parts[1] != "" {
		displayName = parts[1]
	}
	if len(parts) > 2 {
		hidden, _ = strconv.ParseBool(parts[2])
	}
	return mountPath, displayName, hidden
}

// startMetrics serves Prometheus metrics on metricsAddr when set,
// returning a Metrics instance bound to a private registry and a
// shutdown func, or (nil, nil) when disabled (spec §4: exposed via
// promhttp.Handler from the daemon, not the library).
func startMetrics() (*responder.Metrics, func()) {
	if metricsAddr == "" {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	metrics := responder.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			pkg.LogWarn(pkg.ComponentEngine, "metrics server stopped", "err", err)
		}
	}()
	pkg.LogInfo(pkg.ComponentEngine, "metrics listening", "addr", metricsAddr)
	return metrics, func() { srv.Close() }
}

// watchShutdown cancels the engine's context on SIGINT/SIGTERM, the
// shutdown-button replacement for the teacher's raw running bool.
func watchShutdown(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		pkg.LogInfo(pkg.ComponentEngine, "shutdown signal received", "signal", sig.String())
		cancel()
	}()
}
