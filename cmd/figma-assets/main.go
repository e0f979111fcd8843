package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	figmaassets "github.com/kataras/figma-assets"
	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/kataras/figma-assets/pkg/bridge"
	"github.com/kataras/figma-assets/pkg/figma"
	"github.com/kataras/figma-assets/pkg/storage"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = figma.Version

var (
	syncStore  string
	localStore string
	channelDSN string
	timeout    time.Duration
	noCopy     bool
	verbose    bool
)

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
	cyan  = color.New(color.FgCyan)
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "figma-assets",
		Short:         "Extract, upload and keep track of Figma image and SVG assets",
		Long:          "A tool to extract image and SVG assets from a Figma selection, upload images to your own endpoint, post-process icons and keep a history of saved assets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetLevel(logrus.WarnLevel)
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&syncStore, "sync-store", envOr("FIGMA_ASSETS_SYNC_STORE", defaultStore("sync")), "Storage for the upload configuration (memory, file://, sqlite://, redis://, s3://)")
	pf.StringVar(&localStore, "local-store", envOr("FIGMA_ASSETS_LOCAL_STORE", defaultStore("local")), "Storage for the saved asset list")
	pf.StringVar(&channelDSN, "channel", envOr("FIGMA_ASSETS_CHANNEL", "memory"), "Bridge channel: memory (in-process storage), redis://host:port#name or ws://host:port/bridge")
	pf.DurationVar(&timeout, "timeout", bridge.DefaultTimeout, "Bridge request timeout")
	pf.BoolVar(&noCopy, "no-copy", false, "Do not write results to the clipboard")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("figma-assets version %s\n", version)
		},
	}

	rootCmd.AddCommand(
		newExtractCmd(),
		newSVGCmd(),
		newAssetsCmd(),
		newConfigCmd(),
		newServeCmd(),
		versionCmd,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red.Printf("Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStore(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "memory"
	}
	return "file://" + filepath.Join(dir, "figma-assets", name)
}

// session is the design side of the bridge plus, for the in-process
// channel, the storage side serving it.
type session struct {
	app    *figmaassets.App
	client *bridge.Client
	close  func()
}

// openSession connects to the bridge. With the memory channel the storage
// side runs in this process on the configured stores.
func openSession(ctx context.Context, host figma.Host) (*session, error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	ch, err := bridge.Open(ctx, channelDSN)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { ch.Close() })

	if _, inProcess := ch.(*bridge.MemoryChannel); inProcess {
		srv, closeStores, err := newBridgeServer(ctx, ch)
		if err != nil {
			cleanup()
			return nil, err
		}
		closers = append(closers, closeStores)

		srvCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			srv.Run(srvCtx)
		}()
		closers = append(closers, func() { cancel(); <-done })
	}

	origin := "https://www.figma.com"
	if host != nil {
		origin = host.Origin()
	}

	client, err := bridge.NewClient(ctx, ch, origin, bridge.WithTimeout(timeout))
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, func() { client.Close() })

	opts := figmaassets.Options{
		Host:     host,
		Bridge:   client,
		Notifier: cliNotifier{},
		Logger:   &cliLogger{},
	}
	if !noCopy {
		opts.Clipboard = systemClipboard{}
	}

	app, err := figmaassets.New(opts)
	if err != nil {
		cleanup()
		return nil, err
	}

	if _, inProcess := ch.(*bridge.MemoryChannel); inProcess {
		if err := waitForServer(ctx, client); err != nil {
			cleanup()
			return nil, err
		}
	}

	return &session{app: app, client: client, close: cleanup}, nil
}

// waitForServer blocks until the in-process server has subscribed.
func waitForServer(ctx context.Context, client *bridge.Client) error {
	deadline := time.Now().Add(timeout)
	for {
		probeCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		_, err := client.GetUploadConfig(probeCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return fmt.Errorf("bridge server did not start: %w", err)
		}
	}
}

func newBridgeServer(ctx context.Context, ch bridge.Channel) (*bridge.Server, func(), error) {
	configs, repo, closeStores, err := openStores(ctx)
	if err != nil {
		return nil, nil, err
	}
	return bridge.NewServer(ch, configs, repo), closeStores, nil
}

func openStores(ctx context.Context) (*assets.ConfigStore, *assets.Repository, func(), error) {
	syncArea, err := storage.Open(ctx, syncStore)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sync store: %w", err)
	}
	localArea, err := storage.Open(ctx, localStore)
	if err != nil {
		syncArea.Close()
		return nil, nil, nil, fmt.Errorf("open local store: %w", err)
	}

	closeStores := func() {
		localArea.Close()
		syncArea.Close()
	}
	return assets.NewConfigStore(syncArea), assets.NewRepository(localArea), closeStores, nil
}

// cliLogger implements figmaassets.Logger with colored terminal output.
type cliLogger struct{}

func (l *cliLogger) Infof(format string, args ...any) {
	color.New(color.FgYellow).Printf(format+"\n", args...)
}

func (l *cliLogger) Warnf(format string, args ...any) {
	color.New(color.FgYellow).Printf("⚠ "+format+"\n", args...)
}

func (l *cliLogger) Errorf(format string, args ...any) {
	if verbose {
		color.New(color.FgRed).Printf("✗ "+format+"\n", args...)
	}
}

// cliNotifier implements figmaassets.Notifier.
type cliNotifier struct{}

func (cliNotifier) Success(message string) { green.Printf("✓ %s\n", message) }
func (cliNotifier) Error(message string)   { red.Printf("✗ %s\n", message) }

// systemClipboard implements figmaassets.Clipboard on the OS clipboard.
type systemClipboard struct{}

func (systemClipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}
