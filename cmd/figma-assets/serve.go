package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kataras/figma-assets/pkg/bridge"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		listen    string
		origins   []string
		readLimit int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storage side of the bridge",
		Long: "Answer bridge requests from the configured stores. With --listen the bridge is a WebSocket hub " +
			"that browser pages and other figma-assets processes connect to; otherwise it serves the --channel (e.g. redis://).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if listen != "" {
				return serveHub(ctx, listen, origins, readLimit)
			}
			return serveChannel(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address of the WebSocket hub, e.g. :8787")
	cmd.Flags().StringSliceVar(&origins, "origin", []string{"www.figma.com", "localhost:*", "127.0.0.1:*"}, "Allowed browser origin host patterns")
	cmd.Flags().Int64Var(&readLimit, "read-limit", bridge.DefaultReadLimit, "Largest accepted WebSocket message in bytes (-1 for no limit)")
	return cmd
}

func serveChannel(ctx context.Context) error {
	ch, err := bridge.Open(ctx, channelDSN)
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, inProcess := ch.(*bridge.MemoryChannel); inProcess {
		return errors.New("serve needs --listen or a shared --channel such as redis://localhost:6379")
	}

	srv, closeStores, err := newBridgeServer(ctx, ch)
	if err != nil {
		return err
	}
	defer closeStores()
	srv.OnChange = logHistoryChange

	cyan.Printf("Serving bridge requests on %s\n", channelDSN)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveHub(ctx context.Context, addr string, origins []string, readLimit int64) error {
	hub := bridge.NewHub(origins, bridge.WithReadLimit(readLimit))
	defer hub.Close()

	srv, closeStores, err := newBridgeServer(ctx, hub)
	if err != nil {
		return err
	}
	defer closeStores()
	srv.OnChange = logHistoryChange

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           hub,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down bridge hub")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	cyan.Printf("Bridge hub listening on ws://%s/bridge\n", addr)
	return g.Wait()
}

func logHistoryChange() {
	logrus.WithField("at", time.Now().Format(time.TimeOnly)).Info("Saved asset history changed")
}
