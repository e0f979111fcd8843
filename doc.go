// Package figmaassets extracts image and SVG assets from a Figma selection,
// uploads images to a user-configured endpoint, sends icons to an SVG
// post-processing endpoint and keeps a history of saved assets.
//
// The CLI lives in cmd/figma-assets; this root package exposes the same
// actions as a Go API.
//
// # Import
//
// The module path contains a hyphen but Go package names cannot, so the
// package is named figmaassets:
//
//	import "github.com/kataras/figma-assets" // package figmaassets
//
// # Two sides
//
// Work is split between the side that reads the design ([figma.Host]) and
// the side that owns storage ([bridge.Server] over the [storage] areas).
// They talk over a [bridge.Channel]: in-process, Redis pub/sub or a
// WebSocket hub. An [App] sits on the design side and reaches storage only
// through a [bridge.Client].
//
// # Quick start
//
//	ch := bridge.NewMemoryChannel()
//	srv := bridge.NewServer(ch,
//	    assets.NewConfigStore(storage.NewMemory()),
//	    assets.NewRepository(storage.NewMemory()))
//	go srv.Run(ctx)
//
//	host, _ := figma.NewRESTHost(figma.NewClient(os.Getenv("FIGMA_TOKEN")),
//	    "https://www.figma.com/design/ABC123/Icons?node-id=1-2", nil)
//	client, _ := bridge.NewClient(ctx, ch, host.Origin())
//
//	app, _ := figmaassets.New(figmaassets.Options{Host: host, Bridge: client})
//	result, err := app.Extract(ctx)
//
// # Logging
//
// Pass a [Logger] implementation in [Options.Logger] to receive progress
// messages. A nil Logger silences all output. Storage and bridge internals
// log through logrus.
//
// # Asset rules
//
// A node is an image when it is marked exportable and has an IMAGE fill, an
// SVG when it is marked exportable otherwise, and component instances are
// always exported as SVG. Images are rendered as PNG at 3x. Collected nodes
// are never expanded, and a node that fails to export is skipped without
// failing the rest.
package figmaassets
