package figmaassets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/kataras/figma-assets/pkg/bridge"
	"github.com/kataras/figma-assets/pkg/extractor"
	"github.com/kataras/figma-assets/pkg/figma"
	"github.com/kataras/figma-assets/pkg/imager"
	"github.com/kataras/figma-assets/pkg/upload"
)

// Logger receives progress messages. A nil Logger means silent operation.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Notifier shows short, user-facing outcome messages.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Clipboard receives the text produced by an action: an uploaded image URL,
// an icon snippet, SVG markup.
type Clipboard interface {
	WriteText(text string) error
}

// Options configures an App. Bridge is required. Without a Host only the
// storage and SVG processing actions are available. The rest default to
// working or silent implementations.
type Options struct {
	Host         figma.Host
	Bridge       *bridge.Client
	Uploader     *upload.Uploader
	SVGProcessor *upload.SVGProcessor
	Clipboard    Clipboard // nil = clipboard writes are skipped
	Notifier     Notifier  // nil = no notifications
	Logger       Logger    // nil = no logging
}

// App runs the user-facing asset actions against a design host and the
// storage bridge.
type App struct {
	opts Options

	mu       sync.Mutex
	watchers []*assets.Watcher
}

// ErrNoBridge is returned by New when Options.Bridge is nil.
var ErrNoBridge = errors.New("figmaassets: bridge client is required")

// New returns an App for opts.
func New(opts Options) (*App, error) {
	if opts.Bridge == nil {
		return nil, ErrNoBridge
	}
	if opts.Uploader == nil {
		opts.Uploader = upload.NewUploader(nil)
	}
	if opts.SVGProcessor == nil {
		opts.SVGProcessor = upload.NewSVGProcessor(nil)
	}
	return &App{opts: opts}, nil
}

func (a *App) logInfo(f string, args ...any) {
	if a.opts.Logger != nil {
		a.opts.Logger.Infof(f, args...)
	}
}

func (a *App) logWarn(f string, args ...any) {
	if a.opts.Logger != nil {
		a.opts.Logger.Warnf(f, args...)
	}
}

func (a *App) logError(f string, args ...any) {
	if a.opts.Logger != nil {
		a.opts.Logger.Errorf(f, args...)
	}
}

func (a *App) notifySuccess(msg string) {
	if a.opts.Notifier != nil {
		a.opts.Notifier.Success(msg)
	}
}

// fail notifies the user of err and returns it.
func (a *App) fail(action string, err error) error {
	a.logError("%s: %v", action, err)
	if a.opts.Notifier != nil {
		a.opts.Notifier.Error(fmt.Sprintf("%s: %v", action, err))
	}
	return err
}

func (a *App) copyText(text string) error {
	if a.opts.Clipboard == nil {
		return nil
	}
	return a.opts.Clipboard.WriteText(text)
}

func (a *App) refreshWatchers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, w := range a.watchers {
		w.Refresh()
	}
}

// Extract classifies the current selection and exports its assets. Failed
// nodes are logged and left out of the result.
func (a *App) Extract(ctx context.Context) (*extractor.Result, error) {
	a.logInfo("Reading selection...")
	result, err := extractor.ExtractSelection(ctx, a.opts.Host)
	if err != nil {
		return nil, a.fail("Extraction failed", err)
	}

	for _, err := range result.Errors {
		a.logWarn("%v", err)
	}
	a.logInfo("Visited %d node(s): %d image(s), %d SVG(s)", result.Visited, len(result.Images), len(result.SVGs))
	return result, nil
}

// ExportSelection exports every selected root node both as a 3x PNG and as
// SVG markup, without classification. A node whose PNG export fails is
// skipped; one whose SVG export fails keeps its PNG.
func (a *App) ExportSelection(ctx context.Context) (*extractor.Result, error) {
	if a.opts.Host == nil {
		return nil, a.fail("Export failed", extractor.ErrNoHost)
	}
	selection, err := a.opts.Host.Selection(ctx)
	if err != nil {
		return nil, a.fail("Export failed", err)
	}

	result := &extractor.Result{Visited: len(selection)}
	for _, node := range selection {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		png, err := a.opts.Host.ExportPNG(ctx, node, extractor.ExportScale)
		if err != nil {
			a.logWarn("Skipping %s: %v", node.ID, err)
			continue
		}
		result.Images = append(result.Images, extractor.ImageAsset{Node: node, Image: png})

		svg, err := a.opts.Host.ExportSVG(ctx, node)
		if err != nil {
			a.logWarn("Skipping SVG of %s: %v", node.ID, err)
			continue
		}
		result.SVGs = append(result.SVGs, extractor.SVGAsset{Node: node, SVG: svg})
	}
	return result, nil
}

// UploadImage uploads an extracted image with the stored upload
// configuration, records it as a saved asset and copies its URL. Nothing is
// saved when the upload fails.
func (a *App) UploadImage(ctx context.Context, img extractor.ImageAsset, progress upload.ProgressFunc) (string, error) {
	cfg, err := a.opts.Bridge.GetUploadConfig(ctx)
	if err != nil {
		return "", a.fail("Upload failed", fmt.Errorf("load upload config: %w", err))
	}

	a.logInfo("Uploading %s (%d bytes) to %s", img.Node.Name, len(img.Image), cfg.UploadURL)
	url, err := a.opts.Uploader.Upload(ctx, img.Image, cfg, progress)
	if err != nil {
		return "", a.fail("Upload failed", err)
	}

	if err := a.opts.Bridge.SaveImage(ctx, img.Node, url); err != nil {
		return "", a.fail("Upload failed", fmt.Errorf("save uploaded image: %w", err))
	}
	a.refreshWatchers()

	if err := a.copyText(url); err != nil {
		a.logWarn("Copy to clipboard: %v", err)
	}
	a.notifySuccess("Uploaded, image URL copied")
	return url, nil
}

// FavoriteSVG exports the node as SVG and saves it.
func (a *App) FavoriteSVG(ctx context.Context, node *figma.Node) error {
	if a.opts.Host == nil {
		return a.fail("Save failed", extractor.ErrNoHost)
	}
	if err := a.opts.Bridge.SaveSVG(ctx, a.opts.Host, node); err != nil {
		return a.fail("Save failed", err)
	}
	a.refreshWatchers()
	a.notifySuccess("SVG saved")
	return nil
}

// ProcessSVG sends svg to the configured SVG action endpoint and copies the
// resulting usage snippet.
func (a *App) ProcessSVG(ctx context.Context, svg string, opts upload.Options) (string, error) {
	cfg, err := a.opts.Bridge.GetUploadConfig(ctx)
	if err != nil {
		return "", a.fail("SVG processing failed", fmt.Errorf("load upload config: %w", err))
	}

	snippet, err := a.opts.SVGProcessor.Process(ctx, cfg.SVGActionEndpoint, svg, opts)
	if err != nil {
		return "", a.fail("SVG processing failed", err)
	}

	if err := a.copyText(snippet); err != nil {
		a.logWarn("Copy to clipboard: %v", err)
	}
	a.notifySuccess("Processed, usage snippet copied")
	return snippet, nil
}

// CopyFormat selects what CopyAsset places on the clipboard.
type CopyFormat string

const (
	CopyValue   CopyFormat = "value"    // image URL or SVG markup
	CopyDataURL CopyFormat = "data-url" // SVG as a base64 data URL
)

// CopyAsset copies a saved asset to the clipboard and returns the copied text.
func (a *App) CopyAsset(ctx context.Context, id string, format CopyFormat) (string, error) {
	list, err := a.opts.Bridge.GetSavedAssets(ctx)
	if err != nil {
		return "", a.fail("Copy failed", err)
	}

	for _, asset := range list {
		if asset.ID != id {
			continue
		}

		var text string
		switch {
		case asset.Type == assets.TypeImage:
			text = asset.ImageURL
		case format == CopyDataURL:
			text = imager.SVGDataURL(asset.SVGString)
		default:
			text = asset.SVGString
		}

		if err := a.copyText(text); err != nil {
			return "", a.fail("Copy failed", err)
		}
		a.notifySuccess("Copied")
		return text, nil
	}

	return "", a.fail("Copy failed", fmt.Errorf("asset %s not found", id))
}

// SavedAssets returns the saved asset history.
func (a *App) SavedAssets(ctx context.Context) ([]assets.Asset, error) {
	return a.opts.Bridge.GetSavedAssets(ctx)
}

// DeleteAsset removes a saved asset.
func (a *App) DeleteAsset(ctx context.Context, id string) error {
	if err := a.opts.Bridge.DeleteAsset(ctx, id); err != nil {
		return a.fail("Delete failed", err)
	}
	a.refreshWatchers()
	a.notifySuccess("Deleted")
	return nil
}

// WatchAssets delivers the saved asset list now, every interval and after
// every save or delete made through a. It stops when ctx is done.
func (a *App) WatchAssets(ctx context.Context, interval time.Duration) <-chan assets.Snapshot {
	w := assets.NewWatcher(a.opts.Bridge.GetSavedAssets, interval)

	a.mu.Lock()
	a.watchers = append(a.watchers, w)
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		a.mu.Lock()
		defer a.mu.Unlock()
		for i, x := range a.watchers {
			if x == w {
				a.watchers = append(a.watchers[:i], a.watchers[i+1:]...)
				break
			}
		}
	}()

	return w.Watch(ctx)
}

// ParseNodeIDs parses a comma-separated list of node IDs, trimming
// whitespace and skipping empty entries.
func ParseNodeIDs(nodeIDsStr string) []string {
	parts := strings.Split(nodeIDsStr, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
