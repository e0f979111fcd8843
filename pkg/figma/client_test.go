package figma

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const nodesBody = `{
  "name": "Icons",
  "nodes": {
    "1:2": {"document": {"id": "1:2", "name": "Toolbar", "type": "FRAME", "children": [
      {"id": "1:3", "name": "Logo", "type": "VECTOR", "exportSettings": [{"format": "SVG"}]},
      {"id": "1:4", "name": "Label", "type": "TEXT"}
    ]}}
  }
}`

func newTestServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()

	var nodeCalls int32
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/files/KEY/nodes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Figma-Token") != "token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		// First call fails to exercise the retry loop.
		if atomic.AddInt32(&nodeCalls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, nodesBody)
	})
	mux.HandleFunc("/images/KEY", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("ids")
		format := r.URL.Query().Get("format")
		if format == "png" && r.URL.Query().Get("scale") != "3" {
			http.Error(w, "bad scale", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"images": {%q: %q}}`, id, srv.URL+"/download/"+format)
	})
	mux.HandleFunc("/download/png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/download/svg", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<svg width="16" height="16"></svg>`)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &nodeCalls
}

func TestRESTHost(t *testing.T) {
	srv, nodeCalls := newTestServer(t)
	client := NewClient("token").SetBaseURL(srv.URL).SetBackoff(time.Millisecond)

	host, err := NewRESTHost(client, "https://www.figma.com/design/KEY/Icons?node-id=1-2", nil)
	if err != nil {
		t.Fatalf("NewRESTHost() error = %v", err)
	}
	if host.Origin() != "https://www.figma.com" {
		t.Errorf("Origin() = %q", host.Origin())
	}

	ctx := context.Background()
	roots, err := host.Selection(ctx)
	if err != nil {
		t.Fatalf("Selection() error = %v", err)
	}
	if got := atomic.LoadInt32(nodeCalls); got != 2 {
		t.Errorf("expected one retry, got %d calls", got)
	}
	if len(roots) != 1 || roots[0].ID != "1:2" {
		t.Fatalf("Selection() = %+v", roots)
	}

	logo := &roots[0].Children[0]
	if !logo.IsAsset {
		t.Error("node with export settings should be normalized to an asset")
	}
	if roots[0].Children[1].IsAsset {
		t.Error("text node without export settings must not be an asset")
	}

	png, err := host.ExportPNG(ctx, logo, 3)
	if err != nil {
		t.Fatalf("ExportPNG() error = %v", err)
	}
	if string(png[1:]) != "PNG" {
		t.Errorf("ExportPNG() = %v", png)
	}

	svg, err := host.ExportSVG(ctx, logo)
	if err != nil {
		t.Fatalf("ExportSVG() error = %v", err)
	}
	if svg != `<svg width="16" height="16"></svg>` {
		t.Errorf("ExportSVG() = %q", svg)
	}
}

func TestRESTHost_EmptySelection(t *testing.T) {
	host, err := NewRESTHost(NewClient("token"), "https://www.figma.com/design/KEY/Icons", nil)
	if err != nil {
		t.Fatalf("NewRESTHost() error = %v", err)
	}
	if _, err := host.Selection(context.Background()); err != ErrEmptySelection {
		t.Errorf("Selection() error = %v, want ErrEmptySelection", err)
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("token").SetBaseURL(srv.URL).SetBackoff(time.Millisecond)
	if _, err := client.GetFile(context.Background(), "KEY"); err == nil {
		t.Fatal("GetFile() expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt on 404, got %d", calls)
	}
}

func TestOAuthClient(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/images/KEY", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer oauth-token" || r.Header.Get("X-Figma-Token") != "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, `{"images": {"1:2": %q}}`, srv.URL+"/download/svg")
	})
	mux.HandleFunc("/download/svg", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			http.Error(w, "credentials sent to download URL", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "<svg/>")
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "oauth-token"})
	client := NewOAuthClient(ts).SetBaseURL(srv.URL).SetBackoff(time.Millisecond)

	host, err := NewRESTHost(client, "https://www.figma.com/design/KEY/Icons?node-id=1-2", nil)
	if err != nil {
		t.Fatalf("NewRESTHost() error = %v", err)
	}
	svg, err := host.ExportSVG(context.Background(), &Node{ID: "1:2"})
	if err != nil {
		t.Fatalf("ExportSVG() error = %v", err)
	}
	if svg != "<svg/>" {
		t.Errorf("ExportSVG() = %q", svg)
	}
}

func TestClient_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "Icons", "document": {"id": "0:0", "type": "DOCUMENT"}}`)
	}))
	defer srv.Close()

	client := NewClient("token").SetBaseURL(srv.URL).SetRateLimit(40*time.Millisecond, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.GetFile(context.Background(), "KEY"); err != nil {
			t.Fatalf("GetFile() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 requests at one per 40ms took %v, want at least 80ms", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.GetFile(ctx, "KEY"); err == nil {
		t.Error("GetFile(cancelled) expected error")
	}
}
