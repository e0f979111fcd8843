package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/kataras/figma-assets/pkg/figma"
	"github.com/kataras/figma-assets/pkg/storage"
)

// failingArea fails every operation.
type failingArea struct{}

func (failingArea) Get(context.Context, string, any) (bool, error) { return false, errors.New("disk full") }
func (failingArea) Set(context.Context, string, any) error         { return errors.New("disk full") }
func (failingArea) Remove(context.Context, string) error           { return errors.New("disk full") }
func (failingArea) Close() error                                   { return nil }

func startServer(t *testing.T, ch Channel, local storage.Area) *Server {
	t.Helper()
	return startServerWith(t, ch, assets.NewConfigStore(storage.NewMemory()), assets.NewRepository(local))
}

func startServerWith(t *testing.T, ch Channel, configs *assets.ConfigStore, repo *assets.Repository) *Server {
	t.Helper()

	srv := NewServer(ch, configs, repo)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Run subscribes asynchronously; wait until it answers.
	client := newClient(t, ch)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := client.GetUploadConfig(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
	}
	return srv
}

func newClient(t *testing.T, ch Channel, opts ...ClientOption) *Client {
	t.Helper()
	if len(opts) == 0 {
		opts = []ClientOption{WithTimeout(100 * time.Millisecond)}
	}
	c, err := NewClient(context.Background(), ch, "https://www.figma.com", opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBridge_RoundTrip(t *testing.T) {
	ch := NewMemoryChannel()
	defer ch.Close()

	changes := 0
	srv := startServer(t, ch, storage.NewMemory())
	srv.OnChange = func() { changes++ }

	client := newClient(t, ch, WithTimeout(2*time.Second))
	ctx := context.Background()

	cfg, err := client.GetUploadConfig(ctx)
	if err != nil {
		t.Fatalf("GetUploadConfig() error = %v", err)
	}
	if cfg.UploadURL != assets.DefaultUploadConfig().UploadURL {
		t.Errorf("GetUploadConfig() = %+v, want defaults", cfg)
	}

	list, err := client.GetSavedAssets(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("GetSavedAssets() = %v, %v; want empty", list, err)
	}

	node := &figma.Node{ID: "1:2", Name: "Logo"}
	if err := client.SaveImage(ctx, node, "https://cdn/logo.png"); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}
	if err := client.SaveImage(ctx, node, "https://cdn/logo-v2.png"); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}

	list, err = client.GetSavedAssets(ctx)
	if err != nil {
		t.Fatalf("GetSavedAssets() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("GetSavedAssets() len = %d, want 1 after upsert", len(list))
	}
	saved := list[0]
	if saved.ImageURL != "https://cdn/logo-v2.png" || saved.DesignURL != "https://www.figma.com" || saved.ID == "" {
		t.Errorf("saved asset = %+v", saved)
	}

	if err := client.DeleteAsset(ctx, "does-not-exist"); err != nil {
		t.Errorf("DeleteAsset(missing) error = %v", err)
	}
	if err := client.DeleteAsset(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteAsset() error = %v", err)
	}
	if list, _ = client.GetSavedAssets(ctx); len(list) != 0 {
		t.Errorf("GetSavedAssets() after delete = %+v", list)
	}
	if changes != 4 {
		t.Errorf("OnChange called %d times, want 4", changes)
	}
}

func TestBridge_SavedConfigRoundTrip(t *testing.T) {
	ch := NewMemoryChannel()
	defer ch.Close()

	configs := assets.NewConfigStore(storage.NewMemory())
	startServerWith(t, ch, configs, assets.NewRepository(storage.NewMemory()))

	ctx := context.Background()
	saved, err := configs.Save(ctx, assets.UploadConfig{
		UploadURL:      "  https://upload.example.com/api  ",
		UploadField:    " image\t",
		ImageFieldPath: ` ["data","url"] `,
		ImageURLPrefix: " https://cdn.example.com ",
		CustomFields: []assets.CustomField{
			{Key: " token ", Value: " abc ", Label: "Token"},
			{Key: "qquuid", Value: "", Type: assets.FieldUUID},
		},
		SVGActionEndpoint: " https://svg.example.com/action ",
	})
	if err != nil {
		t.Fatalf("ConfigStore.Save() error = %v", err)
	}

	want := assets.UploadConfig{
		UploadURL:      "https://upload.example.com/api",
		UploadField:    "image",
		ImageFieldPath: `["data","url"]`,
		ImageURLPrefix: "https://cdn.example.com",
		CustomFields: []assets.CustomField{
			{Key: "token", Value: "abc", Type: assets.FieldText, Label: "Token"},
			{Key: "qquuid", Value: "", Type: assets.FieldUUID},
		},
		SVGActionEndpoint: "https://svg.example.com/action",
	}
	if !reflect.DeepEqual(saved, want) {
		t.Fatalf("ConfigStore.Save() = %+v, want %+v", saved, want)
	}

	client := newClient(t, ch, WithTimeout(2*time.Second))
	got, err := client.GetUploadConfig(ctx)
	if err != nil {
		t.Fatalf("GetUploadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetUploadConfig() = %+v, want %+v", got, want)
	}
}

func TestBridge_StorageFailure(t *testing.T) {
	ch := NewMemoryChannel()
	defer ch.Close()

	srv := NewServer(ch, assets.NewConfigStore(storage.NewMemory()), assets.NewRepository(failingArea{}))
	reply, handled := srv.Handle(context.Background(), Envelope{
		Source:  SourceMainWorld,
		Type:    TypeSaveAsset,
		ID:      "r1",
		Payload: json.RawMessage(`{"nodeId":"1","type":"svg","svgString":"<svg/>"}`),
	})
	if !handled {
		t.Fatal("Handle() ignored a valid request")
	}

	var res MutationResult
	if err := json.Unmarshal(reply.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Success || !strings.Contains(reply.Error, "disk full") {
		t.Errorf("reply = %+v, result = %+v", reply, res)
	}
	if reply.Source != SourceIsolated || reply.ID != "r1" || reply.Type != TypeSaveAsset {
		t.Errorf("reply header = %+v", reply)
	}
}

func TestServer_IgnoresForeignEnvelopes(t *testing.T) {
	srv := NewServer(NewMemoryChannel(), assets.NewConfigStore(storage.NewMemory()), assets.NewRepository(storage.NewMemory()))

	for _, env := range []Envelope{
		{Source: SourceIsolated, Type: TypeGetSavedAssets, ID: "1"},
		{Source: SourceMainWorld, Type: "uploadImage", ID: "2"},
		{Type: TypeGetSavedAssets, ID: "3"},
	} {
		if _, handled := srv.Handle(context.Background(), env); handled {
			t.Errorf("Handle(%+v) should be ignored", env)
		}
	}
}

func TestClient_Timeout(t *testing.T) {
	ch := NewMemoryChannel()
	defer ch.Close()

	client := newClient(t, ch, WithTimeout(30*time.Millisecond))
	_, err := client.GetSavedAssets(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("GetSavedAssets() without a server error = %v, want ErrTimeout", err)
	}
}

func TestClient_CorrelatesConcurrentRequests(t *testing.T) {
	ch := NewMemoryChannel()
	defer ch.Close()

	// A responder that answers two deletes in reverse order, failing the
	// one for id "a".
	sub, err := ch.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	go func() {
		var reqs []Envelope
		for env := range sub.C() {
			if env.Source != SourceMainWorld {
				continue
			}
			reqs = append(reqs, env)
			if len(reqs) < 2 {
				continue
			}
			for i := len(reqs) - 1; i >= 0; i-- {
				var id string
				json.Unmarshal(reqs[i].Payload, &id)
				reply := Envelope{Source: SourceIsolated, Type: reqs[i].Type, ID: reqs[i].ID, Result: json.RawMessage(`{"success":true}`)}
				if id == "a" {
					reply.Result = json.RawMessage(`{"success":false}`)
				}
				ch.Publish(context.Background(), reply)
			}
			return
		}
	}()

	client := newClient(t, ch, WithTimeout(2*time.Second))

	var wg sync.WaitGroup
	errs := make(map[string]error)
	var mu sync.Mutex
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := client.DeleteAsset(context.Background(), id)
			mu.Lock()
			errs[id] = err
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if !errors.Is(errs["a"], ErrRemote) {
		t.Errorf("DeleteAsset(a) error = %v, want ErrRemote", errs["a"])
	}
	if errs["b"] != nil {
		t.Errorf("DeleteAsset(b) error = %v, want nil", errs["b"])
	}
}

func TestClient_RejectsInvalidAsset(t *testing.T) {
	ch := NewMemoryChannel()
	defer ch.Close()

	client := newClient(t, ch)
	err := client.SaveAsset(context.Background(), assets.Asset{NodeID: "1", Type: assets.TypeImage})
	if !errors.Is(err, assets.ErrInvalidAsset) {
		t.Errorf("SaveAsset(invalid) error = %v", err)
	}
}

type svgHost struct{ figma.Host }

func (svgHost) ExportSVG(context.Context, *figma.Node) (string, error) { return "<svg>icon</svg>", nil }

func TestClient_SaveSVG(t *testing.T) {
	ch := NewMemoryChannel()
	defer ch.Close()
	startServer(t, ch, storage.NewMemory())

	client := newClient(t, ch, WithTimeout(2*time.Second))
	if err := client.SaveSVG(context.Background(), svgHost{}, &figma.Node{ID: "9:9"}); err != nil {
		t.Fatalf("SaveSVG() error = %v", err)
	}
	list, err := client.GetSavedAssets(context.Background())
	if err != nil || len(list) != 1 || list[0].Type != assets.TypeSVG || list[0].SVGString != "<svg>icon</svg>" {
		t.Errorf("GetSavedAssets() = %+v, %v", list, err)
	}
}

func TestMemoryChannel(t *testing.T) {
	ch := NewMemoryChannel()
	ctx := context.Background()

	a, _ := ch.Subscribe(ctx)
	b, _ := ch.Subscribe(ctx)

	for i := 0; i < 100; i++ {
		ch.Publish(ctx, Envelope{ID: string(rune('0' + i%10))})
	}

	// b is never read from while a drains: publishing must not block.
	for i := 0; i < 100; i++ {
		select {
		case <-a.C():
		case <-time.After(time.Second):
			t.Fatalf("subscriber a stalled at %d", i)
		}
	}

	b.Close()
	if _, ok := <-b.C(); ok {
		// A pending envelope may still be in flight; the channel must close after it.
		for range b.C() {
		}
	}

	ch.Close()
	if err := ch.Publish(ctx, Envelope{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close() = %v, want ErrClosed", err)
	}
	if _, ok := <-a.C(); ok {
		for range a.C() {
		}
	}
}

func startHub(t *testing.T, opts ...WebSocketOption) string {
	t.Helper()

	hub := NewHub(nil, opts...)
	t.Cleanup(func() { hub.Close() })

	httpSrv := httptest.NewServer(hub)
	t.Cleanup(httpSrv.Close)

	startServer(t, hub, storage.NewMemory())
	return "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/bridge"
}

// largeSVG returns SVG markup of roughly size bytes.
func largeSVG(size int) string {
	const path = `<path d="M0 0h24v24H0z" fill="#111827"/>`
	return `<svg xmlns="http://www.w3.org/2000/svg">` + strings.Repeat(path, size/len(path)+1) + `</svg>`
}

func TestHub_WebSocket(t *testing.T) {
	wsURL := startHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	remote, err := DialWebSocket(ctx, wsURL)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer remote.Close()

	client := newClient(t, remote, WithTimeout(2*time.Second))
	if err := client.SaveAsset(ctx, assets.Asset{NodeID: "3:4", Type: assets.TypeSVG, SVGString: "<svg/>"}); err != nil {
		t.Fatalf("SaveAsset() over websocket error = %v", err)
	}
	list, err := client.GetSavedAssets(ctx)
	if err != nil || len(list) != 1 || list[0].NodeID != "3:4" {
		t.Errorf("GetSavedAssets() = %+v, %v", list, err)
	}
}

func TestHub_WebSocketLargeEnvelopes(t *testing.T) {
	wsURL := startHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	remote, err := DialWebSocket(ctx, wsURL)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer remote.Close()

	client := newClient(t, remote, WithTimeout(5*time.Second))
	svg := largeSVG(100 << 10)

	nodes := []string{"10:1", "10:2", "10:3", "10:4"}
	for _, node := range nodes {
		if err := client.SaveAsset(ctx, assets.Asset{NodeID: node, Type: assets.TypeSVG, SVGString: svg}); err != nil {
			t.Fatalf("SaveAsset(%s, %d bytes) error = %v", node, len(svg), err)
		}
	}

	list, err := client.GetSavedAssets(ctx)
	if err != nil {
		t.Fatalf("GetSavedAssets() error = %v", err)
	}
	if len(list) != len(nodes) {
		t.Fatalf("GetSavedAssets() returned %d assets, want %d", len(list), len(nodes))
	}
	for _, a := range list {
		if a.SVGString != svg {
			t.Errorf("asset %s: svg of %d bytes, want %d", a.NodeID, len(a.SVGString), len(svg))
		}
	}

	// The connection survives and keeps answering.
	if _, err := client.GetUploadConfig(ctx); err != nil {
		t.Errorf("GetUploadConfig() after large replies error = %v", err)
	}
}

func TestHub_ReadLimit(t *testing.T) {
	wsURL := startHub(t, WithReadLimit(1024))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	remote, err := DialWebSocket(ctx, wsURL)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer remote.Close()

	client := newClient(t, remote, WithTimeout(300*time.Millisecond))
	err = client.SaveAsset(ctx, assets.Asset{NodeID: "10:1", Type: assets.TypeSVG, SVGString: largeSVG(4096)})
	if err == nil {
		t.Fatal("SaveAsset() above the hub read limit expected error")
	}
}

func TestOpen(t *testing.T) {
	ch, err := Open(context.Background(), "memory")
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	ch.Close()

	if _, err := Open(context.Background(), "amqp://broker"); err == nil {
		t.Error("Open(amqp) expected error")
	}
}
