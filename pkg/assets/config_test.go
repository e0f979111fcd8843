package assets

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kataras/figma-assets/pkg/storage"
)

func TestConfigStore(t *testing.T) {
	ctx := context.Background()
	store := NewConfigStore(storage.NewMemory())

	cfg, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultUploadConfig()) {
		t.Errorf("Load() without a saved config = %+v, want defaults", cfg)
	}

	saved, err := store.Save(ctx, UploadConfig{
		UploadURL:      "  https://upload.example.com/api  ",
		UploadField:    " file ",
		ImageFieldPath: "data.url",
		CustomFields: []CustomField{
			{Key: " token ", Value: " abc ", Type: FieldText},
			{Key: "id", Type: FieldUUID},
		},
		SVGActionEndpoint: "https://svg.example.com/save",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.UploadURL != "https://upload.example.com/api" || saved.CustomFields[0].Key != "token" || saved.CustomFields[0].Value != "abc" {
		t.Errorf("Save() did not trim: %+v", saved)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, saved) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, saved)
	}
}

func TestConfigStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	area, err := storage.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem() error = %v", err)
	}
	store := NewConfigStore(area)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := DefaultUploadConfig()
			cfg.UploadField = fmt.Sprintf("file%d", i)
			if _, err := store.Save(ctx, cfg); err != nil {
				t.Errorf("Save(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.UploadURL != DefaultUploadConfig().UploadURL || len(got.UploadField) < len("file0") {
		t.Errorf("Load() after concurrent saves = %+v", got)
	}
}

func TestUploadConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     UploadConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultUploadConfig()},
		{name: "empty", cfg: UploadConfig{}},
		{name: "bad url", cfg: UploadConfig{UploadURL: "not a url", UploadField: "file"}, wantErr: true},
		{name: "url without field", cfg: UploadConfig{UploadURL: "https://x.io"}, wantErr: true},
		{name: "field without key", cfg: UploadConfig{CustomFields: []CustomField{{Value: "v", Type: FieldText}}}, wantErr: true},
		{name: "unknown field type", cfg: UploadConfig{CustomFields: []CustomField{{Key: "k", Type: "date"}}}, wantErr: true},
		{name: "bad svg endpoint", cfg: UploadConfig{SVGActionEndpoint: "nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := (UploadConfig{UploadField: "file"}).ReadyForUpload(); !errors.Is(err, ErrUploadNotConfigured) {
		t.Errorf("ReadyForUpload() = %v", err)
	}
}

func TestParseConfigImport(t *testing.T) {
	current := DefaultUploadConfig()

	t.Run("json", func(t *testing.T) {
		got, err := ParseConfigImport(`{"uploadUrl":"https://a.io/up","uploadField":"image","imageFieldPath":"url"}`, current)
		if err != nil {
			t.Fatalf("ParseConfigImport() error = %v", err)
		}
		if got.UploadURL != "https://a.io/up" || got.UploadField != "image" || got.ImageURLPrefix != "" {
			t.Errorf("JSON import must replace the whole config, got %+v", got)
		}
	})

	t.Run("form data lines", func(t *testing.T) {
		text := "qquuid: 3F2504E0-4F89-11D3-9A0C-0305E82C3301\r\n" +
			"qqfilename: logo.png\n" +
			"qqtotalfilesize: 2048\n" +
			"file: (binary)\n" +
			"no separator here\n" +
			"empty:   \n" +
			"folder: icons:v2\n"

		got, err := ParseConfigImport(text, current)
		if err != nil {
			t.Fatalf("ParseConfigImport() error = %v", err)
		}
		if got.UploadURL != current.UploadURL {
			t.Errorf("line import must keep the rest of the config")
		}

		want := []CustomField{
			{Key: "qquuid", Value: "3F2504E0-4F89-11D3-9A0C-0305E82C3301", Type: FieldUUID, Label: "Custom field 1"},
			{Key: "qqfilename", Value: "logo.png", Type: FieldFilename, Label: "Custom field 2"},
			{Key: "qqtotalfilesize", Value: "2048", Type: FieldFileSize, Label: "Custom field 3"},
			{Key: "folder", Value: "icons:v2", Type: FieldText, Label: "Custom field 7"},
		}
		if !reflect.DeepEqual(got.CustomFields, want) {
			t.Errorf("CustomFields =\n%+v\nwant\n%+v", got.CustomFields, want)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		for _, text := range []string{"", "   ", "just text", "file: x"} {
			got, err := ParseConfigImport(text, current)
			if !errors.Is(err, ErrNothingToImport) {
				t.Errorf("ParseConfigImport(%q) error = %v", text, err)
			}
			if !reflect.DeepEqual(got, current) {
				t.Errorf("ParseConfigImport(%q) changed the config", text)
			}
		}
	})
}

func TestWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	list := func(ctx context.Context) ([]Asset, error) {
		calls++
		return make([]Asset, calls), nil
	}

	w := NewWatcher(list, time.Hour)
	updates := w.Watch(ctx)

	snap := <-updates
	if snap.Err != nil || len(snap.Assets) != 1 {
		t.Fatalf("first snapshot = %+v", snap)
	}

	w.Refresh()
	w.Refresh() // coalesced
	select {
	case snap = <-updates:
		if len(snap.Assets) != 2 {
			t.Errorf("refresh snapshot = %d assets, want 2", len(snap.Assets))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after Refresh()")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not stop after cancel")
		}
	}
}
