package imager

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kataras/figma-assets/pkg/extractor"
	"github.com/kataras/figma-assets/pkg/figma"
)

func TestBuildFileName(t *testing.T) {
	tests := []struct {
		nodeName, nodeID, format string
		scale                    float64
		want                     string
	}{
		{"Human Figure", "1:1", "png", 3, "human-figure@3x.png"},
		{"Icon_Close", "1:2", "svg", 1, "icon-close.svg"},
		{"", "12:34", "svg", 1, "12-34.svg"},
		{"✨", "", "png", 1, "asset.png"},
		{"Logo", "1:3", "png", 1, "logo.png"},
	}

	for _, tt := range tests {
		if got := buildFileName(tt.nodeName, tt.nodeID, tt.format, tt.scale); got != tt.want {
			t.Errorf("buildFileName(%q, %q, %q, %v) = %q, want %q", tt.nodeName, tt.nodeID, tt.format, tt.scale, got, tt.want)
		}
	}
}

func TestWriteResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assets")

	result := &extractor.Result{
		Images: []extractor.ImageAsset{
			{Node: &figma.Node{ID: "1:1", Name: "Photo", IsAsset: true}, Image: []byte("png-1")},
			{Node: &figma.Node{ID: "1:2", Name: "Photo", IsAsset: true}, Image: []byte("png-2")},
		},
		SVGs: []extractor.SVGAsset{
			{Node: &figma.Node{ID: "2:1", Name: "Close Icon", IsAsset: true}, SVG: "<svg/>"},
			{Node: &figma.Node{ID: "2:2", Name: "Button", Type: figma.NodeTypeInstance}, SVG: "<svg id='b'/>"},
		},
	}

	report, err := WriteResult(result, dir)
	if err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("WriteResult() errors = %v", report.Errors)
	}

	want := []string{"photo@3x.png", "photo@3x-2.png", "close-icon.svg", "button.svg"}
	if len(report.Files) != len(want) {
		t.Fatalf("Files = %+v", report.Files)
	}
	for i, name := range want {
		if report.Files[i].FileName != name {
			t.Errorf("Files[%d] = %q, want %q", i, report.Files[i].FileName, name)
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("file %s not written: %v", name, err)
		}
	}
	if report.Files[3].Kind != extractor.KindInstance {
		t.Errorf("instance kind = %v", report.Files[3].Kind)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "photo@3x-2.png"))
	if string(data) != "png-2" {
		t.Errorf("second photo content = %q", data)
	}
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestDominantColor(t *testing.T) {
	got, err := DominantColor(solidPNG(t, color.RGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("DominantColor() error = %v", err)
	}
	if len(got) != 7 || !strings.HasPrefix(got, "#") {
		t.Errorf("DominantColor() = %q, want #RRGGBB", got)
	}

	if _, err := DominantColor([]byte("not an image")); err == nil {
		t.Error("DominantColor(garbage) expected error")
	}
}

func TestWriteResult_ImageColor(t *testing.T) {
	result := &extractor.Result{
		Images: []extractor.ImageAsset{
			{Node: &figma.Node{ID: "1:1", Name: "Swatch", IsAsset: true}, Image: solidPNG(t, color.RGBA{B: 255, A: 255})},
		},
	}

	report, err := WriteResult(result, t.TempDir())
	if err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if len(report.Files) != 1 || report.Files[0].Color == "" {
		t.Errorf("Files = %+v, want a dominant color", report.Files)
	}
}

func TestSVGDataURL(t *testing.T) {
	got := SVGDataURL("<svg/>")
	prefix := "data:image/svg+xml;base64,"
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("SVGDataURL() = %q", got)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, prefix))
	if err != nil || string(raw) != "<svg/>" {
		t.Errorf("decoded = %q, %v", raw, err)
	}
}

func TestHasWhiteComponent(t *testing.T) {
	tests := []struct {
		svg  string
		want bool
	}{
		{`<path fill="white"/>`, true},
		{`<path fill="#fff"/>`, true},
		{`<path fill="#ffffff"/>`, true},
		{`<path stroke="white"/>`, true},
		{`<path stroke="#fff"/>`, true},
		{`<path stroke="#ffffff"/>`, true},
		{`<path fill="#FFF"/>`, false},
		{`<path fill="black"/>`, false},
		{``, false},
	}
	for _, tt := range tests {
		if got := HasWhiteComponent(tt.svg); got != tt.want {
			t.Errorf("HasWhiteComponent(%q) = %v, want %v", tt.svg, got, tt.want)
		}
	}
	if PreviewBackground(`<path fill="white"/>`) == PreviewBackground(`<path/>`) {
		t.Error("white icons need a different preview background")
	}
}
