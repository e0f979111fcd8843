// Package upload sends exported assets to the user's endpoints: raster
// images to an upload server, SVG markup to an icon post-processing action.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/sirupsen/logrus"
)

const (
	// FileName is the multipart file name of uploaded images.
	FileName = "image.png"
	// ContentType is the content type of uploaded images.
	ContentType = "image/png"

	defaultHTTPTimeout = 2 * time.Minute
	maxErrorBody       = 512
)

// ProgressFunc receives the upload progress in percent, 0 to 100. It is
// called only when the value changes.
type ProgressFunc func(percent int)

// Uploader posts images to the configured upload endpoint.
type Uploader struct {
	httpClient *http.Client
	log        *logrus.Entry
}

// NewUploader returns an uploader using httpClient, or a client with a
// two minute timeout when nil.
func NewUploader(httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Uploader{
		httpClient: httpClient,
		log:        logrus.WithField("component", "Uploader"),
	}
}

// Upload sends image as a multipart form to cfg.UploadURL and returns the
// resulting image URL: the value found at cfg.ImageFieldPath in the JSON
// response, prefixed by cfg.ImageURLPrefix. The request is sent once.
func (u *Uploader) Upload(ctx context.Context, image []byte, cfg assets.UploadConfig, progress ProgressFunc) (string, error) {
	if err := cfg.ReadyForUpload(); err != nil {
		return "", err
	}

	body, contentType, err := buildForm(image, cfg)
	if err != nil {
		return "", err
	}

	total := int64(body.Len())
	var reader io.Reader = body
	if progress != nil {
		reader = &progressReader{r: body, total: total, fn: progress, last: -1}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.UploadURL, reader)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = total

	u.log.WithFields(logrus.Fields{"url": cfg.UploadURL, "bytes": len(image)}).Debug("Uploading image")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	value, ok := ResolveFieldPath(data, cfg.ImageFieldPath)
	if !ok {
		return "", fmt.Errorf("upload response has no value at %q", cfg.ImageFieldPath)
	}
	str, ok := scalarString(value)
	if !ok {
		return "", fmt.Errorf("upload response value at %q is not a string", cfg.ImageFieldPath)
	}

	return cfg.ImageURLPrefix + str, nil
}

func buildForm(image []byte, cfg assets.UploadConfig) (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, cfg.UploadField, FileName))
	h.Set("Content-Type", ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	for _, f := range cfg.CustomFields {
		if err := w.WriteField(f.Key, fieldValue(f, len(image))); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func fieldValue(f assets.CustomField, size int) string {
	switch f.Type {
	case assets.FieldUUID:
		return uuid.NewString()
	case assets.FieldFileSize:
		return strconv.Itoa(size)
	case assets.FieldFilename:
		return uuid.NewString() + ".png"
	default:
		return f.Value
	}
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	last  int
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)

	if p.total > 0 {
		percent := int((p.sent*100 + p.total/2) / p.total)
		if percent > 100 {
			percent = 100
		}
		if percent != p.last {
			p.last = percent
			p.fn(percent)
		}
	}
	return n, err
}
