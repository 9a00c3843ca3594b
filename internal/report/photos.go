package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"visit-export-service/internal/telemetry"
)

// maxPhotoEdge caps the longest edge of an embedded photo. Field photos come
// off phone cameras at full resolution; slides never need more than this.
const maxPhotoEdge = 1600

// PhotoFetcher downloads photo bytes with a per-photo timeout and normalizes
// them to JPEG for embedding. A failed download is reported through Image.OK,
// not as an error: one bad photo must not sink the report.
type PhotoFetcher struct {
	httpClient *http.Client
	maxBytes   int64
	log        *logrus.Logger
}

// NewPhotoFetcher constructs a fetcher. timeout covers one photo end to end.
func NewPhotoFetcher(timeout time.Duration, maxBytes int64, log *logrus.Logger) *PhotoFetcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if maxBytes == 0 {
		maxBytes = 25 * 1024 * 1024
	}
	if log == nil {
		log = logrus.New()
	}
	return &PhotoFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		log:        log,
	}
}

// Fetch downloads and normalizes one photo.
func (f *PhotoFetcher) Fetch(ctx context.Context, url string) Image {
	data, err := f.download(ctx, url)
	if err == nil {
		data, err = normalizeJPEG(data)
	}
	if err != nil {
		telemetry.PhotoFetchFails.Inc()
		f.log.WithFields(logrus.Fields{"url": url}).WithError(err).Warn("photo fetch failed, using placeholder")
		return Image{}
	}
	return Image{Data: data, OK: true}
}

func (f *PhotoFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("download photo: status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("photo too large (>%d bytes)", f.maxBytes)
	}
	return body, nil
}

// normalizeJPEG decodes any supported image and re-encodes it as JPEG,
// downscaling oversized captures.
func normalizeJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxPhotoEdge || bounds.Dy() > maxPhotoEdge {
		img = imaging.Fit(img, maxPhotoEdge, maxPhotoEdge, imaging.Lanczos)
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
