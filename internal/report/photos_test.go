package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPhotoFetcherNormalizesToJPEG(t *testing.T) {
	srv := photoServer(t)
	fetcher := NewPhotoFetcher(2*time.Second, 1<<20, nil)

	img := fetcher.Fetch(context.Background(), srv.URL+"/photo.jpg")
	if !img.OK {
		t.Fatal("expected fetch to succeed")
	}
	// JPEG SOI marker.
	if len(img.Data) < 2 || img.Data[0] != 0xFF || img.Data[1] != 0xD8 {
		t.Fatalf("expected JPEG output")
	}
}

func TestPhotoFetcherFailureDegrades(t *testing.T) {
	srv := photoServer(t)
	fetcher := NewPhotoFetcher(2*time.Second, 1<<20, nil)

	img := fetcher.Fetch(context.Background(), srv.URL+"/missing/photo.jpg")
	if img.OK || img.Data != nil {
		t.Fatal("expected failed fetch to report not-OK with no data")
	}
}

func TestPhotoFetcherTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer slow.Close()

	fetcher := NewPhotoFetcher(50*time.Millisecond, 1<<20, nil)
	start := time.Now()
	img := fetcher.Fetch(context.Background(), slow.URL)
	if img.OK {
		t.Fatal("expected timeout to fail the fetch")
	}
	if time.Since(start) > time.Second {
		t.Fatal("fetch did not respect its timeout")
	}
}

func TestPhotoFetcherSizeCap(t *testing.T) {
	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer big.Close()

	fetcher := NewPhotoFetcher(2*time.Second, 1024, nil)
	if img := fetcher.Fetch(context.Background(), big.URL); img.OK {
		t.Fatal("expected oversized photo to be rejected")
	}
}
