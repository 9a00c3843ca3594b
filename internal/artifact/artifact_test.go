package artifact

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	defer m.Close()

	ref, err := m.Put(ctx, "job-1/relatorio.pptx", []byte("deck"), "application/zip")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data, contentType, err := m.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "deck" || contentType != "application/zip" {
		t.Fatalf("round trip mismatch: %q %q", data, contentType)
	}
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()

	_, _, err := m.Get(context.Background(), "mem:unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTTLEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10 * time.Millisecond)
	defer m.Close()

	ref, err := m.Put(ctx, "k", []byte("v"), "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, _, err := m.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired artifact to be gone, got %v", err)
	}
}

func TestLocalPutGet(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())

	ref, err := l.Put(ctx, "job-1/relatorio.html", []byte("<html></html>"), "text/html")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data, contentType, err := l.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "<html></html>" || contentType != "text/html" {
		t.Fatalf("round trip mismatch: %q %q", data, contentType)
	}

	if _, _, err := l.Get(ctx, "local:job-2/nothing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
