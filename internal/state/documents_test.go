package state

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/user/claimline/internal/types"
)

func TestFileDocumentStoreSaveAndOpen(t *testing.T) {
	store := NewFileDocumentStore(t.TempDir())
	store.now = func() time.Time { return time.Date(2026, 2, 26, 12, 0, 30, 0, time.UTC) }
	ctx := context.Background()

	name, err := store.Save(ctx, testClaimID, "vehicle_damage_photo_1", &types.Image{Data: []byte("png-bytes"), ContentType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	if name != "vehicle_damage_photo_1_20260226_120030.png" {
		t.Errorf("filename = %s", name)
	}

	data, err := store.Open(ctx, testClaimID, name)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("data = %q", data)
	}

	names, err := store.List(ctx, testClaimID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != name {
		t.Errorf("list = %v", names)
	}
}

func TestFileDocumentStoreOpenMissing(t *testing.T) {
	store := NewFileDocumentStore(t.TempDir())
	ctx := context.Background()
	for _, name := range []string{"absent.jpg", "../status.yaml", ""} {
		if _, err := store.Open(ctx, testClaimID, name); !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("%q: expected ErrDocumentNotFound, got %v", name, err)
		}
	}
}

func TestFileDocumentStoreRejectsEmptyImage(t *testing.T) {
	store := NewFileDocumentStore(t.TempDir())
	if _, err := store.Save(context.Background(), testClaimID, "receipt_1", &types.Image{}); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestS3DocumentStore(t *testing.T) {
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_ENDPOINT not set")
	}
	store, err := NewS3DocumentStore(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Bucket:    "claimline-test",
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	name, err := store.Save(ctx, testClaimID, "receipt_1", &types.Image{Data: []byte("jpeg")})
	if err != nil {
		t.Fatal(err)
	}
	data, err := store.Open(ctx, testClaimID, name)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpeg" {
		t.Errorf("data = %q", data)
	}
}

func TestNewS3DocumentStoreValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
	}{
		{"no endpoint", S3Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"no keys", S3Config{Endpoint: "localhost:9000", Bucket: "b"}},
		{"no bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tt := range tests {
		if _, err := NewS3DocumentStore(tt.cfg); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
