package storage

import (
	"context"
	"testing"
)

func newTestClient(t *testing.T, publicBaseURL string) *Client {
	t.Helper()
	client, err := New(context.Background(), Config{
		Endpoint:        "https://account.r2.cloudflarestorage.com",
		AccessKeyID:     "test-access",
		SecretAccessKey: "test-secret",
		Bucket:          "media",
		PublicBaseURL:   publicBaseURL,
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		key  string
		want string
	}{
		{"plain", "https://media.example.com", "recordings/a.mp4", "https://media.example.com/recordings/a.mp4"},
		{"trailing slash on base", "https://media.example.com/", "recordings/a.mp4", "https://media.example.com/recordings/a.mp4"},
		{"leading slash on key", "https://media.example.com", "/recordings/a.mp4", "https://media.example.com/recordings/a.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.base)
			if got := client.PublicURL(tt.key); got != tt.want {
				t.Fatalf("PublicURL(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestBucket(t *testing.T) {
	client := newTestClient(t, "https://media.example.com")
	if client.Bucket() != "media" {
		t.Fatalf("unexpected bucket %s", client.Bucket())
	}
}
