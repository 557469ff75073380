package types

import "testing"

func TestImageExt(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "jpg"},
		{"image/png", "png"},
		{"image/PNG; charset=binary", "png"},
		{"image/webp", "webp"},
		{"", "jpg"},
		{"application/octet-stream", "jpg"},
	}
	for _, tt := range tests {
		img := &Image{ContentType: tt.contentType}
		if got := img.Ext(); got != tt.want {
			t.Errorf("Ext(%q) = %s, want %s", tt.contentType, got, tt.want)
		}
	}
}

func TestTextMessage(t *testing.T) {
	msg := Text("hello")
	if msg.Text != "hello" || len(msg.Choices) != 0 {
		t.Errorf("unexpected message %+v", msg)
	}
}
