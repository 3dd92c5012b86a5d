package sniffer

import (
	"errors"
	"testing"
)

func TestDetectMime(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want string
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, "image/jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}, "image/png"},
		{"gif87", []byte("GIF87a...."), "image/gif"},
		{"gif89", []byte("GIF89a...."), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectMime(tt.head)
			if err != nil {
				t.Fatalf("DetectMime: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectMime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectMimeUnknown(t *testing.T) {
	for _, head := range [][]byte{nil, {}, []byte("plain text")} {
		if _, err := DetectMime(head); !errors.Is(err, ErrUnknownType) {
			t.Errorf("DetectMime(%q) err = %v, want ErrUnknownType", head, err)
		}
	}
}
