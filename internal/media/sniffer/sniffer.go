// Package sniffer detects the mime type of avatar payloads by magic bytes,
// for vCard and legacy uploads that arrive without a declared type.
package sniffer

import (
	"bytes"
	"errors"
)

var ErrUnknownType = errors.New("unknown media type")

// DetectMime identifies the image format of raw avatar bytes.
func DetectMime(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrUnknownType
	}

	switch {
	case isJPEG(raw):
		return "image/jpeg", nil
	case isPNG(raw):
		return "image/png", nil
	case isGIF(raw):
		return "image/gif", nil
	case isWEBP(raw):
		return "image/webp", nil
	}
	return "", ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}
