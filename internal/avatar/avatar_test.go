package avatar

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSHA1Hex(t *testing.T) {
	h := SHA1Hex([]byte("abc"))
	if h != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Fatalf("SHA1Hex = %q", h)
	}
	if len(h) != 40 || h != strings.ToLower(h) {
		t.Fatalf("hash not 40 lowercase hex chars: %q", h)
	}
	if SHA1Hex([]byte("abc")) != h {
		t.Error("hash not deterministic")
	}
	if SHA1Hex([]byte("abd")) == h {
		t.Error("distinct inputs collided")
	}
}

func TestFromBytesSetsDimensions(t *testing.T) {
	raw := pngBytes(t, 8, 6)
	a, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if a.Hash() != SHA1Hex(raw) {
		t.Errorf("hash = %q", a.Hash())
	}
	if a.Metadata().Width != 8 || a.Metadata().Height != 6 {
		t.Errorf("dims = %dx%d", a.Metadata().Width, a.Metadata().Height)
	}
	if a.Base64() != base64.StdEncoding.EncodeToString(raw) {
		t.Error("base64 mismatch")
	}
}

func TestFromBytesUndecodableKeepsSentinels(t *testing.T) {
	a, err := FromBytes([]byte("not an image"))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if a.Metadata().Width != -1 || a.Metadata().Height != -1 {
		t.Errorf("dims = %dx%d, want sentinels", a.Metadata().Width, a.Metadata().Height)
	}
}

func TestFromBytesEmpty(t *testing.T) {
	if _, err := FromBytes(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestFromBase64Alphabets(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0x01, 0x02, 0x03}

	std := base64.StdEncoding.EncodeToString(raw)
	a, err := FromBase64(std)
	if err != nil {
		t.Fatalf("standard alphabet: %v", err)
	}
	if !bytes.Equal(a.Bytes(), raw) {
		t.Error("standard alphabet decoded wrong bytes")
	}

	safe := base64.URLEncoding.EncodeToString(raw)
	if safe == std {
		t.Fatal("test bytes do not exercise the safe alphabet")
	}
	a, err = FromBase64(safe)
	if err != nil {
		t.Fatalf("safe alphabet: %v", err)
	}
	if !bytes.Equal(a.Bytes(), raw) {
		t.Error("safe alphabet decoded wrong bytes")
	}

	wrapped := std[:4] + "\r\n" + std[4:]
	if _, err := FromBase64(wrapped); err != nil {
		t.Errorf("line-wrapped base64 rejected: %v", err)
	}

	if _, err := FromBase64("!!!not base64!!!"); err == nil {
		t.Error("expected decode failure")
	}
}

func TestIsValidHash(t *testing.T) {
	a, _ := FromBytes([]byte("payload"))
	if !a.IsValidHash(a.Hash()) {
		t.Error("exact hash rejected")
	}
	if !a.IsValidHash(strings.ToUpper(a.Hash())) {
		t.Error("uppercase hash rejected")
	}
	if a.IsValidHash("deadbeef") {
		t.Error("wrong hash accepted")
	}
	if a.IsValidHash("") {
		t.Error("empty hash accepted")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	raw := pngBytes(t, 4, 4)
	a, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	a.Metadata().ID = a.Hash()
	a.Metadata().Type = "image/png"

	snap, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	back := ParseSnapshot(snap)
	if back == nil {
		t.Fatal("ParseSnapshot returned no avatar")
	}
	if back.Hash() != a.Hash() || back.Base64() != a.Base64() {
		t.Error("identity lost in round trip")
	}
	if *back.Metadata() != *a.Metadata() {
		t.Errorf("metadata lost: %+v vs %+v", back.Metadata(), a.Metadata())
	}

	again, err := back.Snapshot()
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if !bytes.Equal(snap, again) {
		t.Errorf("snapshot not stable:\n%s\n%s", snap, again)
	}
}

func TestParseSnapshotSentinel(t *testing.T) {
	cases := []string{
		`{}`,
		`{"base64":""}`,
		`{"base64":"","metadata":{"id":"abc"}}`,
		`{"base64":"***"}`,
		`not json at all`,
	}
	for _, c := range cases {
		if got := ParseSnapshot([]byte(c)); got != nil {
			t.Errorf("ParseSnapshot(%q) = %+v, want nil", c, got)
		}
	}
}
