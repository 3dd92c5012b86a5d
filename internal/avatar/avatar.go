// Package avatar holds the avatar entity: one immutable image with a
// content-addressed identity shared by every advertisement mechanism.
package avatar

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/mightymop/avatarbridge/internal/media/resize"
)

// Metadata mirrors the info element of the avatar metadata node. Width and
// height are -1 until the image has been decoded successfully.
type Metadata struct {
	ID     string `json:"id,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type,omitempty"`
}

// Avatar is the unit of identity. The raw bytes, their base64 form and the
// SHA-1 content hash are fixed at construction; a new upload produces a new
// value. The shrunk variant is derived lazily via Shrink.
type Avatar struct {
	raw  []byte
	b64  string
	hash string

	shrunkB64  string
	shrunkHash string

	meta Metadata
}

var (
	ErrEmptyImage = errors.New("empty image payload")
	ErrBadBase64  = errors.New("payload is not valid base64")
)

// FromBytes builds an avatar from raw image bytes. The mime type is left to
// the caller. Undecodable images keep the -1 dimension sentinels; that is
// reported by the zero width, not by an error.
func FromBytes(raw []byte) (*Avatar, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}
	a := &Avatar{
		raw:  raw,
		b64:  base64.StdEncoding.EncodeToString(raw),
		hash: SHA1Hex(raw),
		meta: Metadata{Width: -1, Height: -1},
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		a.meta.Width = cfg.Width
		a.meta.Height = cfg.Height
	}
	return a, nil
}

// FromBase64 decodes the text, trying the standard alphabet first and the
// URL-safe one second, then proceeds as FromBytes.
func FromBase64(text string) (*Avatar, error) {
	raw, err := DecodeBase64(text)
	if err != nil {
		return nil, err
	}
	return FromBytes(raw)
}

// DecodeBase64 tolerates both base64 alphabets and embedded line breaks.
func DecodeBase64(text string) ([]byte, error) {
	text = stripSpace(text)
	if text == "" {
		return nil, ErrEmptyImage
	}
	if raw, err := base64.StdEncoding.DecodeString(text); err == nil {
		return raw, nil
	}
	raw, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return nil, ErrBadBase64
	}
	return raw, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

func (a *Avatar) Bytes() []byte   { return a.raw }
func (a *Avatar) Base64() string  { return a.b64 }
func (a *Avatar) Hash() string    { return a.hash }
func (a *Avatar) SizeBytes() int  { return len(a.raw) }
func (a *Avatar) Metadata() *Metadata {
	return &a.meta
}

func (a *Avatar) ShrunkBase64() string { return a.shrunkB64 }
func (a *Avatar) ShrunkHash() string   { return a.shrunkHash }
func (a *Avatar) HasShrunk() bool      { return a.shrunkB64 != "" }

// ShrunkBytes decodes the shrunk variant, or nil when absent.
func (a *Avatar) ShrunkBytes() []byte {
	if a.shrunkB64 == "" {
		return nil
	}
	raw, err := DecodeBase64(a.shrunkB64)
	if err != nil {
		return nil
	}
	return raw
}

// IsValidHash reports whether the candidate matches the content hash,
// ignoring case.
func (a *Avatar) IsValidHash(candidate string) bool {
	return candidate != "" && strings.EqualFold(candidate, a.hash)
}

// Shrink produces the resized variant through the given resizer. A missing
// encoder or a resize failure leaves the avatar without a variant; the
// returned error carries the reason and is for logging only.
func (a *Avatar) Shrink(r resize.Resizer, targetDim int) error {
	if r == nil {
		return resize.ErrUnsupported
	}
	small, err := r.Shrink(a.raw, a.meta.Type, targetDim)
	if err != nil {
		return err
	}
	a.shrunkB64 = base64.StdEncoding.EncodeToString(small)
	a.shrunkHash = SHA1Hex(small)
	return nil
}

// SHA1Hex is the canonical content hash: 40 lowercase hex characters.
func SHA1Hex(raw []byte) string {
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}

type snapshot struct {
	Base64       string   `json:"base64"`
	Base64Shrunk string   `json:"base64shrunk,omitempty"`
	HashShrunk   string   `json:"hashshrunk,omitempty"`
	Metadata     Metadata `json:"metadata"`
}

// Snapshot renders the cacheable JSON form. ParseSnapshot of the result
// reconstructs an avatar with identical hash, base64 and metadata.
func (a *Avatar) Snapshot() ([]byte, error) {
	return json.Marshal(snapshot{
		Base64:       a.b64,
		Base64Shrunk: a.shrunkB64,
		HashShrunk:   a.shrunkHash,
		Metadata:     a.meta,
	})
}

// ParseSnapshot rebuilds an avatar from a cached snapshot. Nil means "no
// avatar": malformed JSON, a missing or empty base64 field, or base64 that
// does not decode. Metadata is taken as stored; absent numeric fields come
// back as 0 and the hash is whatever the metadata id recorded.
func ParseSnapshot(data []byte) *Avatar {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	if snap.Base64 == "" {
		return nil
	}
	raw, err := DecodeBase64(snap.Base64)
	if err != nil {
		return nil
	}
	return &Avatar{
		raw:        raw,
		b64:        snap.Base64,
		hash:       snap.Metadata.ID,
		shrunkB64:  snap.Base64Shrunk,
		shrunkHash: snap.HashShrunk,
		meta:       snap.Metadata,
	}
}
