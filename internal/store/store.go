// Package store defines the contracts the conversion engine requires from
// its host environment: the pubsub (PEP) item store, the vCard store, the
// presence directory and the fallback stanza router. Concrete backends for a
// standalone bridge deployment live alongside the contracts.
package store

import (
	"context"
	"errors"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

var (
	ErrNodeNotFound = errors.New("pubsub node not found")
	ErrNoPhoto      = errors.New("vcard has no photo")
	ErrNoPresence   = errors.New("no presence on record")
)

// Node is a handle to one PEP leaf node: a namespace owned by a bare JID.
type Node struct {
	Owner xmpp.JID
	NS    string
}

// Item is one published item on a leaf node.
type Item struct {
	ID      string
	Payload *xmpp.Element
}

// PubSub is the PEP item store. PublishSingleItem carries replace-all
// semantics: existing items on the node are deleted before the new one is
// published, so a leaf node holds at most one item.
type PubSub interface {
	// GetNode returns ErrNodeNotFound when the owner has no such node.
	GetNode(ctx context.Context, owner xmpp.JID, ns string) (Node, error)
	CreateLeafNode(ctx context.Context, owner xmpp.JID, ns string) (Node, error)
	Items(ctx context.Context, node Node) ([]Item, error)
	PublishSingleItem(ctx context.Context, node Node, id string, payload *xmpp.Element) error
	DeleteAllItems(ctx context.Context, node Node) error
	RemoveNode(ctx context.Context, node Node) error
}

// Photo is a vCard-embedded avatar.
type Photo struct {
	Data     []byte
	MimeType string
}

// VCard exposes just the photo slice of the vCard store.
type VCard interface {
	// Photo returns ErrNoPhoto when the user has no photo set.
	Photo(ctx context.Context, user xmpp.JID) (Photo, error)
	SetPhoto(ctx context.Context, user xmpp.JID, data []byte, mimeType string) error
	ClearPhoto(ctx context.Context, user xmpp.JID) error
}

// PresenceDirectory reports the last broadcast presence of a user, used as
// the base stanza for hash announcements.
type PresenceDirectory interface {
	// CurrentPresence returns ErrNoPresence for offline or unknown users.
	CurrentPresence(ctx context.Context, user xmpp.JID) (*xmpp.Stanza, error)
}

// Router is fire-and-forget stanza delivery: no confirmation, no error
// surfaced to the original caller. Used for presence broadcasts and as the
// best-effort fallback when a direct store write fails.
type Router interface {
	Route(ctx context.Context, stanza *xmpp.Stanza) error
}
