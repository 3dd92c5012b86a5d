// Package event turns observed stanzas into the tagged events the
// conversion engine dispatches on. Classification is pure: one stanza in,
// at most one event out, no store access and no side effects.
package event

import (
	"strings"

	"github.com/mightymop/avatarbridge/internal/avatar"
	"github.com/mightymop/avatarbridge/internal/xmpp"
)

type Kind int

const (
	KindIgnored Kind = iota
	KindPubSubPublish
	KindPubSubRetract
	KindVCardSet
	KindVCardClear
	KindLegacyQuery
	KindLegacySet
	KindLegacyClear
	KindOutgoingPresence
)

func (k Kind) String() string {
	switch k {
	case KindPubSubPublish:
		return "pubsub-publish"
	case KindPubSubRetract:
		return "pubsub-retract"
	case KindVCardSet:
		return "vcard-set"
	case KindVCardClear:
		return "vcard-clear"
	case KindLegacyQuery:
		return "legacy-query"
	case KindLegacySet:
		return "legacy-set"
	case KindLegacyClear:
		return "legacy-clear"
	case KindOutgoingPresence:
		return "outgoing-presence"
	default:
		return "ignored"
	}
}

// Direction tells whether the stanza was observed entering or leaving the
// server core. Avatar mutations arrive inbound; presence is annotated on
// the way out.
type Direction int

const (
	In Direction = iota
	Out
)

// OriginBridge marks stanzas the engine itself emitted. The classifier
// refuses them so a store write can never loop back into the engine.
const OriginBridge = "bridge"

// Event is the tagged variant the engine switches over. Fields beyond Kind,
// User and Request are populated per kind.
type Event struct {
	Kind Kind
	User xmpp.JID

	// PubSubPublish: the advertised info element and its item id.
	Info   *xmpp.Element
	InfoID string

	// VCardSet / LegacySet: decoded photo payload.
	Photo    []byte
	MimeType string

	// Malformed marks a set event whose payload failed to decode. The
	// engine drops it (vCard) or answers bad-request (legacy).
	Malformed bool

	// Request is the originating stanza, kept for replies and for
	// annotating outgoing presence in place.
	Request *xmpp.Stanza
}

// Classify derives the event for one observed stanza. ok is false when the
// stanza is none of the engine's business: wrong kind, wrong direction,
// foreign domain, or a stanza the bridge itself originated.
func Classify(stanza *xmpp.Stanza, dir Direction, origin, servedDomain string) (Event, bool) {
	if stanza == nil || origin == OriginBridge {
		return Event{}, false
	}
	if stanza.From.IsZero() || !strings.EqualFold(stanza.From.Domain, servedDomain) {
		return Event{}, false
	}

	switch {
	case stanza.Kind == xmpp.KindPresence && dir == Out:
		if stanza.Type != "" {
			return Event{}, false
		}
		return Event{Kind: KindOutgoingPresence, User: stanza.From, Request: stanza}, true

	case stanza.Kind == xmpp.KindIQ && dir == In:
		return classifyIQ(stanza)

	default:
		return Event{}, false
	}
}

func classifyIQ(stanza *xmpp.Stanza) (Event, bool) {
	switch stanza.Type {
	case xmpp.IQSet:
		if pubsub := stanza.PayloadNS(xmpp.NSPubSub); pubsub != nil {
			return classifyPubSub(stanza, pubsub)
		}
		if vcard := stanza.PayloadNS(xmpp.NSVCardTemp); vcard != nil {
			return classifyVCard(stanza, vcard)
		}
		if query := legacyPayload(stanza); query != nil {
			return classifyLegacySet(stanza, query)
		}
	case xmpp.IQGet:
		if stanza.PayloadNS(xmpp.NSIQAvatar) != nil {
			return Event{Kind: KindLegacyQuery, User: stanza.From, Request: stanza}, true
		}
	}
	return Event{}, false
}

func legacyPayload(stanza *xmpp.Stanza) *xmpp.Element {
	if q := stanza.PayloadNS(xmpp.NSIQAvatar); q != nil {
		return q
	}
	return stanza.PayloadNS(xmpp.NSStorageAvatar)
}

func classifyPubSub(stanza *xmpp.Stanza, pubsub *xmpp.Element) (Event, bool) {
	if publish := pubsub.Child("publish"); publish != nil && publish.Attr("node") == xmpp.NSAvatarMetadata {
		item := publish.Child("item")
		if item == nil {
			return Event{}, false
		}
		metadata := item.Child("metadata")
		if metadata == nil {
			return Event{}, false
		}
		info := metadata.Child("info")
		if info == nil {
			return Event{}, false
		}
		return Event{
			Kind:    KindPubSubPublish,
			User:    stanza.From,
			Info:    info,
			InfoID:  info.Attr("id"),
			Request: stanza,
		}, true
	}

	for _, name := range []string{"retract", "delete"} {
		if el := pubsub.Child(name); el != nil && avatarNode(el.Attr("node")) {
			return Event{Kind: KindPubSubRetract, User: stanza.From, Request: stanza}, true
		}
	}
	return Event{}, false
}

// avatarNode restricts retract/delete handling to the two avatar nodes;
// retractions on unrelated PEP nodes must not clear anything.
func avatarNode(node string) bool {
	return node == xmpp.NSAvatarMetadata || node == xmpp.NSAvatarData
}

func classifyVCard(stanza *xmpp.Stanza, vcard *xmpp.Element) (Event, bool) {
	photo := vcard.Child("PHOTO")
	if photo == nil {
		return Event{Kind: KindVCardClear, User: stanza.From, Request: stanza}, true
	}
	binval := photo.Child("BINVAL")
	if binval == nil || binval.Text == "" {
		return Event{Kind: KindVCardClear, User: stanza.From, Request: stanza}, true
	}

	ev := Event{Kind: KindVCardSet, User: stanza.From, Request: stanza}
	if t := photo.Child("TYPE"); t != nil {
		ev.MimeType = t.Text
	}
	raw, err := avatar.DecodeBase64(binval.Text)
	if err != nil {
		ev.Malformed = true
		return ev, true
	}
	ev.Photo = raw
	return ev, true
}

func classifyLegacySet(stanza *xmpp.Stanza, query *xmpp.Element) (Event, bool) {
	data := query.Child("data")
	if data == nil || data.Text == "" {
		return Event{Kind: KindLegacyClear, User: stanza.From, Request: stanza}, true
	}

	ev := Event{
		Kind:     KindLegacySet,
		User:     stanza.From,
		MimeType: data.Attr("mimetype"),
		Request:  stanza,
	}
	raw, err := avatar.DecodeBase64(data.Text)
	if err != nil {
		ev.Malformed = true
		return ev, true
	}
	ev.Photo = raw
	return ev, true
}
