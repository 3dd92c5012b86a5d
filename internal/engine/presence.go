package engine

import "github.com/mightymop/avatarbridge/internal/xmpp"

// Annotate writes the avatar hash announcement into a presence stanza.
//
// The vcard-temp:x:update annotation follows the protocol business rule: the
// photo value is (re)written only when the element was just created or its
// existing text is non-empty. An existing empty photo element means the user
// explicitly advertises "no avatar" and is left alone. When the legacy
// protocol is enabled the same value is mirrored into a jabber:x:avatar
// annotation.
func Annotate(presence *xmpp.Element, hash string, legacyEnabled bool) {
	annotate(presence, xmpp.NSVCardUpdate, "photo", hash)
	if legacyEnabled {
		annotate(presence, xmpp.NSXAvatar, "hash", hash)
	}
}

func annotate(presence *xmpp.Element, space, valueName, hash string) {
	x := presence.ChildNS("x", space)
	if x == nil {
		x = presence.AddChild("x", space)
	}

	value := x.Child(valueName)
	created := value == nil
	if created {
		value = x.AddChild(valueName, "")
	}
	if created || value.Text != "" {
		value.Text = hash
	}
}
