package xmpp

// Namespaces the bridge reads and writes. The core treats these as opaque
// strings; they are collected here so no other package spells them out.
const (
	// XEP-0084 user avatars over PEP.
	NSPubSub         = "http://jabber.org/protocol/pubsub"
	NSAvatarMetadata = "urn:xmpp:avatar:metadata"
	NSAvatarData     = "urn:xmpp:avatar:data"

	// XEP-0153 vCard-based avatars.
	NSVCardTemp   = "vcard-temp"
	NSVCardUpdate = "vcard-temp:x:update"

	// XEP-0008 legacy avatars: direct IQ query plus presence hash.
	NSIQAvatar      = "jabber:iq:avatar"
	NSXAvatar       = "jabber:x:avatar"
	NSStorageAvatar = "storage:client:avatar"

	// XEP-0398 feature var advertised by the host server.
	NSConversion = "urn:xmpp:pep-vcard-conversion:0"
)
