package event

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

const domain = "capulet.lit"

func parse(t *testing.T, raw string) *xmpp.Stanza {
	t.Helper()
	s, err := xmpp.ParseStanza([]byte(raw))
	if err != nil {
		t.Fatalf("ParseStanza: %v", err)
	}
	return s
}

func TestClassifyPubSubPublish(t *testing.T) {
	s := parse(t, `<iq type="set" id="p1" from="juliet@capulet.lit/balcony">
		<pubsub xmlns="http://jabber.org/protocol/pubsub">
			<publish node="urn:xmpp:avatar:metadata">
				<item id="f00f"><metadata xmlns="urn:xmpp:avatar:metadata">
					<info id="f00f" type="image/png" bytes="1234" width="64" height="64"/>
				</metadata></item>
			</publish>
		</pubsub></iq>`)

	ev, ok := Classify(s, In, "", domain)
	if !ok || ev.Kind != KindPubSubPublish {
		t.Fatalf("Classify = %v, %v", ev.Kind, ok)
	}
	if ev.InfoID != "f00f" {
		t.Errorf("InfoID = %q", ev.InfoID)
	}
	if ev.Info.Attr("type") != "image/png" {
		t.Errorf("info type = %q", ev.Info.Attr("type"))
	}
	if ev.User.Bare() != "juliet@capulet.lit" {
		t.Errorf("user = %v", ev.User)
	}
}

func TestClassifyPubSubRetract(t *testing.T) {
	s := parse(t, `<iq type="set" from="juliet@capulet.lit">
		<pubsub xmlns="http://jabber.org/protocol/pubsub">
			<retract node="urn:xmpp:avatar:metadata"><item id="f00f"/></retract>
		</pubsub></iq>`)

	ev, ok := Classify(s, In, "", domain)
	if !ok || ev.Kind != KindPubSubRetract {
		t.Fatalf("Classify = %v, %v", ev.Kind, ok)
	}
}

func TestClassifyPubSubRetractForeignNode(t *testing.T) {
	s := parse(t, `<iq type="set" from="juliet@capulet.lit">
		<pubsub xmlns="http://jabber.org/protocol/pubsub">
			<retract node="urn:xmpp:bookmarks:1"><item id="x"/></retract>
		</pubsub></iq>`)

	if _, ok := Classify(s, In, "", domain); ok {
		t.Fatal("retract on unrelated node classified")
	}
}

func TestClassifyVCardSet(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	s := parse(t, `<iq type="set" from="juliet@capulet.lit">
		<vCard xmlns="vcard-temp"><PHOTO>
			<TYPE>image/png</TYPE>
			<BINVAL>`+base64.StdEncoding.EncodeToString(payload)+`</BINVAL>
		</PHOTO></vCard></iq>`)

	ev, ok := Classify(s, In, "", domain)
	if !ok || ev.Kind != KindVCardSet {
		t.Fatalf("Classify = %v, %v", ev.Kind, ok)
	}
	if !bytes.Equal(ev.Photo, payload) {
		t.Errorf("photo = %x", ev.Photo)
	}
	if ev.MimeType != "image/png" {
		t.Errorf("mime = %q", ev.MimeType)
	}
}

func TestClassifyVCardSetMalformed(t *testing.T) {
	s := parse(t, `<iq type="set" from="juliet@capulet.lit">
		<vCard xmlns="vcard-temp"><PHOTO><BINVAL>***garbage***</BINVAL></PHOTO></vCard></iq>`)

	ev, ok := Classify(s, In, "", domain)
	if !ok || ev.Kind != KindVCardSet || !ev.Malformed {
		t.Fatalf("Classify = %+v, %v", ev, ok)
	}
}

func TestClassifyVCardClear(t *testing.T) {
	for _, raw := range []string{
		`<iq type="set" from="juliet@capulet.lit"><vCard xmlns="vcard-temp"/></iq>`,
		`<iq type="set" from="juliet@capulet.lit"><vCard xmlns="vcard-temp"><PHOTO/></vCard></iq>`,
		`<iq type="set" from="juliet@capulet.lit"><vCard xmlns="vcard-temp"><PHOTO><BINVAL/></PHOTO></vCard></iq>`,
	} {
		ev, ok := Classify(parse(t, raw), In, "", domain)
		if !ok || ev.Kind != KindVCardClear {
			t.Errorf("Classify(%s) = %v, %v", raw, ev.Kind, ok)
		}
	}
}

func TestClassifyLegacy(t *testing.T) {
	query, ok := Classify(parse(t,
		`<iq type="get" from="romeo@capulet.lit"><query xmlns="jabber:iq:avatar"/></iq>`), In, "", domain)
	if !ok || query.Kind != KindLegacyQuery {
		t.Fatalf("query = %v, %v", query.Kind, ok)
	}

	set, ok := Classify(parse(t,
		`<iq type="set" from="romeo@capulet.lit"><query xmlns="storage:client:avatar"><data mimetype="image/gif">aGk=</data></query></iq>`), In, "", domain)
	if !ok || set.Kind != KindLegacySet {
		t.Fatalf("set = %v, %v", set.Kind, ok)
	}
	if set.MimeType != "image/gif" || string(set.Photo) != "hi" {
		t.Errorf("set payload = %q %q", set.MimeType, set.Photo)
	}

	clr, ok := Classify(parse(t,
		`<iq type="set" from="romeo@capulet.lit"><query xmlns="jabber:iq:avatar"><data/></query></iq>`), In, "", domain)
	if !ok || clr.Kind != KindLegacyClear {
		t.Fatalf("clear = %v, %v", clr.Kind, ok)
	}

	malformed, ok := Classify(parse(t,
		`<iq type="set" from="romeo@capulet.lit"><query xmlns="jabber:iq:avatar"><data>%%%</data></query></iq>`), In, "", domain)
	if !ok || malformed.Kind != KindLegacySet || !malformed.Malformed {
		t.Fatalf("malformed = %+v, %v", malformed, ok)
	}
}

func TestClassifyOutgoingPresence(t *testing.T) {
	s := parse(t, `<presence from="juliet@capulet.lit/balcony"/>`)
	ev, ok := Classify(s, Out, "", domain)
	if !ok || ev.Kind != KindOutgoingPresence {
		t.Fatalf("Classify = %v, %v", ev.Kind, ok)
	}
	if ev.Request != s {
		t.Error("presence request not carried")
	}

	if _, ok := Classify(s, In, "", domain); ok {
		t.Error("inbound presence classified")
	}
	if _, ok := Classify(parse(t, `<presence type="unavailable" from="juliet@capulet.lit"/>`), Out, "", domain); ok {
		t.Error("unavailable presence classified")
	}
}

func TestClassifySuppressesBridgeOrigin(t *testing.T) {
	s := parse(t, `<iq type="set" from="juliet@capulet.lit"><vCard xmlns="vcard-temp"/></iq>`)
	if _, ok := Classify(s, In, OriginBridge, domain); ok {
		t.Fatal("bridge-originated stanza classified")
	}
}

func TestClassifyForeignDomain(t *testing.T) {
	s := parse(t, `<iq type="set" from="iago@shakespeare.lit"><vCard xmlns="vcard-temp"/></iq>`)
	if _, ok := Classify(s, In, "", domain); ok {
		t.Fatal("foreign domain stanza classified")
	}
}

func TestClassifyExactlyOneEventPerStanza(t *testing.T) {
	// A stanza carrying both pubsub and vCard children yields the pubsub
	// event only; classification is first-match, never fan-out.
	s := parse(t, `<iq type="set" from="juliet@capulet.lit">
		<pubsub xmlns="http://jabber.org/protocol/pubsub">
			<retract node="urn:xmpp:avatar:data"/>
		</pubsub>
		<vCard xmlns="vcard-temp"/>
	</iq>`)
	ev, ok := Classify(s, In, "", domain)
	if !ok || ev.Kind != KindPubSubRetract {
		t.Fatalf("Classify = %v, %v", ev.Kind, ok)
	}
}
