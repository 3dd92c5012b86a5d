package engine

import (
	"testing"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

func TestAnnotateCreatesAnnotations(t *testing.T) {
	pres := xmpp.NewElement("presence", "jabber:client")
	Annotate(pres, "f00f", true)

	x := pres.ChildNS("x", xmpp.NSVCardUpdate)
	if x == nil || x.Child("photo") == nil || x.Child("photo").Text != "f00f" {
		t.Errorf("vcard update annotation = %s", pres.XML())
	}
	legacy := pres.ChildNS("x", xmpp.NSXAvatar)
	if legacy == nil || legacy.Child("hash") == nil || legacy.Child("hash").Text != "f00f" {
		t.Errorf("legacy annotation = %s", pres.XML())
	}
}

func TestAnnotateSkipsLegacyWhenDisabled(t *testing.T) {
	pres := xmpp.NewElement("presence", "jabber:client")
	Annotate(pres, "f00f", false)

	if pres.ChildNS("x", xmpp.NSXAvatar) != nil {
		t.Error("legacy annotation written while disabled")
	}
	if pres.ChildNS("x", xmpp.NSVCardUpdate) == nil {
		t.Error("vcard update annotation missing")
	}
}

func TestAnnotateOverwritesNonEmptyPhoto(t *testing.T) {
	pres := xmpp.NewElement("presence", "jabber:client")
	pres.AddChild("x", xmpp.NSVCardUpdate).AddChild("photo", "").SetText("stale")

	Annotate(pres, "f00f", false)

	photo := pres.ChildNS("x", xmpp.NSVCardUpdate).Child("photo")
	if photo.Text != "f00f" {
		t.Errorf("photo = %q, want overwrite", photo.Text)
	}
}

func TestAnnotateLeavesExplicitEmptyPhoto(t *testing.T) {
	// An existing empty photo element is the user saying "no avatar"; the
	// engine must not override that statement.
	pres := xmpp.NewElement("presence", "jabber:client")
	pres.AddChild("x", xmpp.NSVCardUpdate).AddChild("photo", "")

	Annotate(pres, "f00f", false)

	photo := pres.ChildNS("x", xmpp.NSVCardUpdate).Child("photo")
	if photo.Text != "" {
		t.Errorf("photo = %q, want untouched empty", photo.Text)
	}
}

func TestFlagStateRoundTrip(t *testing.T) {
	state := FlagState{ConversionEnabled: true, ShrinkVCardImage: true}
	f := NewFlags(state)
	if f.State() != state {
		t.Errorf("State() = %+v", f.State())
	}
	f.Apply(FlagState{PEPOnlyMode: true, LegacyProtocolEnabled: true})
	if !f.PEPOnly() || !f.LegacyEnabled() || f.ConversionEnabled() || f.ShrinkVCard() {
		t.Errorf("flags after Apply = %+v", f.State())
	}
}
