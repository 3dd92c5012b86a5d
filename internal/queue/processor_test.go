package queue

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mightymop/avatarbridge/internal/cache"
	"github.com/mightymop/avatarbridge/internal/engine"
	"github.com/mightymop/avatarbridge/internal/media/resize"
	"github.com/mightymop/avatarbridge/internal/store"
	"github.com/mightymop/avatarbridge/internal/xmpp"
)

type nopPubSub struct{}

func (nopPubSub) GetNode(context.Context, xmpp.JID, string) (store.Node, error) {
	return store.Node{}, store.ErrNodeNotFound
}
func (nopPubSub) CreateLeafNode(_ context.Context, owner xmpp.JID, ns string) (store.Node, error) {
	return store.Node{Owner: owner, NS: ns}, nil
}
func (nopPubSub) Items(context.Context, store.Node) ([]store.Item, error) { return nil, nil }
func (nopPubSub) PublishSingleItem(context.Context, store.Node, string, *xmpp.Element) error {
	return nil
}
func (nopPubSub) DeleteAllItems(context.Context, store.Node) error { return nil }
func (nopPubSub) RemoveNode(context.Context, store.Node) error     { return nil }

type nopVCard struct{}

func (nopVCard) Photo(context.Context, xmpp.JID) (store.Photo, error) {
	return store.Photo{}, store.ErrNoPhoto
}
func (nopVCard) SetPhoto(context.Context, xmpp.JID, []byte, string) error { return nil }
func (nopVCard) ClearPhoto(context.Context, xmpp.JID) error               { return nil }

type nopPresence struct{}

func (nopPresence) CurrentPresence(context.Context, xmpp.JID) (*xmpp.Stanza, error) {
	return nil, store.ErrNoPresence
}

type recordingRouter struct {
	routed []*xmpp.Stanza
}

func (r *recordingRouter) Route(_ context.Context, s *xmpp.Stanza) error {
	r.routed = append(r.routed, s)
	return nil
}

func testProcessor(t *testing.T) (*Processor, *recordingRouter) {
	t.Helper()
	router := &recordingRouter{}
	eng := engine.New(engine.Deps{
		PubSub:    nopPubSub{},
		VCards:    nopVCard{},
		Presence:  nopPresence{},
		Router:    router,
		Cache:     cache.NewMemory(1<<20, 0),
		Resizer:   resize.Raster{},
		Flags:     engine.NewFlags(engine.FlagState{ConversionEnabled: true}),
		TargetDim: 96,
		Log:       zerolog.Nop(),
	})
	return NewProcessor(eng, nil, router, "capulet.lit", zerolog.Nop()), router
}

func message(stanza, origin, direction string) redis.XMessage {
	return redis.XMessage{
		ID: "1-1",
		Values: map[string]interface{}{
			"stanza":    stanza,
			"origin":    origin,
			"direction": direction,
		},
	}
}

func TestHandleRoutesLegacyReply(t *testing.T) {
	p, router := testProcessor(t)

	// Legacy protocol is disabled: the engine must answer and the
	// processor must route that answer.
	err := p.Handle(context.Background(), message(
		`<iq type="get" id="q1" from="juliet@capulet.lit"><query xmlns="jabber:iq:avatar"/></iq>`,
		"", "in"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(router.routed) != 1 {
		t.Fatalf("routed %d stanzas, want 1", len(router.routed))
	}
	reply := router.routed[0]
	if reply.Type != xmpp.IQError || reply.ID != "q1" {
		t.Errorf("reply = type %q id %q", reply.Type, reply.ID)
	}
}

func TestHandleIgnoresBridgeOrigin(t *testing.T) {
	p, router := testProcessor(t)

	err := p.Handle(context.Background(), message(
		`<iq type="get" id="q1" from="juliet@capulet.lit"><query xmlns="jabber:iq:avatar"/></iq>`,
		"bridge", "in"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(router.routed) != 0 {
		t.Errorf("routed %d stanzas for a bridge-origin message", len(router.routed))
	}
}

func TestHandleDropsGarbageWithoutError(t *testing.T) {
	p, router := testProcessor(t)

	// Unparsable stanzas are acknowledged, not retried forever.
	if err := p.Handle(context.Background(), message("<not-xml", "", "in")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(router.routed) != 0 {
		t.Errorf("routed %d stanzas for garbage input", len(router.routed))
	}
}

func TestHandleRecordsInboundPresence(t *testing.T) {
	router := &recordingRouter{}
	rec := &fakeRecorder{}
	eng := engine.New(engine.Deps{
		PubSub:   nopPubSub{},
		VCards:   nopVCard{},
		Presence: nopPresence{},
		Router:   router,
		Cache:    cache.NewMemory(1<<20, 0),
		Resizer:  resize.Raster{},
		Flags:    engine.NewFlags(engine.FlagState{ConversionEnabled: true}),
		Log:      zerolog.Nop(),
	})
	p := NewProcessor(eng, rec, router, "capulet.lit", zerolog.Nop())

	err := p.Handle(context.Background(), message(
		`<presence from="juliet@capulet.lit/balcony"/>`, "", "in"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.calls != 1 {
		t.Errorf("RecordPresence calls = %d, want 1", rec.calls)
	}
}

type fakeRecorder struct {
	calls int
}

func (f *fakeRecorder) RecordPresence(context.Context, *xmpp.Stanza) error {
	f.calls++
	return nil
}
