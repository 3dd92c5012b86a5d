// Package engine converts avatars between the PEP, vCard and legacy
// advertisement mechanisms so a publish through any one of them becomes
// visible through the others.
package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mightymop/avatarbridge/internal/avatar"
	"github.com/mightymop/avatarbridge/internal/cache"
	"github.com/mightymop/avatarbridge/internal/event"
	"github.com/mightymop/avatarbridge/internal/media/resize"
	"github.com/mightymop/avatarbridge/internal/media/sniffer"
	"github.com/mightymop/avatarbridge/internal/store"
	"github.com/mightymop/avatarbridge/internal/xmpp"
)

// Deps are the collaborators injected at construction. No globals: cache,
// stores and flags are all owned by whoever builds the engine.
type Deps struct {
	PubSub   store.PubSub
	VCards   store.VCard
	Presence store.PresenceDirectory
	Router   store.Router
	Cache    cache.Cache
	Resizer  resize.Resizer
	Flags    *Flags

	// TargetDim is the square edge of the shrunk variant in pixels.
	TargetDim int

	Log zerolog.Logger
}

type Engine struct {
	pubsub    store.PubSub
	vcards    store.VCard
	presence  store.PresenceDirectory
	router    store.Router
	cache     cache.Cache
	resizer   resize.Resizer
	flags     *Flags
	targetDim int
	log       zerolog.Logger
}

func New(d Deps) *Engine {
	return &Engine{
		pubsub:    d.PubSub,
		vcards:    d.VCards,
		presence:  d.Presence,
		router:    d.Router,
		cache:     d.Cache,
		resizer:   d.Resizer,
		flags:     d.Flags,
		targetDim: d.TargetDim,
		log:       d.Log,
	}
}

// HandleEvent dispatches one classified event. The returned stanza, when
// non-nil, is to be routed back out: a reply for the legacy request/response
// kinds, or the (possibly annotated) presence for outgoing-presence events.
// Failures never escape: every error is handled or logged here, per event.
func (e *Engine) HandleEvent(ctx context.Context, ev event.Event) *xmpp.Stanza {
	if !e.flags.ConversionEnabled() {
		return nil
	}

	switch ev.Kind {
	case event.KindPubSubPublish:
		e.handlePublish(ctx, ev)
		return nil
	case event.KindPubSubRetract:
		e.handleDelete(ctx, ev.User, !e.flags.PEPOnly())
		return nil
	case event.KindVCardSet:
		if ev.Malformed {
			e.log.Warn().Str("user", ev.User.Bare()).Msg("vcard photo payload does not decode, dropped")
			return nil
		}
		e.handleSet(ctx, ev.User, ev.Photo, ev.MimeType)
		return nil
	case event.KindVCardClear:
		e.handleDelete(ctx, ev.User, false)
		return nil
	case event.KindLegacyQuery:
		return e.handleLegacyQuery(ctx, ev)
	case event.KindLegacySet:
		return e.handleLegacySet(ctx, ev)
	case event.KindLegacyClear:
		if !e.flags.LegacyEnabled() {
			return xmpp.ErrorIQ(ev.Request, xmpp.ErrServiceUnavailable)
		}
		e.handleDelete(ctx, ev.User, false)
		return xmpp.ResultIQ(ev.Request, nil)
	case event.KindOutgoingPresence:
		return e.handleOutgoingPresence(ctx, ev)
	default:
		return nil
	}
}

// handlePublish reacts to a metadata publish on the PEP metadata node:
// validate the advertised id against the stored data item, then mirror the
// avatar towards vCard consumers.
func (e *Engine) handlePublish(ctx context.Context, ev event.Event) {
	if ev.Info.HasAttr("url") {
		// Externally hosted avatar: nothing local to validate or
		// propagate, just warm the cache through the read path.
		e.resolveAvatar(ctx, ev.User)
		return
	}

	av := e.readDataItem(ctx, ev.User, ev.Info)
	if av == nil {
		e.log.Debug().Str("user", ev.User.Bare()).Msg("publish without resolvable data item")
		return
	}

	if !av.IsValidHash(ev.InfoID) {
		e.log.Error().
			Str("user", ev.User.Bare()).
			Str("advertised", ev.InfoID).
			Str("computed", av.Hash()).
			Msg("metadata id does not match data item hash, update rejected")
		return
	}

	e.cachePut(ctx, ev.User, av)

	if e.flags.PEPOnly() {
		e.broadcastPresence(ctx, ev.User, av.Hash())
		return
	}
	e.writeVCard(ctx, ev.User, av)
	e.broadcastPresence(ctx, ev.User, e.announceHash(av))
}

// handleSet is the shared vCard/legacy upload path: build the avatar, then
// propagate it into PEP (data before metadata).
func (e *Engine) handleSet(ctx context.Context, user xmpp.JID, photo []byte, mimeType string) {
	av := e.buildAvatar(user, photo, mimeType)
	if av == nil {
		return
	}

	e.cachePut(ctx, user, av)

	e.writePEPData(ctx, user, av)
	e.writePEPMetadata(ctx, user, av)

	if e.flags.PEPOnly() {
		// PEP is the single source of truth: drop the vCard copy once
		// the avatar has been propagated.
		if err := e.vcards.ClearPhoto(ctx, user); err != nil {
			e.log.Error().Err(err).Str("user", user.Bare()).Msg("clear vcard photo failed")
		}
	}
}

// handleDelete is the shared removal path: drop the cache entry, clear both
// PEP nodes, optionally clear the vCard, and broadcast an empty hash.
func (e *Engine) handleDelete(ctx context.Context, user xmpp.JID, clearVCard bool) {
	e.cache.Remove(ctx, user.Bare())

	e.removePEPNode(ctx, user, xmpp.NSAvatarData)
	e.removePEPNode(ctx, user, xmpp.NSAvatarMetadata)

	if clearVCard {
		if err := e.vcards.ClearPhoto(ctx, user); err != nil {
			e.log.Error().Err(err).Str("user", user.Bare()).Msg("clear vcard photo failed")
		}
	}

	e.broadcastPresence(ctx, user, "")
}

func (e *Engine) handleLegacyQuery(ctx context.Context, ev event.Event) *xmpp.Stanza {
	if !e.flags.LegacyEnabled() {
		return xmpp.ErrorIQ(ev.Request, xmpp.ErrServiceUnavailable)
	}

	av := e.resolveAvatar(ctx, ev.User)
	if av == nil {
		return xmpp.ErrorIQ(ev.Request, xmpp.ErrItemNotFound)
	}

	query := xmpp.NewElement("query", xmpp.NSIQAvatar)
	data := query.AddChild("data", "")
	if mime := av.Metadata().Type; mime != "" {
		data.SetAttr("mimetype", mime)
	}
	data.SetText(av.Base64())
	return xmpp.ResultIQ(ev.Request, query)
}

func (e *Engine) handleLegacySet(ctx context.Context, ev event.Event) *xmpp.Stanza {
	if !e.flags.LegacyEnabled() {
		return xmpp.ErrorIQ(ev.Request, xmpp.ErrServiceUnavailable)
	}
	if ev.Malformed || len(ev.Photo) == 0 {
		return xmpp.ErrorIQ(ev.Request, xmpp.ErrBadRequest)
	}
	e.handleSet(ctx, ev.User, ev.Photo, ev.MimeType)
	return xmpp.ResultIQ(ev.Request, nil)
}

// handleOutgoingPresence injects the hash annotation into the user's own
// presence. The stanza is returned for forwarding whether or not an avatar
// resolved; without one it passes through untouched.
func (e *Engine) handleOutgoingPresence(ctx context.Context, ev event.Event) *xmpp.Stanza {
	av := e.resolveAvatar(ctx, ev.User)
	if av == nil {
		return ev.Request
	}
	Annotate(ev.Request.Root, e.announceHash(av), e.flags.LegacyEnabled())
	return ev.Request
}

// announceHash picks the advertised hash: the shrunk variant's when the
// vCard carries the shrunk image, the full content hash otherwise.
func (e *Engine) announceHash(av *avatar.Avatar) string {
	if !e.flags.PEPOnly() && e.flags.ShrinkVCard() && av.HasShrunk() {
		return av.ShrunkHash()
	}
	return av.Hash()
}

// Lookup resolves the user's current avatar through the normal read path.
// Nil means no avatar on record anywhere.
func (e *Engine) Lookup(ctx context.Context, user xmpp.JID) *avatar.Avatar {
	return e.resolveAvatar(ctx, user)
}

// Purge removes a user's avatar from every mechanism, including the vCard.
// This is the administrative wipe and runs regardless of the flags.
func (e *Engine) Purge(ctx context.Context, user xmpp.JID) {
	e.handleDelete(ctx, user, true)
}

// --- read path ---

// resolveAvatar is the shared read path: cache, then PEP, then vCard. A
// malformed cached snapshot counts as a miss. Successful store reads
// repopulate the cache.
func (e *Engine) resolveAvatar(ctx context.Context, user xmpp.JID) *avatar.Avatar {
	if snap, ok := e.cache.Get(ctx, user.Bare()); ok {
		if av := avatar.ParseSnapshot(snap); av != nil {
			return av
		}
		e.log.Warn().Str("user", user.Bare()).Msg("cached snapshot unreadable, falling through to stores")
	}

	av := e.readPEP(ctx, user)
	if av == nil {
		av = e.readVCard(ctx, user)
	}
	if av != nil {
		e.cachePut(ctx, user, av)
	}
	return av
}

// readPEP loads the avatar from the metadata and data nodes: first info
// element that does not point to an external URL, then the data item whose
// id matches it.
func (e *Engine) readPEP(ctx context.Context, user xmpp.JID) *avatar.Avatar {
	metaNode, err := e.pubsub.GetNode(ctx, user, xmpp.NSAvatarMetadata)
	if err != nil {
		e.logReadMiss(err, user, "metadata node")
		return nil
	}

	items, err := e.pubsub.Items(ctx, metaNode)
	if err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Msg("read metadata items failed")
		return nil
	}

	var info *xmpp.Element
	for _, item := range items {
		if item.Payload == nil {
			continue
		}
		candidate := item.Payload.Child("info")
		if candidate == nil || candidate.HasAttr("url") {
			continue
		}
		info = candidate
		break
	}
	if info == nil {
		return nil
	}
	return e.readDataItem(ctx, user, info)
}

func (e *Engine) readDataItem(ctx context.Context, user xmpp.JID, info *xmpp.Element) *avatar.Avatar {
	dataNode, err := e.pubsub.GetNode(ctx, user, xmpp.NSAvatarData)
	if err != nil {
		e.logReadMiss(err, user, "data node")
		return nil
	}
	items, err := e.pubsub.Items(ctx, dataNode)
	if err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Msg("read data items failed")
		return nil
	}

	id := info.Attr("id")
	for _, item := range items {
		if item.ID != id || item.Payload == nil || item.Payload.Text == "" {
			continue
		}
		av, err := avatar.FromBase64(item.Payload.Text)
		if err != nil {
			e.log.Error().Err(err).Str("user", user.Bare()).Msg("data item does not decode")
			return nil
		}
		e.applyInfo(av, info)
		e.shrink(user, av)
		return av
	}
	return nil
}

// applyInfo copies the advertised metadata onto a freshly decoded avatar.
// Dimensions measured from the actual image win over the advertised ones;
// the advertised values only fill in when the image was not decodable.
func (e *Engine) applyInfo(av *avatar.Avatar, info *xmpp.Element) {
	meta := av.Metadata()
	meta.ID = info.Attr("id")
	meta.Type = info.Attr("type")
	if meta.Width < 0 {
		if w, err := strconv.Atoi(info.Attr("width")); err == nil {
			meta.Width = w
		}
	}
	if meta.Height < 0 {
		if h, err := strconv.Atoi(info.Attr("height")); err == nil {
			meta.Height = h
		}
	}
}

func (e *Engine) readVCard(ctx context.Context, user xmpp.JID) *avatar.Avatar {
	photo, err := e.vcards.Photo(ctx, user)
	if err != nil {
		e.logReadMiss(err, user, "vcard photo")
		return nil
	}
	return e.buildAvatar(user, photo.Data, photo.MimeType)
}

// buildAvatar constructs the avatar for an uploaded photo: content hash as
// id, mime type sniffed from the bytes when not declared, shrunk variant
// best effort.
func (e *Engine) buildAvatar(user xmpp.JID, raw []byte, mimeType string) *avatar.Avatar {
	av, err := avatar.FromBytes(raw)
	if err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Msg("avatar build failed")
		return nil
	}
	if av.Metadata().Width < 0 {
		e.log.Warn().Str("user", user.Bare()).Msg("image dimensions not decodable")
	}

	if mimeType == "" {
		detected, err := sniffer.DetectMime(raw)
		if err != nil {
			e.log.Warn().Str("user", user.Bare()).Msg("mime type not declared and not detectable")
		}
		mimeType = detected
	}
	av.Metadata().Type = mimeType
	av.Metadata().ID = av.Hash()

	e.shrink(user, av)
	return av
}

func (e *Engine) shrink(user xmpp.JID, av *avatar.Avatar) {
	if err := av.Shrink(e.resizer, e.targetDim); err != nil {
		if errors.Is(err, resize.ErrUnsupported) {
			e.log.Debug().Str("user", user.Bare()).Str("mime", av.Metadata().Type).Msg("no resizer for mime type, keeping full image only")
			return
		}
		e.log.Warn().Err(err).Str("user", user.Bare()).Msg("avatar resize failed, keeping full image only")
	}
}

// --- write path ---

// writePEPData publishes the base64 image as the single item on the data
// node. This must complete before the metadata publish: metadata references
// the data item by id.
func (e *Engine) writePEPData(ctx context.Context, user xmpp.JID, av *avatar.Avatar) {
	payload := xmpp.NewElement("data", xmpp.NSAvatarData).SetText(av.Base64())
	if !e.publishItem(ctx, user, xmpp.NSAvatarData, av.Hash(), payload) {
		e.fallbackRoute(ctx, user, xmpp.NSAvatarData, av.Hash(), payload)
	}
}

func (e *Engine) writePEPMetadata(ctx context.Context, user xmpp.JID, av *avatar.Avatar) {
	payload := xmpp.NewElement("metadata", xmpp.NSAvatarMetadata)
	info := payload.AddChild("info", "")
	info.SetAttr("bytes", strconv.Itoa(av.SizeBytes()))
	info.SetAttr("id", av.Hash())
	info.SetAttr("height", strconv.Itoa(av.Metadata().Height))
	info.SetAttr("type", av.Metadata().Type)
	info.SetAttr("width", strconv.Itoa(av.Metadata().Width))

	if !e.publishItem(ctx, user, xmpp.NSAvatarMetadata, av.Hash(), payload) {
		e.fallbackRoute(ctx, user, xmpp.NSAvatarMetadata, av.Hash(), payload)
	}
}

// publishItem writes one item with replace-all semantics, creating the leaf
// node on first write.
func (e *Engine) publishItem(ctx context.Context, user xmpp.JID, ns, id string, payload *xmpp.Element) bool {
	node, err := e.pubsub.GetNode(ctx, user, ns)
	if errors.Is(err, store.ErrNodeNotFound) {
		node, err = e.pubsub.CreateLeafNode(ctx, user, ns)
	}
	if err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Str("node", ns).Msg("leaf node unavailable")
		return false
	}

	if err := e.pubsub.PublishSingleItem(ctx, node, id, payload); err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Str("node", ns).Msg("item publish failed")
		return false
	}
	return true
}

// fallbackRoute emits the equivalent publish request through the generic
// stanza router when the direct store write failed. Best effort only.
func (e *Engine) fallbackRoute(ctx context.Context, user xmpp.JID, ns, id string, payload *xmpp.Element) {
	pubsub := xmpp.NewElement("pubsub", xmpp.NSPubSub)
	publish := pubsub.AddChild("publish", "")
	publish.SetAttr("node", ns)
	item := publish.AddChild("item", "")
	item.SetAttr("id", id)
	item.Append(payload)

	iq := xmpp.NewIQ(xmpp.IQSet, user, pubsub)
	if err := e.router.Route(ctx, iq); err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Str("node", ns).Msg("fallback publish routing failed")
	}
}

// writeVCard stores the full or shrunk image per configuration, degrading
// to the full image when no shrunk variant exists.
func (e *Engine) writeVCard(ctx context.Context, user xmpp.JID, av *avatar.Avatar) {
	data := av.Bytes()
	if e.flags.ShrinkVCard() {
		if small := av.ShrunkBytes(); small != nil {
			data = small
		} else {
			e.log.Warn().Str("user", user.Bare()).Msg("shrunk variant unavailable, writing full image to vcard")
		}
	}

	if err := e.vcards.SetPhoto(ctx, user, data, av.Metadata().Type); err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Msg("vcard photo write failed, falling back to routed update")
		e.fallbackRouteVCard(ctx, user, data, av.Metadata().Type)
	}
}

func (e *Engine) fallbackRouteVCard(ctx context.Context, user xmpp.JID, data []byte, mimeType string) {
	vcard := xmpp.NewElement("vCard", xmpp.NSVCardTemp)
	photo := vcard.AddChild("PHOTO", "")
	photo.AddChild("TYPE", "").SetText(mimeType)
	photo.AddChild("BINVAL", "").SetText(base64.StdEncoding.EncodeToString(data))

	iq := xmpp.NewIQ(xmpp.IQSet, user, vcard)
	if err := e.router.Route(ctx, iq); err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Msg("fallback vcard routing failed")
	}
}

// removePEPNode deletes all items on the node and the node itself. A node
// that never existed is not an error.
func (e *Engine) removePEPNode(ctx context.Context, user xmpp.JID, ns string) {
	node, err := e.pubsub.GetNode(ctx, user, ns)
	if errors.Is(err, store.ErrNodeNotFound) {
		return
	}
	if err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Str("node", ns).Msg("node lookup failed")
		return
	}
	if err := e.pubsub.DeleteAllItems(ctx, node); err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Str("node", ns).Msg("delete items failed")
	}
	if err := e.pubsub.RemoveNode(ctx, node); err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Str("node", ns).Msg("remove node failed")
	}
}

// broadcastPresence routes the user's current presence with the hash
// annotation applied; an empty hash announces avatar removal.
func (e *Engine) broadcastPresence(ctx context.Context, user xmpp.JID, hash string) {
	presence, err := e.presence.CurrentPresence(ctx, user)
	if err != nil {
		if !errors.Is(err, store.ErrNoPresence) {
			e.log.Error().Err(err).Str("user", user.Bare()).Msg("presence lookup failed")
		}
		presence = xmpp.NewPresence(user)
	}

	Annotate(presence.Root, hash, e.flags.LegacyEnabled())
	if err := e.router.Route(ctx, presence); err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Msg("presence broadcast failed")
	}
}

func (e *Engine) cachePut(ctx context.Context, user xmpp.JID, av *avatar.Avatar) {
	snap, err := av.Snapshot()
	if err != nil {
		e.log.Error().Err(err).Str("user", user.Bare()).Msg("snapshot serialization failed")
		return
	}
	e.cache.Put(ctx, user.Bare(), snap)
}

func (e *Engine) logReadMiss(err error, user xmpp.JID, what string) {
	switch {
	case errors.Is(err, store.ErrNodeNotFound), errors.Is(err, store.ErrNoPhoto):
		e.log.Debug().Str("user", user.Bare()).Msgf("%s absent", what)
	default:
		e.log.Error().Err(err).Str("user", user.Bare()).Msgf("%s read failed", what)
	}
}
