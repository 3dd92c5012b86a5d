package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/mightymop/avatarbridge/internal/engine"
	"github.com/mightymop/avatarbridge/internal/event"
	"github.com/mightymop/avatarbridge/internal/store"
	"github.com/mightymop/avatarbridge/internal/xmpp"
)

// PresenceRecorder keeps the last available presence per user so removal
// broadcasts have a base stanza to annotate.
type PresenceRecorder interface {
	RecordPresence(ctx context.Context, stanza *xmpp.Stanza) error
}

// Processor turns stream messages into engine events. Malformed messages are
// logged and acknowledged; they would fail identically on every retry.
type Processor struct {
	engine   *engine.Engine
	presence PresenceRecorder
	router   store.Router
	domain   string
	logger   zerolog.Logger
}

// stanzaMessage is the wire format on the stanza streams. Direction is "in"
// for stanzas entering the server core and "out" for stanzas leaving it;
// origin carries the bridge tag on stanzas the bridge itself emitted.
type stanzaMessage struct {
	Stanza    string `json:"stanza"`
	Origin    string `json:"origin"`
	Direction string `json:"direction"`
}

func NewProcessor(eng *engine.Engine, presence PresenceRecorder, router store.Router, domain string, logger zerolog.Logger) *Processor {
	return &Processor{
		engine:   eng,
		presence: presence,
		router:   router,
		domain:   domain,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	logger := p.logger.With().Str("correlation_id", ksuid.New().String()).Logger()

	var payload stanzaMessage
	if err := decodePayload(msg.Values, &payload); err != nil {
		logger.Warn().Err(err).Str("message_id", msg.ID).Msg("undecodable stream message dropped")
		return nil
	}

	stanza, err := xmpp.ParseStanza([]byte(payload.Stanza))
	if err != nil {
		logger.Warn().Err(err).Str("message_id", msg.ID).Msg("unparsable stanza dropped")
		return nil
	}

	dir := event.In
	if payload.Direction == "out" {
		dir = event.Out
	}

	if p.presence != nil && dir == event.In &&
		stanza.Kind == xmpp.KindPresence && payload.Origin != event.OriginBridge {
		if err := p.presence.RecordPresence(ctx, stanza); err != nil {
			logger.Warn().Err(err).Msg("record presence failed")
		}
	}

	ev, ok := event.Classify(stanza, dir, payload.Origin, p.domain)
	if !ok {
		return nil
	}

	logger.Debug().
		Stringer("event", ev.Kind).
		Str("user", ev.User.Bare()).
		Msg("stanza classified")

	if out := p.engine.HandleEvent(ctx, ev); out != nil {
		if err := p.router.Route(ctx, out); err != nil {
			logger.Error().Err(err).Stringer("event", ev.Kind).Msg("route engine reply failed")
		}
	}
	return nil
}

func decodePayload(values map[string]interface{}, out *stanzaMessage) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
