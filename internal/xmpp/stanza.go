package xmpp

import (
	"fmt"

	"github.com/google/uuid"
)

// Stanza kinds the bridge observes.
const (
	KindIQ       = "iq"
	KindPresence = "presence"
	KindMessage  = "message"
)

// IQ types.
const (
	IQGet    = "get"
	IQSet    = "set"
	IQResult = "result"
	IQError  = "error"
)

// ErrorCondition is a stanza-level error reported back to legacy callers.
type ErrorCondition struct {
	Name string
	Type string
}

var (
	ErrBadRequest         = ErrorCondition{Name: "bad-request", Type: "modify"}
	ErrServiceUnavailable = ErrorCondition{Name: "service-unavailable", Type: "cancel"}
	ErrItemNotFound       = ErrorCondition{Name: "item-not-found", Type: "cancel"}
)

const nsStanzaErrors = "urn:ietf:params:xml:ns:xmpp-stanzas"

// Stanza wraps a parsed top-level stanza element with its addressing fields
// pulled out. Root always holds the full element tree.
type Stanza struct {
	Kind string
	Type string
	ID   string
	From JID
	To   JID
	Root *Element
}

// ParseStanza decodes a raw stanza document. Unknown top-level elements are
// passed through with their local name as Kind; the classifier ignores them.
func ParseStanza(data []byte) (*Stanza, error) {
	root, err := ParseElement(data)
	if err != nil {
		return nil, err
	}
	s := &Stanza{
		Kind: root.Name,
		Type: root.Attr("type"),
		ID:   root.Attr("id"),
		Root: root,
	}
	if from := root.Attr("from"); from != "" {
		j, err := ParseJID(from)
		if err != nil {
			return nil, fmt.Errorf("stanza from: %w", err)
		}
		s.From = j
	}
	if to := root.Attr("to"); to != "" {
		j, err := ParseJID(to)
		if err != nil {
			return nil, fmt.Errorf("stanza to: %w", err)
		}
		s.To = j
	}
	return s, nil
}

// Payload returns the first child element of an IQ stanza, or nil.
func (s *Stanza) Payload() *Element {
	if s.Root == nil || len(s.Root.Children) == 0 {
		return nil
	}
	return s.Root.Children[0]
}

// PayloadNS returns the IQ child element qualified by the given namespace.
func (s *Stanza) PayloadNS(space string) *Element {
	if s.Root == nil {
		return nil
	}
	for _, c := range s.Root.Children {
		if c.Space == space {
			return c
		}
	}
	return nil
}

// NewIQ builds an outgoing iq stanza with a fresh id.
func NewIQ(iqType string, from JID, payload *Element) *Stanza {
	root := NewElement("iq", "jabber:client")
	root.SetAttr("type", iqType)
	id := uuid.NewString()
	root.SetAttr("id", id)
	if !from.IsZero() {
		root.SetAttr("from", from.String())
	}
	if payload != nil {
		root.Append(payload)
	}
	return &Stanza{Kind: KindIQ, Type: iqType, ID: id, From: from, Root: root}
}

// ResultIQ builds the result reply for a request, swapping from/to.
func ResultIQ(req *Stanza, payload *Element) *Stanza {
	root := NewElement("iq", "jabber:client")
	root.SetAttr("type", IQResult)
	root.SetAttr("id", req.ID)
	if !req.To.IsZero() {
		root.SetAttr("from", req.To.String())
	}
	if !req.From.IsZero() {
		root.SetAttr("to", req.From.String())
	}
	if payload != nil {
		root.Append(payload)
	}
	return &Stanza{Kind: KindIQ, Type: IQResult, ID: req.ID, From: req.To, To: req.From, Root: root}
}

// ErrorIQ builds the error reply for a request. The original payload is
// echoed back ahead of the error element, as servers do.
func ErrorIQ(req *Stanza, cond ErrorCondition) *Stanza {
	reply := ResultIQ(req, req.Payload())
	reply.Type = IQError
	reply.Root.SetAttr("type", IQError)
	errEl := reply.Root.AddChild("error", "jabber:client")
	errEl.SetAttr("type", cond.Type)
	errEl.AddChild(cond.Name, nsStanzaErrors)
	return reply
}

// NewPresence builds a bare available presence from the given sender.
func NewPresence(from JID) *Stanza {
	root := NewElement("presence", "jabber:client")
	id := uuid.NewString()
	root.SetAttr("id", id)
	if !from.IsZero() {
		root.SetAttr("from", from.String())
	}
	return &Stanza{Kind: KindPresence, ID: id, From: from, Root: root}
}
