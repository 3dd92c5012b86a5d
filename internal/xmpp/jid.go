package xmpp

import (
	"errors"
	"strings"
)

// JID is a parsed XMPP address. The bridge keys everything on the bare form
// (node@domain); the resource is kept only so replies can be addressed back
// to the originating session.
type JID struct {
	Node     string
	Domain   string
	Resource string
}

var ErrBadJID = errors.New("malformed jid")

func ParseJID(s string) (JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return JID{}, ErrBadJID
	}

	var j JID
	if idx := strings.Index(s, "/"); idx >= 0 {
		j.Resource = s[idx+1:]
		s = s[:idx]
	}
	if idx := strings.Index(s, "@"); idx >= 0 {
		j.Node = s[:idx]
		s = s[idx+1:]
	}
	if s == "" {
		return JID{}, ErrBadJID
	}
	j.Domain = s
	return j, nil
}

// Bare returns node@domain, dropping any resource.
func (j JID) Bare() string {
	if j.Node == "" {
		return j.Domain
	}
	return j.Node + "@" + j.Domain
}

func (j JID) String() string {
	if j.Resource == "" {
		return j.Bare()
	}
	return j.Bare() + "/" + j.Resource
}

func (j JID) IsZero() bool {
	return j.Node == "" && j.Domain == ""
}
