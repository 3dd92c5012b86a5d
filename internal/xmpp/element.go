package xmpp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Element is a generic XML element tree, the loose payload representation
// used for stanza children (pubsub items, vCards, presence annotations).
// Mixed content is not supported: an element carries either text or child
// elements, which is all the avatar protocol surface needs.
type Element struct {
	Name     string
	Space    string
	Attrs    []Attr
	Text     string
	Children []*Element
}

type Attr struct {
	Name  string
	Value string
}

func NewElement(name, space string) *Element {
	return &Element{Name: name, Space: space}
}

// Attr returns the value of the named attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

func (e *Element) HasAttr(name string) bool {
	for _, a := range e.Attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Child returns the first child with the given local name, any namespace.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildNS returns the first child matching both local name and namespace.
func (e *Element) ChildNS(name, space string) *Element {
	for _, c := range e.Children {
		if c.Name == name && c.Space == space {
			return c
		}
	}
	return nil
}

// AddChild creates, appends and returns a child element. An empty space
// inherits the parent namespace when rendered.
func (e *Element) AddChild(name, space string) *Element {
	c := &Element{Name: name, Space: space}
	e.Children = append(e.Children, c)
	return c
}

func (e *Element) Append(c *Element) *Element {
	e.Children = append(e.Children, c)
	return e
}

func (e *Element) SetText(text string) *Element {
	e.Text = text
	return e
}

// XML renders the element tree. xmlns attributes are emitted wherever an
// element's namespace differs from its parent's.
func (e *Element) XML() string {
	var buf bytes.Buffer
	e.render(&buf, "")
	return buf.String()
}

func (e *Element) render(buf *bytes.Buffer, parentSpace string) {
	buf.WriteByte('<')
	buf.WriteString(e.Name)
	if e.Space != "" && e.Space != parentSpace {
		buf.WriteString(` xmlns="`)
		escapeAttr(buf, e.Space)
		buf.WriteByte('"')
	}
	for _, a := range e.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		escapeAttr(buf, a.Value)
		buf.WriteByte('"')
	}
	if e.Text == "" && len(e.Children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if e.Text != "" {
		_ = xml.EscapeText(buf, []byte(e.Text))
	}
	space := e.Space
	if space == "" {
		space = parentSpace
	}
	for _, c := range e.Children {
		c.render(buf, space)
	}
	buf.WriteString("</")
	buf.WriteString(e.Name)
	buf.WriteByte('>')
}

func escapeAttr(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}

var ErrNoElement = errors.New("no element in document")

// ParseElement reads a single element tree from raw XML. Namespace prefixes
// are resolved by the decoder; the resulting tree carries namespace URIs.
func ParseElement(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNoElement
		}
		if err != nil {
			return nil, fmt.Errorf("parse element: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decodeElement(dec, start)
		}
	}
}

func decodeElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{
		Name:  start.Name.Local,
		Space: start.Name.Space,
	}
	for _, a := range start.Attr {
		if a.Name.Local == "xmlns" || a.Name.Space == "xmlns" {
			continue
		}
		el.Attrs = append(el.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse element: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			el.Text = strings.TrimSpace(text.String())
			return el, nil
		}
	}
}
