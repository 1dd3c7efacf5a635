package text

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Lundis/go-gameassets/preload"
)

// ErrMalformedXML is returned for XML and SVG payloads that do not parse.
var ErrMalformedXML = errors.New("text: malformed xml")

// Node is an element of a parsed XML document.
type Node struct {
	Name     xml.Name
	Attr     []xml.Attr
	Text     string
	Children []*Node
}

// AttrValue returns the value of the first attribute with the given local name.
func (n *Node) AttrValue(local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Find returns the first element with the given local name, searching n and
// its descendants depth first.
func (n *Node) Find(local string) *Node {
	if n.Name.Local == local {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(local); found != nil {
			return found
		}
	}
	return nil
}

func parseXML(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedXML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name, Attr: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += strings.TrimSpace(string(t))
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedXML)
	}
	return root, nil
}

func formatXML(item preload.Item, data []byte) (any, error) {
	root, err := parseXML(data)
	if err != nil {
		return nil, err
	}
	if item.Type == preload.TypeSVG && root.Name.Local != "svg" {
		return nil, fmt.Errorf("%w: root element is %q, not svg", ErrMalformedXML, root.Name.Local)
	}
	return root, nil
}
