package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Node is a generic XML element. Exports from the Congress and the Senate do
// not share a schema, so documents are decoded into this tree and probed.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string
}

// Child returns the first direct child named name (case-insensitive).
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child named name (case-insensitive).
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out
}

// InnerText returns the node text, or the newline-joined texts of its
// descendants when the node has element children.
func (n *Node) InnerText() string {
	if len(n.Children) == 0 {
		return n.Text
	}
	parts := make([]string, 0, len(n.Children)+1)
	if n.Text != "" {
		parts = append(parts, n.Text)
	}
	for _, c := range n.Children {
		if t := c.InnerText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Decode parses an XML document into a Node tree and returns its root.
func Decode(data []byte) (*Node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.CharsetReader = charsetReader

	var root *Node
	var stack []*Node
	breaks := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extract: decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if strings.EqualFold(t.Name.Local, "br") && len(stack) > 0 {
				// Line breaks inside procedural narratives are separators,
				// not elements.
				stack[len(stack)-1].Text += "\n"
				breaks++
				continue
			}
			node := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					node.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("extract: decode xml: multiple root elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if strings.EqualFold(t.Name.Local, "br") && breaks > 0 {
				breaks--
				continue
			}
			if len(stack) == 0 {
				return nil, fmt.Errorf("extract: decode xml: unbalanced end element %s", t.Name.Local)
			}
			top := stack[len(stack)-1]
			top.Text = strings.TrimSpace(top.Text)
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("extract: decode xml: empty document")
	}
	return root, nil
}

// charsetReader handles the legacy encodings seen in parliamentary exports.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "utf-8", "utf8", "":
		return input, nil
	}
	return nil, fmt.Errorf("extract: unsupported charset %q", label)
}
