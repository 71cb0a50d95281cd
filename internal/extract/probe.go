package extract

import "strings"

// DefaultRootPaths lists the nesting shapes seen in Congress and Senate
// exports, in probe order. The last segment names the entry element.
var DefaultRootPaths = [][]string{
	{"results", "result"},
	{"iniciativas", "iniciativa"},
	{"data", "item"},
	{"root", "row"},
	{"leyes", "ley"},
	{"response", "results", "result"},
}

// Probe walks paths in order and returns the entries of the first one that
// yields a non-empty collection, plus the path that matched. A document whose
// root children all share one element name is accepted as a last resort.
func Probe(root *Node, paths [][]string) ([]*Node, []string) {
	if root == nil {
		return nil, nil
	}
	for _, path := range paths {
		if entries := probePath(root, path); len(entries) > 0 {
			return entries, path
		}
	}
	if name, ok := homogeneousChildren(root); ok {
		return root.Children, []string{root.Name, name}
	}
	return nil, nil
}

func probePath(root *Node, path []string) []*Node {
	if len(path) < 2 || !strings.EqualFold(root.Name, path[0]) {
		return nil
	}
	parent := root
	for _, seg := range path[1 : len(path)-1] {
		parent = parent.Child(seg)
		if parent == nil {
			return nil
		}
	}
	return parent.ChildrenNamed(path[len(path)-1])
}

func homogeneousChildren(n *Node) (string, bool) {
	if len(n.Children) == 0 {
		return "", false
	}
	name := n.Children[0].Name
	for _, c := range n.Children[1:] {
		if !strings.EqualFold(c.Name, name) {
			return "", false
		}
	}
	// A collection of leaf values is a single record, not a list of them.
	if len(n.Children[0].Children) == 0 {
		return "", false
	}
	return name, true
}

// Fields flattens an entry element into an upper-cased field map. Attributes
// are included; nested elements contribute their joined inner text.
func Fields(entry *Node) map[string]string {
	out := make(map[string]string, len(entry.Children)+len(entry.Attrs))
	for k, v := range entry.Attrs {
		out[strings.ToUpper(k)] = strings.TrimSpace(v)
	}
	for _, c := range entry.Children {
		key := strings.ToUpper(c.Name)
		val := strings.TrimSpace(c.InnerText())
		if prev, ok := out[key]; ok && prev != "" {
			if val != "" {
				out[key] = prev + "\n" + val
			}
			continue
		}
		out[key] = val
	}
	return out
}

// Lookup returns the first non-empty value among keys.
func Lookup(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return v
		}
	}
	return ""
}
