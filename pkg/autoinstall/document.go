package autoinstall

import (
	"fmt"
	"strings"

	"github.com/paranoidnas/media/internal/constants"
	"gopkg.in/yaml.v3"
)

// keyIndex returns the index of key in the mapping content, -1 if missing.
func keyIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// lookup walks the given mapping keys and returns the node at the end of the path.
func lookup(n *yaml.Node, path ...string) (*yaml.Node, error) {
	for i, key := range path {
		if n.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %s is not a mapping", constants.ErrDocumentShape, strings.Join(path[:i], "."))
		}
		idx := keyIndex(n, key)
		if idx < 0 {
			return nil, fmt.Errorf("%w: missing %s", constants.ErrDocumentShape, strings.Join(path[:i+1], "."))
		}
		n = n.Content[idx+1]
	}
	return n, nil
}

// lookupKind is lookup plus a check on the kind of the found node.
func lookupKind(n *yaml.Node, kind yaml.Kind, path ...string) (*yaml.Node, error) {
	found, err := lookup(n, path...)
	if err != nil {
		return nil, err
	}
	if found.Kind != kind {
		return nil, fmt.Errorf("%w: %s has an unexpected node kind", constants.ErrDocumentShape, strings.Join(path, "."))
	}
	return found, nil
}

// scalarValue returns the value of a scalar key, false when absent or not a scalar.
func scalarValue(m *yaml.Node, key string) (string, bool) {
	idx := keyIndex(m, key)
	if idx < 0 || m.Content[idx+1].Kind != yaml.ScalarNode {
		return "", false
	}
	return m.Content[idx+1].Value, true
}

// setScalar sets key to a string value. An existing scalar node is edited in
// place so its quoting style and comments survive; a missing key is appended.
func setScalar(m *yaml.Node, key, value string) {
	idx := keyIndex(m, key)
	if idx >= 0 && m.Content[idx+1].Kind == yaml.ScalarNode {
		v := m.Content[idx+1]
		v.Tag = "!!str"
		v.Value = value
		return
	}
	if idx >= 0 {
		m.Content[idx+1] = strNode(value)
		return
	}
	m.Content = append(m.Content, strNode(key), strNode(value))
}

// setNode sets key to the given node, appending the key when missing.
func setNode(m *yaml.Node, key string, value *yaml.Node) {
	if idx := keyIndex(m, key); idx >= 0 {
		m.Content[idx+1] = value
		return
	}
	m.Content = append(m.Content, strNode(key), value)
}

// ensureMapping returns the mapping under key, creating an empty one when missing.
func ensureMapping(m *yaml.Node, key string) (*yaml.Node, error) {
	idx := keyIndex(m, key)
	if idx < 0 {
		child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		m.Content = append(m.Content, strNode(key), child)
		return child, nil
	}
	child := m.Content[idx+1]
	if child.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s is not a mapping", constants.ErrDocumentShape, key)
	}
	return child, nil
}

// deleteKey removes key and its value from the mapping. Returns false if it wasn't there.
func deleteKey(m *yaml.Node, key string) bool {
	idx := keyIndex(m, key)
	if idx < 0 {
		return false
	}
	m.Content = append(m.Content[:idx], m.Content[idx+2:]...)
	return true
}

// replaceItems swaps the items of a sequence keeping the sequence node itself.
func replaceItems(seq *yaml.Node, values []string) {
	style := yaml.Style(0)
	if len(seq.Content) > 0 && seq.Content[0].Kind == yaml.ScalarNode {
		// new items follow the quoting of the placeholder they replace
		style = seq.Content[0].Style
	}
	items := make([]*yaml.Node, 0, len(values))
	for _, v := range values {
		n := strNode(v)
		n.Style = style
		items = append(items, n)
	}
	seq.Content = items
}

func strNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func seqNode(values []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range values {
		n.Content = append(n.Content, strNode(v))
	}
	return n
}
