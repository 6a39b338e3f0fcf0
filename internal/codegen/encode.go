package codegen

import (
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// plain converts the tree to maps; both encoders sort map keys.
func plain(n *Node) any {
	if n.IsLeaf() {
		return n.ID
	}
	out := make(map[string]any, len(n.Children))
	for k, child := range n.Children {
		out[k] = plain(child)
	}
	return out
}

func renderJSON(root *Node) ([]byte, error) {
	data, err := json.MarshalIndent(plain(root), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func renderYAML(root *Node) ([]byte, error) {
	data, err := yaml.Marshal(plain(root))
	if err != nil {
		return nil, err
	}
	return append([]byte("# "+headerText+"\n"), data...), nil
}
