package spec

import (
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// keyOrder records, for every mapping in the source document, the order in
// which its keys were declared. kin-openapi decodes into Go maps, so the
// order of schemas, properties, paths and content types would otherwise be
// lost.
type keyOrder map[string][]string

func indexKeyOrder(raw []byte) keyOrder {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil
	}
	order := keyOrder{}
	order.walk(&root, "")
	return order
}

func (o keyOrder) walk(n *yaml.Node, ptr string) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			o.walk(c, ptr)
		}
	case yaml.AliasNode:
		o.walk(n.Alias, ptr)
	case yaml.MappingNode:
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			keys = append(keys, key)
			o.walk(n.Content[i+1], ptr+"/"+escapeToken(key))
		}
		if _, seen := o[ptr]; !seen {
			o[ptr] = keys
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			o.walk(c, ptr+"/"+strconv.Itoa(i))
		}
	}
}

// rebase copies every entry under from to the same path under to. Used to
// expose Swagger 2.0 "definitions" order as "components/schemas".
func (o keyOrder) rebase(from, to string) {
	for ptr, keys := range o {
		if ptr == from || strings.HasPrefix(ptr, from+"/") {
			o[to+strings.TrimPrefix(ptr, from)] = keys
		}
	}
}

// Pointer builds a JSON pointer (without the leading '#') from raw tokens.
func Pointer(tokens ...string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(escapeToken(t))
	}
	return b.String()
}

func escapeToken(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// Keys returns the keys of m in the order the source document declared them
// under pointer. Keys the document does not know about (documents built in
// memory, or converted from Swagger 2.0) follow in sorted order.
func Keys[V any](d *Document, pointer string, m map[string]V) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	if d != nil {
		for _, k := range d.order[pointer] {
			if _, ok := m[k]; !ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	var rest []string
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
