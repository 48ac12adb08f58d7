package registry

import (
	"context"
	"fmt"
	"strings"
)

// Pointer renders a substitution token referring to a per-node attribute.
// Consumers of the store expand the token at read time, so the underlying
// value can change without republishing every record embedding it.
func Pointer(node, key string) string {
	return "${reg:" + node + "/" + key + "}"
}

// maxExpandDepth bounds recursive expansion; a pointer chain deeper than
// this is treated as a cycle.
const maxExpandDepth = 10

// Expand resolves every ${reg:<node>/<key>} token in s against the store,
// recursively. Returns an error on unresolvable tokens or pointer cycles.
func Expand(ctx context.Context, store Store, s string) (string, error) {
	return expand(ctx, store, s, 0)
}

func expand(ctx context.Context, store Store, s string, depth int) (string, error) {
	if depth > maxExpandDepth {
		return "", fmt.Errorf("registry: substitution cycle expanding %q", s)
	}

	var out strings.Builder
	for {
		start := strings.Index(s, "${reg:")
		if start < 0 {
			out.WriteString(s)
			return out.String(), nil
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			out.WriteString(s)
			return out.String(), nil
		}
		end += start

		out.WriteString(s[:start])
		ref := s[start+len("${reg:") : end]
		node, key, ok := strings.Cut(ref, "/")
		if !ok {
			return "", fmt.Errorf("registry: malformed substitution token %q", s[start:end+1])
		}

		value, err := store.Get(ctx, NodeKey(node, key))
		if err != nil {
			return "", fmt.Errorf("registry: expanding %q: %w", ref, err)
		}
		expanded, err := expand(ctx, store, value, depth+1)
		if err != nil {
			return "", err
		}
		out.WriteString(expanded)

		s = s[end+1:]
	}
}
