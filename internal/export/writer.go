package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
)

// Output formats understood by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatDot  = "dot"
)

// Write renders doc to w in the given format.
func Write(w io.Writer, format string, doc *Document) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatDot:
		_, err := io.WriteString(w, Dot(doc))
		return err
	}
	return fonderrors.NewConfigError(fmt.Sprintf("unknown output format '%s' (want json, yaml or dot)", format), nil)
}

// Dot renders the policy graph: one box per decided state labelled with its
// operator, one double circle per goal reached, one edge per outcome.
func Dot(doc *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", strconv.Quote(doc.Problem))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	decided := make(map[string]bool, len(doc.Entries))
	for _, e := range doc.Entries {
		decided[e.State] = true
		label := e.State + "\n" + e.Operator
		if e.Distance >= 0 {
			label += fmt.Sprintf(" (d=%d)", e.Distance)
		}
		fmt.Fprintf(&b, "  %s [label=%s];\n", strconv.Quote(e.State), strconv.Quote(label))
	}

	var terminals []string
	seen := make(map[string]bool)
	for _, e := range doc.Entries {
		for _, to := range doc.Edges[e.State] {
			if !decided[to] && !seen[to] {
				seen[to] = true
				terminals = append(terminals, to)
			}
		}
	}
	sort.Strings(terminals)
	for _, t := range terminals {
		fmt.Fprintf(&b, "  %s [shape=doublecircle];\n", strconv.Quote(t))
	}

	for _, e := range doc.Entries {
		for _, to := range doc.Edges[e.State] {
			fmt.Fprintf(&b, "  %s -> %s;\n", strconv.Quote(e.State), strconv.Quote(to))
		}
	}
	b.WriteString("}\n")
	return b.String()
}
