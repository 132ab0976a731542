package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
)

// SnapshotMarkdown renders a snapshot, plus optional derived values, as markdown tables.
// Rows are sorted by path; values are JSON encoded.
func SnapshotMarkdown(title string, snapshot domain.Snapshot, derived map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", title)

	section(&sb, domain.NamespaceData, paths.Flatten(snapshot.Data, string(domain.NamespaceData)))
	section(&sb, domain.NamespaceState, paths.Flatten(snapshot.State, string(domain.NamespaceState)))
	if len(derived) > 0 {
		section(&sb, domain.NamespaceDerived, derived)
	}
	return sb.String()
}

func section(sb *strings.Builder, ns domain.Namespace, values map[string]any) {
	fmt.Fprintf(sb, "\n## %s\n\n", ns)
	if len(values) == 0 {
		sb.WriteString("_empty_\n")
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString("| Path | Value |\n")
	sb.WriteString("| --- | --- |\n")
	for _, k := range keys {
		fmt.Fprintf(sb, "| `%s` | %s |\n", k, cell(values[k]))
	}
}

func cell(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.ReplaceAll(string(raw), "|", "\\|")
}
