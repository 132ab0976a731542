package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/manifesto-ai/bridge/pkg/runtime"
)

// GenerateMermaid produces a Mermaid flowchart of a runtime definition.
// It applies semantic styling:
// - Schema field: [Rectangle]
// - Derived value: {{Hexagon}}
// - Action: [[Subroutine]]
// Edges run from inputs to what depends on them; action writes are dotted.
// Fields whose policy makes them irrelevant are styled as hidden.
func GenerateMermaid(def runtime.Definition) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, path := range sortedKeys(def.Schema) {
		fmt.Fprintf(&sb, "    %s[\"%s <br/> %s\"]\n", sanitizeMermaidID(path), path, def.Schema[path].Name())
	}

	for _, path := range sortedKeys(def.Derived) {
		safeID := sanitizeMermaidID(path)
		spec := def.Derived[path]
		label := path
		inputs := spec.AllPresent
		switch {
		case len(spec.AllPresent) > 0:
			label += " <br/> all_present"
		case len(spec.Sum) > 0:
			label += " <br/> sum"
			inputs = spec.Sum
		}
		fmt.Fprintf(&sb, "    %s{{\"%s\"}}\n", safeID, label)
		for _, in := range inputs {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(in), safeID)
		}
	}

	for _, id := range sortedKeys(def.Actions) {
		spec := def.Actions[id]
		safeID := "action_" + sanitizeMermaidID(id)
		fmt.Fprintf(&sb, "    %s[[\"%s\"]]\n", safeID, id)
		for _, pre := range spec.Preconditions {
			// Escape double quotes in the expected value for the Mermaid label
			expect := strings.ReplaceAll(fmt.Sprintf("%v", pre.Expect), "\"", "'")
			fmt.Fprintf(&sb, "    %s -- \"== %s\" --> %s\n", sanitizeMermaidID(pre.Path), expect, safeID)
		}
		for _, target := range sortedKeys(spec.Set) {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, sanitizeMermaidID(target))
		}
	}

	var hidden []string
	for _, path := range sortedKeys(def.Policies) {
		if !def.Policies[path].Relevant {
			hidden = append(hidden, sanitizeMermaidID(path))
		}
	}
	if len(hidden) > 0 {
		sb.WriteString("\n    %% Policy Styles\n")
		sb.WriteString("    classDef hidden fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray: 5 5,color:#000;\n")
		for _, id := range hidden {
			fmt.Fprintf(&sb, "    class %s hidden;\n", id)
		}
	}

	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "[", "_")
	s = strings.ReplaceAll(s, "]", "_")
	return s
}
