package graph_test

import (
	"strings"
	"testing"

	"github.com/manifesto-ai/bridge/internal/presentation/graph"
	"github.com/manifesto-ai/bridge/internal/testutils"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/manifesto-ai/bridge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		def      runtime.Definition
		contains []string
	}{
		{
			name: "Schema Field Shape",
			def: runtime.Definition{
				Schema: schema.Schema{"data.name": schema.String()},
			},
			contains: []string{
				"data_name[\"data.name <br/> string\"]",
			},
		},
		{
			name: "Derived Value Edges",
			def: runtime.Definition{
				Derived: map[string]runtime.DerivationSpec{
					"derived.total": {Sum: []string{"data.a", "data.b"}},
				},
			},
			contains: []string{
				"derived_total{{\"derived.total <br/> sum\"}}",
				"data_a --> derived_total",
				"data_b --> derived_total",
			},
		},
		{
			name: "Action Preconditions And Writes",
			def: runtime.Definition{
				Actions: map[string]runtime.ActionSpec{
					"submit": {
						Preconditions: []domain.Precondition{{Path: "derived.ok", Expect: true}},
						Set:           map[string]any{"state.done": true},
					},
				},
			},
			contains: []string{
				"action_submit[[\"submit\"]]",
				"derived_ok -- \"== true\" --> action_submit",
				"action_submit -.-> state_done",
			},
		},
		{
			name: "Quote Escaping",
			def: runtime.Definition{
				Actions: map[string]runtime.ActionSpec{
					"go": {Preconditions: []domain.Precondition{{Path: "data.mode", Expect: `say "hi"`}}},
				},
			},
			contains: []string{
				"data_mode -- \"== say 'hi'\" --> action_go",
			},
		},
		{
			name: "Hidden Policy Style",
			def: runtime.Definition{
				Policies: map[string]domain.FieldPolicy{
					"data.secret": {Relevant: false},
					"data.shown":  {Relevant: true},
				},
			},
			contains: []string{
				"classDef hidden",
				"class data_secret hidden;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(tt.def)
			assert.Contains(t, out, "graph TD\n")
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			assert.NotContains(t, out, "class data_shown hidden;")
		})
	}
}

func TestGenerateMermaid_ProfileDefinition(t *testing.T) {
	def, err := runtime.LoadDefinition(strings.NewReader(testutils.ProfileDefinition))
	require.NoError(t, err)

	out := graph.GenerateMermaid(def)
	assert.Contains(t, out, "data_age --> derived_canSubmit")
	assert.Contains(t, out, "action_submit -.-> state_submitted")
	assert.Contains(t, out, "class data_secret hidden;")
}
