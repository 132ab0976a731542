package testutils

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/stretchr/testify/require"
)

// ProfileDefinition is a small form: a name, a non-negative age and a submit action gated on both.
const ProfileDefinition = `
schema:
  data.name: string
  data.age: int,min=0
initial:
  data:
    name: ""
    age: null
  state:
    submitted: false
derived:
  derived.canSubmit:
    all_present: [data.name, data.age]
policies:
  data.secret:
    relevant: false
    editable: false
actions:
  submit:
    preconditions:
      - path: derived.canSubmit
        expect: true
    set:
      state.submitted: true
`

// NewProfileRuntime builds a runtime from ProfileDefinition.
// It fails the test immediately on error.
func NewProfileRuntime(t *testing.T, opts ...runtime.Option) *runtime.Runtime {
	t.Helper()
	def, err := runtime.LoadDefinition(strings.NewReader(ProfileDefinition))
	require.NoError(t, err, "Failed to load profile definition")
	return runtime.New(def, opts...)
}

// Write is one call observed by a Recorder.
type Write struct {
	Method string
	Values map[string]any
	At     time.Time
}

// Recorder is a non-reactive store that records every actuator call.
// It implements only the mandatory adapter and actuator methods.
type Recorder struct {
	mu     sync.Mutex
	writes []Write
	values map[string]any
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{values: make(map[string]any)}
}

func (r *Recorder) record(method string, values map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
		r.values[k] = v
	}
	r.writes = append(r.writes, Write{Method: method, Values: copied, At: time.Now()})
}

// Writes returns every recorded call in order.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// Paths returns every path written, in call order.
func (r *Recorder) Paths() []string {
	var out []string
	for _, w := range r.Writes() {
		for k := range w.Values {
			out = append(out, k)
		}
	}
	return out
}

func (r *Recorder) GetData(path string) any  { return r.get(path) }
func (r *Recorder) GetState(path string) any { return r.get(path) }

func (r *Recorder) get(path string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[path]
}

func (r *Recorder) CaptureData() map[string]any  { return nil }
func (r *Recorder) CaptureState() map[string]any { return nil }

func (r *Recorder) SetData(path string, value any) {
	r.record("SetData", map[string]any{path: value})
}

func (r *Recorder) SetState(path string, value any) {
	r.record("SetState", map[string]any{path: value})
}

// BatchRecorder is a Recorder that also accepts batched writes.
type BatchRecorder struct {
	*Recorder
}

// NewBatchRecorder creates an empty BatchRecorder.
func NewBatchRecorder() *BatchRecorder {
	return &BatchRecorder{Recorder: NewRecorder()}
}

func (r *BatchRecorder) SetManyData(values map[string]any) {
	r.record("SetManyData", values)
}

func (r *BatchRecorder) SetManyState(values map[string]any) {
	r.record("SetManyState", values)
}
