package bridge_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/manifesto-ai/bridge"
	"github.com/manifesto-ai/bridge/internal/config"
	"github.com/manifesto-ai/bridge/internal/testutils"
	"github.com/manifesto-ai/bridge/pkg/adapters/memory"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/ports"
	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T, rt ports.Runtime, store ports.Store, opts ...bridge.Option) *bridge.Bridge {
	t.Helper()
	b, err := bridge.New(rt, store, store, opts...)
	require.NoError(t, err)
	t.Cleanup(b.Dispose)
	return b
}

func TestNew_Rejects(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := memory.New()

	_, err := bridge.New(nil, store, store)
	assert.Error(t, err)

	_, err = bridge.New(rt, nil, store)
	assert.Error(t, err)

	_, err = bridge.New(rt, store, store, bridge.WithSyncMode("sideways"))
	assert.Error(t, err)

	_, err = bridge.New(rt, store, store, bridge.WithDebounce(-time.Second))
	assert.Error(t, err)

	_, err = bridge.New(rt, store, store, bridge.WithConfig(config.Sync{Mode: "nope"}))
	assert.Error(t, err)
}

func TestExecute_SetValuePushes(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := memory.New()
	b := newBridge(t, rt, store)

	require.NoError(t, b.Execute(context.Background(), domain.SetValue{Path: "data.name", Value: "John"}))

	assert.Equal(t, "John", rt.Get("data.name"))
	assert.Equal(t, "John", store.GetData("data.name"))
}

func TestExecute_ValidationError(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	b := newBridge(t, rt, memory.New())

	err := b.Execute(context.Background(), domain.SetValue{Path: "data.age", Value: -5})

	var be *domain.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.CodeValidation, be.Code)
	assert.Equal(t, "data.age", be.Path)
	assert.Nil(t, rt.Get("data.age"))
}

func TestExecute_SetManyReportsFailingPath(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	b := newBridge(t, rt, memory.New())

	err := b.Execute(context.Background(), domain.SetMany{Updates: map[string]any{
		"data.name": "John",
		"data.age":  -1,
	}})

	var be *domain.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.CodeValidation, be.Code)
	assert.Equal(t, "data.age", be.Path)
	assert.Equal(t, "", rt.Get("data.name"), "set many is atomic")

	require.NoError(t, b.Execute(context.Background(), &domain.SetMany{Updates: map[string]any{
		"data.name": "John",
		"data.age":  30,
	}}))
	assert.Equal(t, 30, rt.Get("data.age"))
}

func TestExecute_Action(t *testing.T) {
	ctx := context.Background()
	rt := testutils.NewProfileRuntime(t, runtime.WithAction("explode", runtime.Action{
		Effect: func(ctx context.Context, rt *runtime.Runtime, input any) error {
			panic("kaboom")
		},
	}))
	store := memory.New()
	b := newBridge(t, rt, store)

	err := b.Execute(ctx, domain.ExecuteAction{ActionID: "submit"})
	assert.Equal(t, domain.CodeExecution, domain.CodeOf(err))
	assert.ErrorIs(t, err, runtime.ErrPreconditionFailed)

	err = b.Execute(ctx, domain.ExecuteAction{ActionID: "explode"})
	assert.Equal(t, domain.CodeExecution, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "kaboom")

	require.NoError(t, b.Execute(ctx, domain.SetMany{Updates: map[string]any{"data.name": "John", "data.age": 25}}))
	require.NoError(t, b.Execute(ctx, domain.ExecuteAction{ActionID: "submit"}))
	assert.Equal(t, true, store.GetState("state.submitted"))
}

type unknownCommand struct {
	domain.Command
}

func TestExecute_UnrecognizedCommand(t *testing.T) {
	b := newBridge(t, testutils.NewProfileRuntime(t), memory.New())

	err := b.Execute(context.Background(), unknownCommand{})
	assert.Equal(t, domain.CodeExecution, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "unknownCommand")

	err = b.Execute(context.Background(), nil)
	assert.Equal(t, domain.CodeExecution, domain.CodeOf(err))

	var nilPtr *domain.SetValue
	err = b.Execute(context.Background(), nilPtr)
	assert.Equal(t, domain.CodeExecution, domain.CodeOf(err))
}

func TestIsActionAvailable(t *testing.T) {
	ctx := context.Background()
	rt := testutils.NewProfileRuntime(t, runtime.WithAction("reset", runtime.Action{}))
	b := newBridge(t, rt, memory.New())

	ok, err := b.IsActionAvailable("submit")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Execute(ctx, domain.SetValue{Path: "data.name", Value: "John"}))
	require.NoError(t, b.Execute(ctx, domain.SetValue{Path: "data.age", Value: 25}))

	ok, err = b.IsActionAvailable("submit")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.IsActionAvailable("reset")
	require.NoError(t, err)
	assert.True(t, ok, "no preconditions means available")
}

func TestGetAndFieldPolicy(t *testing.T) {
	b := newBridge(t, testutils.NewProfileRuntime(t), memory.New())

	v, err := b.Get("data.name")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	p, err := b.FieldPolicy("data.secret")
	require.NoError(t, err)
	assert.False(t, p.Editable)

	p, err = b.FieldPolicy("data.name")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFieldPolicy(), p)
}

func TestDispose(t *testing.T) {
	ctx := context.Background()
	rt := testutils.NewProfileRuntime(t)
	store := memory.New()
	b, err := bridge.New(rt, store, store)
	require.NoError(t, err)

	b.Dispose()
	b.Dispose()
	assert.True(t, b.Disposed())

	_, err = b.Get("data.name")
	assert.ErrorIs(t, err, domain.ErrDisposed)

	err = b.Execute(ctx, domain.SetValue{Path: "data.name", Value: "John"})
	assert.Equal(t, domain.CodeDisposed, domain.CodeOf(err))
	assert.ErrorIs(t, err, domain.ErrDisposed)

	_, err = b.Capture()
	assert.ErrorIs(t, err, domain.ErrDisposed)
	assert.ErrorIs(t, b.Sync(), domain.ErrDisposed)
	_, err = b.FieldPolicy("data.name")
	assert.ErrorIs(t, err, domain.ErrDisposed)
	_, err = b.IsActionAvailable("submit")
	assert.ErrorIs(t, err, domain.ErrDisposed)
	assert.Equal(t, domain.CodeDisposed, domain.CodeOf(b.Focus("data.name")))

	require.NoError(t, rt.Set("data.name", "Jane"))
	assert.Nil(t, store.GetData("data.name"), "disposed bridge no longer pushes")

	store.SetData("data.name", "Ann")
	assert.Equal(t, "Jane", rt.Get("data.name"), "disposed bridge no longer pulls")
}

func TestCapture(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := memory.New(memory.WithData(map[string]any{"name": "John", "age": 30}))
	b := newBridge(t, rt, store)

	snap, err := b.Capture()
	require.NoError(t, err)

	assert.Equal(t, "John", rt.Get("data.name"))
	assert.Equal(t, 30, rt.Get("data.age"))
	assert.Equal(t, "John", snap.Data["name"])
	assert.Equal(t, true, rt.Get("derived.canSubmit"))
}

func TestCapture_RejectedIsReported(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := memory.New(memory.WithData(map[string]any{"name": "John", "age": -3}))

	var reported []*domain.Error
	b := newBridge(t, rt, store, bridge.WithErrorHandler(func(err *domain.Error) {
		reported = append(reported, err)
	}))

	snap, err := b.Capture()
	require.NoError(t, err)
	assert.Equal(t, "", snap.Data["name"])

	require.Len(t, reported, 1)
	assert.Equal(t, domain.CodeValidation, reported[0].Code)
	assert.Equal(t, "data.age", reported[0].Path)
}

func TestPull(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := memory.New()

	var reported []*domain.Error
	newBridge(t, rt, store, bridge.WithErrorHandler(func(err *domain.Error) {
		reported = append(reported, err)
	}))

	store.SetData("data.name", "Ann")
	assert.Equal(t, "Ann", rt.Get("data.name"))

	store.SetData("data.age", -3)
	assert.Nil(t, rt.Get("data.age"), "rejected pull leaves runtime unchanged")
	require.Len(t, reported, 1)
	assert.Equal(t, "data.age", reported[0].Path)
	assert.Equal(t, -3, store.GetData("data.age"), "rejected pull does not overwrite the store")
}

func TestSyncModes(t *testing.T) {
	t.Run("push only", func(t *testing.T) {
		rt := testutils.NewProfileRuntime(t)
		store := memory.New()
		newBridge(t, rt, store, bridge.WithSyncMode(bridge.SyncPush))

		store.SetData("data.name", "Ann")
		assert.Equal(t, "", rt.Get("data.name"))

		require.NoError(t, rt.Set("data.name", "Bo"))
		assert.Equal(t, "Bo", store.GetData("data.name"))
	})

	t.Run("pull only", func(t *testing.T) {
		rt := testutils.NewProfileRuntime(t)
		store := memory.New()
		newBridge(t, rt, store, bridge.WithSyncMode(bridge.SyncPull))

		require.NoError(t, rt.Set("data.name", "Bo"))
		assert.Nil(t, store.GetData("data.name"))

		store.SetData("data.name", "Ann")
		assert.Equal(t, "Ann", rt.Get("data.name"))
	})
}

func TestFlush_DropsDerivedAndPartitions(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	rec := testutils.NewRecorder()
	_, err := bridge.New(rt, rec, rec)
	require.NoError(t, err)

	require.NoError(t, rt.SetMany(map[string]any{"data.name": "John", "data.age": 30, "state.submitted": true}))

	assert.ElementsMatch(t, []string{"data.age", "data.name", "state.submitted"}, rec.Paths())
	for _, w := range rec.Writes() {
		assert.Contains(t, []string{"SetData", "SetState"}, w.Method)
	}
}

func TestFlush_PrefersBatchedWriters(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	rec := testutils.NewBatchRecorder()
	_, err := bridge.New(rt, rec, rec)
	require.NoError(t, err)

	require.NoError(t, rt.SetMany(map[string]any{"data.name": "John", "data.age": 30, "state.submitted": true}))

	writes := rec.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "SetManyData", writes[0].Method)
	assert.Equal(t, map[string]any{"data.name": "John", "data.age": 30}, writes[0].Values)
	assert.Equal(t, "SetManyState", writes[1].Method)
	assert.Equal(t, map[string]any{"state.submitted": true}, writes[1].Values)
}

func TestDebounce_CollapsesRapidWrites(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	rec := testutils.NewRecorder()
	b, err := bridge.New(rt, rec, rec, bridge.WithDebounce(100*time.Millisecond))
	require.NoError(t, err)
	defer b.Dispose()

	var last time.Time
	for i := 1; i <= 4; i++ {
		last = time.Now()
		require.NoError(t, rt.Set("data.age", i))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return len(rec.Writes()) > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	writes := rec.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, map[string]any{"data.age": 4}, writes[0].Values)
	assert.GreaterOrEqual(t, writes[0].At.Sub(last), 100*time.Millisecond)
}

func TestSync_PushesEverythingAndCancelsTimer(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	rec := testutils.NewRecorder()
	b, err := bridge.New(rt, rec, rec, bridge.WithDebounce(time.Hour))
	require.NoError(t, err)
	defer b.Dispose()

	require.NoError(t, rt.Set("data.name", "John"))
	assert.Empty(t, rec.Writes())

	require.NoError(t, b.Sync())
	assert.ElementsMatch(t, []string{"data.name", "data.age", "state.submitted"}, rec.Paths())
	assert.Equal(t, "John", rec.GetData("data.name"))
}

func TestAutoSyncDisabled_StillNotifiesListeners(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	rec := testutils.NewRecorder()
	b, err := bridge.New(rt, rec, rec, bridge.WithAutoSync(false))
	require.NoError(t, err)
	defer b.Dispose()

	var seen [][]string
	b.Subscribe(func(_ domain.Snapshot, changed []string) {
		seen = append(seen, changed)
	})

	require.NoError(t, rt.Set("data.name", "John"))
	assert.Empty(t, rec.Writes())
	require.Len(t, seen, 1)
	assert.Equal(t, []string{"data.name"}, seen[0])

	require.NoError(t, b.Sync())
	assert.Equal(t, "John", rec.GetData("data.name"))
}

func TestSubscribe_ListenerPanicIsIsolated(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	b := newBridge(t, rt, memory.New())

	b.Subscribe(func(domain.Snapshot, []string) { panic("bad listener") })

	var got domain.Snapshot
	unsubscribe := b.Subscribe(func(s domain.Snapshot, _ []string) { got = s })

	require.NoError(t, b.Execute(context.Background(), domain.SetValue{Path: "data.name", Value: "John"}))
	assert.Equal(t, "John", got.Data["name"])

	unsubscribe()
	unsubscribe()
	require.NoError(t, b.Execute(context.Background(), domain.SetValue{Path: "data.name", Value: "Jane"}))
	assert.Equal(t, "John", got.Data["name"])
}

func TestSideChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("supported", func(t *testing.T) {
		store := memory.New(memory.WithAPIHandler(func(ctx context.Context, req ports.APIRequest) (any, error) {
			if req.URL == "/fail" {
				return nil, errors.New("unreachable")
			}
			return "pong", nil
		}))
		b := newBridge(t, testutils.NewProfileRuntime(t), store)

		require.NoError(t, b.Focus("data.name"))
		assert.Equal(t, "data.name", store.Focused())

		require.NoError(t, b.Navigate("/done", ""))
		assert.Equal(t, []memory.Navigation{{To: "/done", Mode: ports.NavigatePush}}, store.Navigations())

		resp, err := b.APICall(ctx, ports.APIRequest{Method: "GET", URL: "/ping"})
		require.NoError(t, err)
		assert.Equal(t, "pong", resp)

		_, err = b.APICall(ctx, ports.APIRequest{Method: "GET", URL: "/fail"})
		assert.Equal(t, domain.CodeAdapter, domain.CodeOf(err))

		v, err := b.Validity("data.name")
		require.NoError(t, err)
		assert.True(t, v.Valid)
	})

	t.Run("unsupported", func(t *testing.T) {
		rec := testutils.NewRecorder()
		b, err := bridge.New(testutils.NewProfileRuntime(t), rec, rec)
		require.NoError(t, err)
		defer b.Dispose()

		assert.Equal(t, domain.CodeAdapter, domain.CodeOf(b.Focus("data.name")))
		assert.Equal(t, domain.CodeAdapter, domain.CodeOf(b.Navigate("/x", ports.NavigateReplace)))
		_, err = b.APICall(ctx, ports.APIRequest{})
		assert.ErrorIs(t, err, domain.ErrUnsupported)
		_, err = b.Validity("data.name")
		assert.ErrorIs(t, err, domain.ErrUnsupported)
	})
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	rt := testutils.NewProfileRuntime(t)
	store := memory.New()

	var (
		mu       sync.Mutex
		flushes  []*domain.FlushEvent
		commands []*domain.CommandEvent
		pulls    []*domain.PullEvent
		captures []*domain.CaptureEvent
	)
	b := newBridge(t, rt, store, bridge.WithHooks(domain.Hooks{
		OnFlush:   func(_ context.Context, e *domain.FlushEvent) { mu.Lock(); flushes = append(flushes, e); mu.Unlock() },
		OnCommand: func(_ context.Context, e *domain.CommandEvent) { mu.Lock(); commands = append(commands, e); mu.Unlock() },
		OnPull:    func(_ context.Context, e *domain.PullEvent) { mu.Lock(); pulls = append(pulls, e); mu.Unlock() },
		OnCapture: func(_ context.Context, e *domain.CaptureEvent) { mu.Lock(); captures = append(captures, e); mu.Unlock() },
	}))

	require.NoError(t, b.Execute(ctx, domain.SetMany{Updates: map[string]any{"data.name": "John", "data.age": 30}}))
	_ = b.Execute(ctx, domain.SetValue{Path: "data.age", Value: -1})
	_, err := b.Capture()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, commands, 2)
	assert.Equal(t, domain.KindSetMany, commands[0].Kind)
	assert.Empty(t, commands[0].Code)
	assert.Equal(t, domain.CodeValidation, commands[1].Code)

	require.NotEmpty(t, flushes)
	assert.ElementsMatch(t, []string{"data.age", "data.name"}, flushes[0].DataPaths)
	assert.Equal(t, []string{"derived.canSubmit"}, flushes[0].Dropped)
	assert.True(t, flushes[0].Batched)

	require.NotEmpty(t, pulls, "pushed writes echo back through the reactive store")
	require.Len(t, captures, 1)
	assert.False(t, captures[0].Failed)
}

func TestConcurrentExecute(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := memory.New()
	b := newBridge(t, rt, store, bridge.WithSyncMode(bridge.SyncPush), bridge.WithDebounce(5*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Execute(context.Background(), domain.SetValue{Path: "data.age", Value: i})
		}(i)
	}
	wg.Wait()

	require.NoError(t, b.Sync())
	assert.Eventually(t, func() bool {
		return rt.Get("data.age") == store.GetData("data.age")
	}, time.Second, 10*time.Millisecond)
}

const addressDefinition = `
schema:
  data.address.zip: int,min=0
initial:
  data:
    address:
      city: A
`

func newAddressBridge(t *testing.T) (*runtime.Runtime, *memory.Store, *bridge.Bridge) {
	t.Helper()
	def, err := runtime.LoadDefinition(strings.NewReader(addressDefinition))
	require.NoError(t, err)
	rt := runtime.New(def)
	store := memory.New()
	b := newBridge(t, rt, store)
	require.NoError(t, b.Sync())
	require.Equal(t, "A", store.GetData("data.address.city"))
	return rt, store, b
}

func TestNested_SubtreeReplacement(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"object to scalar", "unknown"},
		{"object to empty object", map[string]any{}},
		{"object to nil", nil},
		{"object to other object", map[string]any{"zip": 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, store, b := newAddressBridge(t)

			require.NoError(t, b.Execute(context.Background(), domain.SetValue{Path: "data.address", Value: tt.value}))

			assert.Equal(t, tt.value, rt.Get("data.address"))
			assert.Equal(t, tt.value, store.GetData("data.address"))
		})
	}
}

func TestNested_PushAndPull(t *testing.T) {
	rt, store, b := newAddressBridge(t)
	ctx := context.Background()

	// Runtime → store, deep leaf
	require.NoError(t, b.Execute(ctx, domain.SetValue{Path: "data.address.city", Value: "B"}))
	assert.Equal(t, map[string]any{"city": "B"}, store.GetData("data.address"))

	// Runtime → store, removed key
	require.NoError(t, b.Execute(ctx, domain.SetValue{Path: "data.address", Value: map[string]any{"zip": 1000}}))
	assert.Equal(t, map[string]any{"zip": 1000}, store.GetData("data.address"))
	assert.Nil(t, store.GetData("data.address.city"))

	// Store → runtime, deep leaf
	store.SetData("data.address.city", "C")
	assert.Equal(t, map[string]any{"zip": 1000, "city": "C"}, rt.Get("data.address"))

	// Store → runtime, subtree replaced by a scalar
	store.SetData("data.address", "gone")
	assert.Equal(t, "gone", rt.Get("data.address"))

	// Store → runtime, nested rule still applies
	store.SetData("data.address", map[string]any{"zip": -1})
	assert.Equal(t, "gone", rt.Get("data.address"))
}

func TestFlush_PushesReplacedSubtreeOnce(t *testing.T) {
	def, err := runtime.LoadDefinition(strings.NewReader(addressDefinition))
	require.NoError(t, err)
	rt := runtime.New(def)
	rec := testutils.NewBatchRecorder()
	_, err = bridge.New(rt, rec, rec)
	require.NoError(t, err)

	require.NoError(t, rt.Set("data.address", "unknown"))

	writes := rec.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, map[string]any{"data.address": "unknown"}, writes[0].Values)
}

// gatedStore blocks its first batched data write until release is closed.
type gatedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) SetManyData(values map[string]any) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	g.Store.SetManyData(values)
}

func TestSync_WaitsForRunningFlush(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	b := newBridge(t, rt, store)

	go func() {
		_ = b.Execute(context.Background(), domain.SetValue{Path: "data.name", Value: "John"})
	}()
	<-store.entered

	done := make(chan error, 1)
	go func() { done <- b.Sync() }()

	select {
	case <-done:
		t.Fatal("Sync returned while another flush was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Sync did not return after the running flush ended")
	}

	assert.Equal(t, "John", store.GetData("data.name"))
	assert.Equal(t, false, store.GetState("state.submitted"))
}

func TestExecute_RejectsFarIndex(t *testing.T) {
	rt := testutils.NewProfileRuntime(t)
	store := memory.New()
	b := newBridge(t, rt, store)

	err := b.Execute(context.Background(), domain.SetValue{Path: "data.tags[5000000]", Value: "x"})

	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	assert.Nil(t, rt.Get("data.tags"))
	assert.Nil(t, store.GetData("data.tags"))
}
