package ports

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the Adapter/Actuator contract. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Set and Get Data", func(t *testing.T) {
		store := newStore(t)

		store.SetData("data.name", "John")
		store.SetData("data.address.city", "Lisbon")

		assert.Equal(t, "John", store.GetData("data.name"))
		assert.Equal(t, "Lisbon", store.GetData("data.address.city"))
		assert.Nil(t, store.GetData("data.missing"))
	})

	t.Run("Set and Get State", func(t *testing.T) {
		store := newStore(t)

		store.SetState("state.loading", true)

		assert.Equal(t, true, store.GetState("state.loading"))
		assert.Nil(t, store.GetData("data.loading"), "state writes must not leak into data")
	})

	t.Run("Capture Is Flat And Prefixed", func(t *testing.T) {
		store := newStore(t)

		store.SetData("data.name", "John")
		store.SetData("data.tags", []any{"a", "b"})
		store.SetData("data.address.city", "Lisbon")
		store.SetState("state.step", "review")

		data := store.CaptureData()
		assert.Equal(t, "John", data["data.name"])
		assert.Equal(t, []any{"a", "b"}, data["data.tags"], "slices must be captured whole")
		assert.Equal(t, "Lisbon", data["data.address.city"])
		assert.NotContains(t, data, "state.step")

		state := store.CaptureState()
		assert.Equal(t, map[string]any{"state.step": "review"}, state)
	})

	t.Run("Batched Writes", func(t *testing.T) {
		store := newStore(t)

		if w, ok := store.(BatchDataWriter); ok {
			w.SetManyData(map[string]any{"data.a": "1", "data.b": "2"})
			assert.Equal(t, "1", store.GetData("data.a"))
			assert.Equal(t, "2", store.GetData("data.b"))
		}
		if w, ok := store.(BatchStateWriter); ok {
			w.SetManyState(map[string]any{"state.x": true})
			assert.Equal(t, true, store.GetState("state.x"))
		}
	})

	t.Run("Subscribe Reports Changed Paths", func(t *testing.T) {
		store := newStore(t)
		sub, ok := store.(Subscribable)
		if !ok {
			t.Skip("store is not reactive")
		}

		var (
			mu   sync.Mutex
			seen []string
		)
		unsubscribe := sub.Subscribe(func(changed []string) {
			mu.Lock()
			defer mu.Unlock()
			assert.NotEmpty(t, changed, "notifications must carry at least one path")
			seen = append(seen, changed...)
		})

		store.SetData("data.name", "Ann")

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			for _, p := range seen {
				if p == "data.name" {
					return true
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond)

		unsubscribe()
		unsubscribe() // idempotent
	})
}
