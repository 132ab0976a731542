package paths_test

import (
	"testing"

	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []string
	}{
		{"Empty", "", []string{}},
		{"Single", "data", []string{"data"}},
		{"Dotted", "data.user.name", []string{"data", "user", "name"}},
		{"Index", "data.items[0]", []string{"data", "items", "0"}},
		{"Consecutive Brackets", "data.matrix[1][2]", []string{"data", "matrix", "1", "2"}},
		{"Single Quoted", "state['ui-mode']", []string{"state", "ui-mode"}},
		{"Double Quoted", `data["first.name"]`, []string{"data", "first.name"}},
		{"Bracket Then Dot", "data.items[0].title", []string{"data", "items", "0", "title"}},
		{"Leading Bracket", "[0].a", []string{"0", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paths.Parse(tt.path))
		})
	}
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "data", paths.Namespace("data.name"))
	assert.Equal(t, "state", paths.Namespace("state[0]"))
	assert.Equal(t, "derived", paths.Namespace("derived"))
	assert.Equal(t, "", paths.Namespace(""))
	assert.Equal(t, []string{"user", "name"}, paths.Trim("data.user.name"))
}

func TestGet(t *testing.T) {
	root := map[string]any{
		"user":  map[string]any{"name": "John", "tags": []any{"a", "b"}},
		"count": 3,
		"empty": nil,
	}

	t.Run("Nested", func(t *testing.T) {
		v, ok := paths.Get(root, []string{"user", "name"})
		assert.True(t, ok)
		assert.Equal(t, "John", v)
	})

	t.Run("Slice Index", func(t *testing.T) {
		v, ok := paths.Get(root, paths.Parse("user.tags[1]"))
		assert.True(t, ok)
		assert.Equal(t, "b", v)
	})

	t.Run("Empty Segments Return Root", func(t *testing.T) {
		v, ok := paths.Get(root, nil)
		assert.True(t, ok)
		assert.Equal(t, root, v)
	})

	t.Run("Missing Final Key", func(t *testing.T) {
		_, ok := paths.Get(root, []string{"user", "age"})
		assert.False(t, ok)
	})

	t.Run("Scalar Intermediate", func(t *testing.T) {
		_, ok := paths.Get(root, []string{"count", "x"})
		assert.False(t, ok)
	})

	t.Run("Nil Intermediate", func(t *testing.T) {
		_, ok := paths.Get(root, []string{"empty", "x"})
		assert.False(t, ok)
	})

	t.Run("Index Out Of Range", func(t *testing.T) {
		_, ok := paths.Get(root, paths.Parse("user.tags[5]"))
		assert.False(t, ok)
	})
}

func TestSet(t *testing.T) {
	t.Run("Creates Maps", func(t *testing.T) {
		root := paths.Set(map[string]any{}, []string{"user", "name"}, "Ann")
		assert.Equal(t, map[string]any{"user": map[string]any{"name": "Ann"}}, root)
	})

	t.Run("Creates Slices For Numeric Segments", func(t *testing.T) {
		root := paths.Set(nil, paths.Parse("items[1].title"), "second")
		items, ok := root["items"].([]any)
		require.True(t, ok, "expected a slice container")
		require.Len(t, items, 2)
		assert.Nil(t, items[0])
		assert.Equal(t, map[string]any{"title": "second"}, items[1])
	})

	t.Run("Replaces Scalar Intermediate", func(t *testing.T) {
		root := paths.Set(map[string]any{"a": 1}, []string{"a", "b"}, true)
		assert.Equal(t, map[string]any{"a": map[string]any{"b": true}}, root)
	})

	t.Run("Empty Segments Is A No-Op", func(t *testing.T) {
		root := map[string]any{"a": 1}
		got := paths.Set(root, []string{}, "ignored")
		assert.Equal(t, map[string]any{"a": 1}, got)
		assert.Equal(t, map[string]any{"a": 1}, root)
	})
}

func TestSet_BoundedGrowth(t *testing.T) {
	t.Run("Far Index Keys A Map", func(t *testing.T) {
		root := paths.Set(nil, paths.Parse("items.20000000"), "x")
		assert.Equal(t, map[string]any{"items": map[string]any{"20000000": "x"}}, root)
	})

	t.Run("Far Index Leaves Slice Unchanged", func(t *testing.T) {
		root := paths.Set(map[string]any{"tags": []any{"a"}}, paths.Parse("tags[5000000]"), "x")
		assert.Equal(t, []any{"a"}, root["tags"])
	})

	t.Run("Growth Within Bound", func(t *testing.T) {
		root := paths.Set(map[string]any{"tags": []any{"a"}}, paths.Parse("tags[3]"), "d")
		assert.Equal(t, []any{"a", nil, nil, "d"}, root["tags"])
	})
}

func TestFits(t *testing.T) {
	root := map[string]any{"tags": []any{"a", "b"}, "name": "Ann"}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"Key", "user.name", true},
		{"Existing Index", "tags[1]", true},
		{"Append", "tags[2]", true},
		{"Last Reachable", "tags[1025]", true},
		{"Past Slice Bound", "tags[1026]", false},
		{"New Slice Past Bound", "items[1024]", false},
		{"Below Scalar", "name[5000000]", false},
		{"Far Index Below Element", "tags[0].20000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paths.Fits(root, paths.Parse(tt.path)))
		})
	}
}

func TestParent(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		last   string
		ok     bool
	}{
		{"data.address.city", "data.address", "city", true},
		{"data.tags[0]", "data.tags", "0", true},
		{`data["first.name"]`, "data", "first.name", true},
		{"data.matrix[1][2]", "data.matrix[1]", "2", true},
		{"data", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			parent, last, ok := paths.Parent(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.parent, parent)
			assert.Equal(t, tt.last, last)
		})
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	inputs := []string{
		"name",
		"user.name",
		"user.address.city",
		"items[0]",
		"items[2].title",
		"matrix[1][0]",
		"labels['x-y']",
	}

	for _, p := range inputs {
		t.Run(p, func(t *testing.T) {
			segments := paths.Parse(p)
			root := paths.Set(map[string]any{"existing": true}, segments, 42)
			got, ok := paths.Get(root, segments)
			assert.True(t, ok)
			assert.Equal(t, 42, got)
			assert.Equal(t, true, root["existing"])
		})
	}
}

func TestFlatten(t *testing.T) {
	t.Run("Nested Maps", func(t *testing.T) {
		got := paths.Flatten(map[string]any{
			"name": "John",
			"address": map[string]any{
				"city": "Lisbon",
			},
		}, "data")
		assert.Equal(t, map[string]any{
			"data.name":         "John",
			"data.address.city": "Lisbon",
		}, got)
	})

	t.Run("Slices Are Atomic", func(t *testing.T) {
		got := paths.Flatten(map[string]any{"items": []any{1, 2, 3}}, "data")
		assert.Equal(t, map[string]any{"data.items": []any{1, 2, 3}}, got)
	})

	t.Run("Scalar Root", func(t *testing.T) {
		assert.Equal(t, map[string]any{"data.age": 30}, paths.Flatten(30, "data.age"))
	})

	t.Run("No Prefix", func(t *testing.T) {
		assert.Equal(t, map[string]any{"a.b": 1}, paths.Flatten(map[string]any{"a": map[string]any{"b": 1}}, ""))
	})
}
