package domain

// ChangeSet is an insertion-ordered set of paths.
// Adding a path already present keeps its original position.
// The zero value is ready to use. ChangeSet is not safe for concurrent use.
type ChangeSet struct {
	order []string
	index map[string]struct{}
}

// Add appends paths not yet in the set.
func (c *ChangeSet) Add(paths ...string) {
	if c.index == nil {
		c.index = make(map[string]struct{})
	}
	for _, p := range paths {
		if _, ok := c.index[p]; ok {
			continue
		}
		c.index[p] = struct{}{}
		c.order = append(c.order, p)
	}
}

// Len returns the number of paths in the set.
func (c *ChangeSet) Len() int {
	return len(c.order)
}

// Drain returns all paths in insertion order and empties the set.
func (c *ChangeSet) Drain() []string {
	out := c.order
	c.order = nil
	c.index = nil
	return out
}

// Reset empties the set.
func (c *ChangeSet) Reset() {
	c.order = nil
	c.index = nil
}
