package rewrite

// edits holds the pending changes to one ordered child list.
type edits[T comparable] struct {
	front   []T
	back    []T
	before  map[T][]T
	after   map[T][]T
	removed map[T]bool
	seen    map[T]bool
	reached bool
}

func newEdits[T comparable]() *edits[T] {
	return &edits[T]{
		before:  make(map[T][]T),
		after:   make(map[T][]T),
		removed: make(map[T]bool),
		seen:    make(map[T]bool),
	}
}

// apply clones src through clone and splices the recorded insertions in.
func (ed *edits[T]) apply(src []T, clone func(T) T) []T {
	ed.reached = true
	var zero T
	out := make([]T, 0, len(src)+len(ed.front)+len(ed.back))
	out = append(out, ed.front...)
	for _, item := range src {
		ed.seen[item] = true
		out = append(out, ed.before[item]...)
		if !ed.removed[item] {
			if n := clone(item); n != zero {
				out = append(out, n)
			}
		}
		out = append(out, ed.after[item]...)
	}
	return append(out, ed.back...)
}

// missed returns the anchors that never appeared in the list.
func (ed *edits[T]) missed() []T {
	var out []T
	check := func(item T) {
		if !ed.seen[item] {
			out = append(out, item)
		}
	}
	for item := range ed.before {
		check(item)
	}
	for item := range ed.after {
		check(item)
	}
	for item := range ed.removed {
		check(item)
	}
	return out
}

func cloneEach[T comparable](src []T, clone func(T) T) []T {
	if src == nil {
		return nil
	}
	var zero T
	out := make([]T, 0, len(src))
	for _, item := range src {
		if n := clone(item); n != zero {
			out = append(out, n)
		}
	}
	return out
}

// List records edits to one ordered child list of the source program:
// the statements of a block, the parameters of a function, the arguments of
// a call or the declarations of the program. Anchors are source nodes;
// inserted nodes must be new.
type List[T comparable] struct {
	c  *Context
	ed *edits[T]
}

// InsertBefore inserts n immediately before anchor.
func (l List[T]) InsertBefore(anchor, n T) {
	l.c.changed = true
	l.ed.before[anchor] = append(l.ed.before[anchor], n)
}

// InsertAfter inserts n immediately after anchor. Several insertions after
// the same anchor keep their call order.
func (l List[T]) InsertAfter(anchor, n T) {
	l.c.changed = true
	l.ed.after[anchor] = append(l.ed.after[anchor], n)
}

// InsertFront inserts n before every source item. Front insertions keep
// their call order.
func (l List[T]) InsertFront(n T) {
	l.c.changed = true
	l.ed.front = append(l.ed.front, n)
}

// InsertBack appends n after every source item.
func (l List[T]) InsertBack(n T) {
	l.c.changed = true
	l.ed.back = append(l.ed.back, n)
}

// Remove drops the source item n from the list.
func (l List[T]) Remove(n T) {
	l.c.changed = true
	l.ed.removed[n] = true
}
