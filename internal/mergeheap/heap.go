// Package mergeheap provides the active-set heap used by the k-way merge.
package mergeheap

// Heap is a min-heap of source indices. Ordering is delegated to less,
// which compares the current head records of two sources, so the heap
// never copies records. Uses index-based heap for O(log n) push/pop.
//
// A source stays in the heap while it has records; removing it with Pop
// is how a source is retired.
type Heap struct {
	indices []int
	less    func(a, b int) bool
}

// New returns an empty heap with room for capacity sources.
func New(capacity int, less func(a, b int) bool) *Heap {
	return &Heap{
		indices: make([]int, 0, capacity),
		less:    less,
	}
}

// Len returns the number of active sources.
func (h *Heap) Len() int {
	return len(h.indices)
}

// Push adds a source. O(log n).
func (h *Heap) Push(idx int) {
	h.indices = append(h.indices, idx)
	h.up(len(h.indices) - 1)
}

// Top returns the source with the smallest head. The heap must be non-empty.
func (h *Heap) Top() int {
	return h.indices[0]
}

// Pop removes and returns the top source.
func (h *Heap) Pop() int {
	n := len(h.indices) - 1
	h.swap(0, n)
	h.down(0, n)
	idx := h.indices[n]
	h.indices = h.indices[:n]
	return idx
}

// Fix restores heap order after the top source's head changed.
func (h *Heap) Fix() {
	h.down(0, len(h.indices))
}

func (h *Heap) swap(i, j int) {
	h.indices[i], h.indices[j] = h.indices[j], h.indices[i]
}

func (h *Heap) lessAt(i, j int) bool {
	a, b := h.indices[i], h.indices[j]
	if h.less(a, b) {
		return true
	}
	if h.less(b, a) {
		return false
	}
	// Deterministic tie-break by index
	return a < b
}

func (h *Heap) up(j int) {
	for {
		i := (j - 1) / 2 // parent
		if i == j || !h.lessAt(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h *Heap) down(i, n int) {
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1 // left child
		if j2 := j1 + 1; j2 < n && h.lessAt(j2, j1) {
			j = j2 // right child
		}
		if !h.lessAt(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
}
