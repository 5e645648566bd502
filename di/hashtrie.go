package di

import "sync/atomic"

// Hashable is the constraint a HashTrie key must satisfy: comparable (so
// hash collisions can be resolved by equality) and able to produce its own
// stable hash.
type Hashable interface {
	comparable
	TrieHash() uint64
}

// HashTrie is a persistent, immutable, AVL-balanced map keyed by
// hash(key), with a conflict list per node for keys that collide on hash.
// Every mutating operation returns a new root; the original trie is left
// untouched. This is what backs the container's resolution cache and
// factored-expression cache: readers walk a snapshot without locking,
// writers publish a new root via compare-and-swap (see AtomicTrie).
type HashTrie[K Hashable] struct {
	root *htNode[K]
}

type htEntry[K Hashable] struct {
	key   K
	value any
}

type htNode[K Hashable] struct {
	hash      uint64
	entry     htEntry[K]
	conflicts []htEntry[K]
	height    int
	left      *htNode[K]
	right     *htNode[K]
}

// NewHashTrie returns an empty trie.
func NewHashTrie[K Hashable]() *HashTrie[K] {
	return &HashTrie[K]{}
}

// Get looks up key, returning its value and true if present.
func (t *HashTrie[K]) Get(key K) (any, bool) {
	if t == nil {
		return nil, false
	}
	return htGet(t.root, key.TrieHash(), key)
}

// Set returns a new trie with key bound to value, leaving t unmodified.
func (t *HashTrie[K]) Set(key K, value any) *HashTrie[K] {
	var root *htNode[K]
	if t != nil {
		root = t.root
	}
	return &HashTrie[K]{root: htInsert(root, key.TrieHash(), htEntry[K]{key: key, value: value})}
}

// Count returns the number of entries, walking the tree. Intended for
// diagnostics/tests, not the hot path.
func (t *HashTrie[K]) Count() int {
	if t == nil {
		return 0
	}
	return htCount(t.root)
}

// Each calls fn for every (key, value) pair in hash order; conflicting
// entries at the same node are visited after the node's primary entry.
func (t *HashTrie[K]) Each(fn func(key K, value any)) {
	if t == nil {
		return
	}
	htEach(t.root, fn)
}

func htCount[K Hashable](n *htNode[K]) int {
	if n == nil {
		return 0
	}
	return 1 + len(n.conflicts) + htCount(n.left) + htCount(n.right)
}

func htEach[K Hashable](n *htNode[K], fn func(key K, value any)) {
	if n == nil {
		return
	}
	htEach(n.left, fn)
	fn(n.entry.key, n.entry.value)
	for _, c := range n.conflicts {
		fn(c.key, c.value)
	}
	htEach(n.right, fn)
}

func htGet[K Hashable](n *htNode[K], hash uint64, key K) (any, bool) {
	for n != nil {
		switch {
		case hash < n.hash:
			n = n.left
		case hash > n.hash:
			n = n.right
		default:
			if n.entry.key == key {
				return n.entry.value, true
			}
			for _, c := range n.conflicts {
				if c.key == key {
					return c.value, true
				}
			}
			return nil, false
		}
	}
	return nil, false
}

func htHeight[K Hashable](n *htNode[K]) int {
	if n == nil {
		return 0
	}
	return n.height
}

func htNewNode[K Hashable](hash uint64, entry htEntry[K], conflicts []htEntry[K], left, right *htNode[K]) *htNode[K] {
	h := 1 + max(htHeight(left), htHeight(right))
	return &htNode[K]{hash: hash, entry: entry, conflicts: conflicts, left: left, right: right, height: h}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func htBalanceFactor[K Hashable](n *htNode[K]) int {
	if n == nil {
		return 0
	}
	return htHeight(n.left) - htHeight(n.right)
}

func htRotateRight[K Hashable](n *htNode[K]) *htNode[K] {
	l := n.left
	return htNewNode(l.hash, l.entry, l.conflicts, l.left, htNewNode(n.hash, n.entry, n.conflicts, l.right, n.right))
}

func htRotateLeft[K Hashable](n *htNode[K]) *htNode[K] {
	r := n.right
	return htNewNode(r.hash, r.entry, r.conflicts, htNewNode(n.hash, n.entry, n.conflicts, n.left, r.left), r.right)
}

func htRebalance[K Hashable](n *htNode[K]) *htNode[K] {
	bf := htBalanceFactor(n)
	switch {
	case bf > 1:
		if htBalanceFactor(n.left) < 0 {
			n = htNewNode(n.hash, n.entry, n.conflicts, htRotateLeft(n.left), n.right)
		}
		return htRotateRight(n)
	case bf < -1:
		if htBalanceFactor(n.right) > 0 {
			n = htNewNode(n.hash, n.entry, n.conflicts, n.left, htRotateRight(n.right))
		}
		return htRotateLeft(n)
	default:
		return n
	}
}

func htInsert[K Hashable](n *htNode[K], hash uint64, entry htEntry[K]) *htNode[K] {
	if n == nil {
		return htNewNode(hash, entry, nil, nil, nil)
	}
	switch {
	case hash < n.hash:
		return htRebalance(htNewNode(n.hash, n.entry, n.conflicts, htInsert(n.left, hash, entry), n.right))
	case hash > n.hash:
		return htRebalance(htNewNode(n.hash, n.entry, n.conflicts, n.left, htInsert(n.right, hash, entry)))
	default:
		if n.entry.key == entry.key {
			return htNewNode(n.hash, entry, n.conflicts, n.left, n.right)
		}
		newConflicts := make([]htEntry[K], 0, len(n.conflicts)+1)
		replaced := false
		for _, c := range n.conflicts {
			if c.key == entry.key {
				newConflicts = append(newConflicts, entry)
				replaced = true
			} else {
				newConflicts = append(newConflicts, c)
			}
		}
		if !replaced {
			newConflicts = append(newConflicts, entry)
		}
		return htNewNode(n.hash, n.entry, newConflicts, n.left, n.right)
	}
}

// maxSwapRetries bounds the compare-and-swap retry loop used to publish a
// new trie root under contention, avoiding livelock (spec: "Ref.Swap"
// fails with SwapExhausted past this many attempts).
const maxSwapRetries = 50

// AtomicTrie publishes successive HashTrie roots via lock-free
// compare-and-swap. Readers call Load and walk the snapshot without ever
// blocking; writers call Swap, which retries the read-mutate-CAS cycle up
// to maxSwapRetries times. Because every mutation here is idempotent
// (inserting the same compiled factory twice is harmless), a redundant
// recompute under contention is safe — only the retry-exhausted case is
// an error.
type AtomicTrie[K Hashable] struct {
	ptr atomic.Pointer[HashTrie[K]]
}

// NewAtomicTrie returns an AtomicTrie seeded with an empty trie.
func NewAtomicTrie[K Hashable]() *AtomicTrie[K] {
	a := &AtomicTrie[K]{}
	a.ptr.Store(NewHashTrie[K]())
	return a
}

// Load returns the current snapshot.
func (a *AtomicTrie[K]) Load() *HashTrie[K] {
	return a.ptr.Load()
}

// Swap atomically applies mutate to the current snapshot and republishes
// the result, retrying if another writer raced ahead of it.
func (a *AtomicTrie[K]) Swap(mutate func(*HashTrie[K]) *HashTrie[K]) error {
	for i := 0; i < maxSwapRetries; i++ {
		old := a.ptr.Load()
		next := mutate(old)
		if a.ptr.CompareAndSwap(old, next) {
			return nil
		}
	}
	return &ContainerError{Kind: SwapExhausted, Message: "hash-trie compare-and-swap retry budget exhausted"}
}
