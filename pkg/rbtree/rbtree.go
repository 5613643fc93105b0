// Package rbtree implements an ordered multiset on top of an arena-allocated
// red-black tree. Nodes are addressed by uint32 indices into the arena;
// index 0 is reserved as the nil leaf.
package rbtree

import (
	"cmp"
	"iter"

	"github.com/Sumatoshi-tech/effort/pkg/safeconv"
)

// arena owns the nodes of one Multiset. Freed slots are recycled before the
// storage grows.
type arena[K cmp.Ordered] struct {
	storage []node[K]
	gaps    []uint32
}

// used returns the number of live nodes.
func (a *arena[K]) used() int {
	if len(a.storage) == 0 {
		return 0
	}

	// Node #0 is reserved.
	return len(a.storage) - len(a.gaps) - 1
}

func (a *arena[K]) malloc() uint32 {
	if n := len(a.gaps); n > 0 {
		idx := a.gaps[n-1]
		a.gaps = a.gaps[:n-1]

		return idx
	}

	nodeLen := len(a.storage)
	if nodeLen == 0 {
		// Zero is reserved.
		a.storage = append(a.storage, node[K]{})
		nodeLen = 1
	}

	idx := safeconv.MustIntToUint32(nodeLen)
	a.storage = append(a.storage, node[K]{})

	return idx
}

func (a *arena[K]) free(nodeIdx uint32) {
	if nodeIdx == 0 {
		panic("node #0 is special and cannot be deallocated")
	}

	a.storage[nodeIdx] = node[K]{}
	a.gaps = append(a.gaps, nodeIdx)
}

// Multiset is an ordered multiset: each distinct key is stored once together
// with its occurrence count. Iteration yields keys in ascending order.
//
// The balancing follows the classic red-black scheme
// (http://en.literateprograms.org/Red-black_tree_(C)) with nodes held in an
// index-addressed arena instead of pointers.
type Multiset[K cmp.Ordered] struct {
	arena arena[K]

	root uint32

	// minNode is where in-order traversal starts.
	minNode uint32

	// Number of nodes (distinct keys).
	nodes int

	// Number of stored occurrences.
	size int
}

// New creates an empty multiset.
func New[K cmp.Ordered]() *Multiset[K] {
	return &Multiset[K]{}
}

// From builds a multiset from a slice of keys.
func From[K cmp.Ordered](keys []K) *Multiset[K] {
	set := New[K]()

	for _, key := range keys {
		set.Insert(key)
	}

	return set
}

func (set *Multiset[K]) storage() []node[K] {
	return set.arena.storage
}

// Len returns the number of stored occurrences, counting duplicates.
func (set *Multiset[K]) Len() int {
	return set.size
}

// Distinct returns the number of distinct keys.
func (set *Multiset[K]) Distinct() int {
	return set.nodes
}

// Count returns how many times key occurs.
func (set *Multiset[K]) Count(key K) int {
	nodeIdx, exact := set.findGE(key)
	if !exact {
		return 0
	}

	return set.storage()[nodeIdx].count
}

// Insert adds one occurrence of key and returns its new count.
func (set *Multiset[K]) Insert(key K) int {
	nodeIdx, exact := set.findGE(key)
	if exact {
		set.storage()[nodeIdx].count++
		set.size++

		return set.storage()[nodeIdx].count
	}

	set.insertNode(key)
	set.size++

	return 1
}

// Remove deletes one occurrence of key. The node is dropped when its count
// reaches zero. Returns false if key was not present.
func (set *Multiset[K]) Remove(key K) bool {
	nodeIdx, exact := set.findGE(key)
	if !exact {
		return false
	}

	alloc := set.storage()
	alloc[nodeIdx].count--
	set.size--

	if alloc[nodeIdx].count == 0 {
		set.doDelete(nodeIdx)
	}

	return true
}

// Entries yields distinct keys with their counts in ascending order.
// The multiset must not be modified during iteration.
func (set *Multiset[K]) Entries() iter.Seq2[K, int] {
	return func(yield func(K, int) bool) {
		alloc := set.storage()

		for nodeIdx := set.minNode; nodeIdx != 0; nodeIdx = doNext(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].key, alloc[nodeIdx].count) {
				return
			}
		}
	}
}

// Values yields every stored occurrence in non-decreasing order, repeating
// each key as many times as it was inserted.
func (set *Multiset[K]) Values() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key, count := range set.Entries() {
			for range count {
				if !yield(key) {
					return
				}
			}
		}
	}
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}

const (
	red   = false
	black = true
)

type node[K cmp.Ordered] struct {
	key                 K
	count               int
	parent, left, right uint32
	color               bool // Black or red.
}

// Internal node attribute accessors.
func getColor[K cmp.Ordered](nodeIdx uint32, alloc []node[K]) bool {
	if nodeIdx == 0 {
		return black
	}

	return alloc[nodeIdx].color
}

func isLeftChild[K cmp.Ordered](nodeIdx uint32, alloc []node[K]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].left
}

func isRightChild[K cmp.Ordered](nodeIdx uint32, alloc []node[K]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].right
}

func sibling[K cmp.Ordered](nodeIdx uint32, alloc []node[K]) uint32 {
	doAssert(alloc[nodeIdx].parent != 0)

	if isLeftChild(nodeIdx, alloc) {
		return alloc[alloc[nodeIdx].parent].right
	}

	return alloc[alloc[nodeIdx].parent].left
}

// Return the minimum node that's larger than N. Return 0 if no such
// node is found.
func doNext[K cmp.Ordered](nodeIdx uint32, alloc []node[K]) uint32 {
	if alloc[nodeIdx].right != 0 {
		cursor := alloc[nodeIdx].right

		for alloc[cursor].left != 0 {
			cursor = alloc[cursor].left
		}

		return cursor
	}

	for nodeIdx != 0 {
		parentIdx := alloc[nodeIdx].parent
		if parentIdx == 0 {
			return 0
		}

		if isLeftChild(nodeIdx, alloc) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}

	return 0
}

// Return the predecessor of "n".
func maxPredecessor[K cmp.Ordered](nodeIdx uint32, alloc []node[K]) uint32 {
	doAssert(alloc[nodeIdx].left != 0)

	cursor := alloc[nodeIdx].left

	for alloc[cursor].right != 0 {
		cursor = alloc[cursor].right
	}

	return cursor
}

// Private methods.

func (set *Multiset[K]) recomputeMinNode() {
	alloc := set.storage()
	set.minNode = set.root

	if set.minNode != 0 {
		for alloc[set.minNode].left != 0 {
			set.minNode = alloc[set.minNode].left
		}
	}
}

// insertNode adds a fresh node for key, which must not be present, and
// restores the red-black properties.
func (set *Multiset[K]) insertNode(key K) {
	nodeIdx := set.attach(key)
	alloc := set.storage()

	alloc[nodeIdx].color = red

	for {
		// Case 1: N is at the root.
		if alloc[nodeIdx].parent == 0 {
			alloc[nodeIdx].color = black

			break
		}

		// Case 2: the parent is black, so the tree already
		// satisfies the RB properties.
		if alloc[alloc[nodeIdx].parent].color {
			break
		}

		// Case 3: parent and uncle are both red.
		// Then paint both black and make grandparent red.
		grandparent := alloc[alloc[nodeIdx].parent].parent

		var uncle uint32
		if isLeftChild(alloc[nodeIdx].parent, alloc) {
			uncle = alloc[grandparent].right
		} else {
			uncle = alloc[grandparent].left
		}

		if uncle != 0 && !alloc[uncle].color {
			alloc[alloc[nodeIdx].parent].color = black
			alloc[uncle].color = black
			alloc[grandparent].color = red
			nodeIdx = grandparent

			continue
		}

		// Case 4: parent is red, uncle is black (1).
		if isRightChild(nodeIdx, alloc) && isLeftChild(alloc[nodeIdx].parent, alloc) {
			set.rotateLeft(alloc[nodeIdx].parent)
			nodeIdx = alloc[nodeIdx].left

			continue
		}

		if isLeftChild(nodeIdx, alloc) && isRightChild(alloc[nodeIdx].parent, alloc) {
			set.rotateRight(alloc[nodeIdx].parent)
			nodeIdx = alloc[nodeIdx].right

			continue
		}

		// Case 5: parent is red, uncle is black (2).
		alloc[alloc[nodeIdx].parent].color = black
		alloc[grandparent].color = red

		if isLeftChild(nodeIdx, alloc) {
			set.rotateRight(grandparent)
		} else {
			set.rotateLeft(grandparent)
		}

		break
	}
}

// attach places a new leaf holding key with count 1 and returns its index.
func (set *Multiset[K]) attach(key K) uint32 {
	nodeIdx := set.arena.malloc()
	alloc := set.storage()
	alloc[nodeIdx].key = key
	alloc[nodeIdx].count = 1
	set.nodes++

	if set.root == 0 {
		set.root = nodeIdx
		set.minNode = nodeIdx

		return nodeIdx
	}

	parent := set.root

	for {
		if cmp.Less(key, alloc[parent].key) {
			if alloc[parent].left == 0 {
				alloc[parent].left = nodeIdx

				break
			}

			parent = alloc[parent].left
		} else {
			if alloc[parent].right == 0 {
				alloc[parent].right = nodeIdx

				break
			}

			parent = alloc[parent].right
		}
	}

	alloc[nodeIdx].parent = parent

	if cmp.Less(key, alloc[set.minNode].key) {
		set.minNode = nodeIdx
	}

	return nodeIdx
}

// Find a node whose key >= key. The second return value is true iff the
// node's key equals key. Returns (0, false) if all keys are < key.
func (set *Multiset[K]) findGE(key K) (uint32, bool) {
	alloc := set.storage()
	nodeIdx := set.root

	for {
		if nodeIdx == 0 {
			return 0, false
		}

		switch comp := cmp.Compare(key, alloc[nodeIdx].key); {
		case comp == 0:
			return nodeIdx, true
		case comp < 0:
			if alloc[nodeIdx].left == 0 {
				return nodeIdx, false
			}

			nodeIdx = alloc[nodeIdx].left
		default:
			if alloc[nodeIdx].right == 0 {
				succ := doNext(nodeIdx, alloc)
				if succ == 0 {
					return 0, false
				}

				return succ, cmp.Compare(key, alloc[succ].key) == 0
			}

			nodeIdx = alloc[nodeIdx].right
		}
	}
}

// Delete N from the tree.
func (set *Multiset[K]) doDelete(nodeIdx uint32) {
	alloc := set.storage()

	if alloc[nodeIdx].left != 0 && alloc[nodeIdx].right != 0 {
		pred := maxPredecessor(nodeIdx, alloc)
		set.swapNodes(nodeIdx, pred)
	}

	doAssert(alloc[nodeIdx].left == 0 || alloc[nodeIdx].right == 0)

	child := alloc[nodeIdx].right
	if child == 0 {
		child = alloc[nodeIdx].left
	}

	if alloc[nodeIdx].color {
		alloc[nodeIdx].color = getColor(child, alloc)
		set.deleteCase1(nodeIdx)
	}

	set.replaceNode(nodeIdx, child)

	if alloc[nodeIdx].parent == 0 && child != 0 {
		alloc[child].color = black
	}

	set.arena.free(nodeIdx)
	set.nodes--

	if set.nodes == 0 {
		set.minNode = 0

		return
	}

	if set.minNode == nodeIdx {
		set.recomputeMinNode()
	}
}

// Move n to the pred's place, and vice versa. Nodes are relinked rather
// than having their payloads exchanged.
func (set *Multiset[K]) swapNodes(nodeIdx, pred uint32) {
	doAssert(pred != nodeIdx)

	alloc := set.storage()
	isLeft := isLeftChild(pred, alloc)
	tmp := alloc[pred]

	set.replaceNode(nodeIdx, pred)
	alloc[pred].color = alloc[nodeIdx].color

	if tmp.parent == nodeIdx {
		if isLeft {
			alloc[pred].left = nodeIdx
			alloc[pred].right = alloc[nodeIdx].right

			if alloc[pred].right != 0 {
				alloc[alloc[pred].right].parent = pred
			}
		} else {
			alloc[pred].left = alloc[nodeIdx].left

			if alloc[pred].left != 0 {
				alloc[alloc[pred].left].parent = pred
			}

			alloc[pred].right = nodeIdx
		}

		alloc[nodeIdx].parent = pred
	} else {
		alloc[pred].left = alloc[nodeIdx].left

		if alloc[pred].left != 0 {
			alloc[alloc[pred].left].parent = pred
		}

		alloc[pred].right = alloc[nodeIdx].right

		if alloc[pred].right != 0 {
			alloc[alloc[pred].right].parent = pred
		}

		if isLeft {
			alloc[tmp.parent].left = nodeIdx
		} else {
			alloc[tmp.parent].right = nodeIdx
		}

		alloc[nodeIdx].parent = tmp.parent
	}

	alloc[nodeIdx].key = tmp.key
	alloc[nodeIdx].count = tmp.count

	alloc[nodeIdx].left = tmp.left
	if alloc[nodeIdx].left != 0 {
		alloc[alloc[nodeIdx].left].parent = nodeIdx
	}

	alloc[nodeIdx].right = tmp.right
	if alloc[nodeIdx].right != 0 {
		alloc[alloc[nodeIdx].right].parent = nodeIdx
	}

	alloc[nodeIdx].color = tmp.color
}

func (set *Multiset[K]) deleteCase1(nodeIdx uint32) {
	alloc := set.storage()

	for alloc[nodeIdx].parent != 0 {
		if !getColor(sibling(nodeIdx, alloc), alloc) {
			alloc[alloc[nodeIdx].parent].color = red
			alloc[sibling(nodeIdx, alloc)].color = black

			if nodeIdx == alloc[alloc[nodeIdx].parent].left {
				set.rotateLeft(alloc[nodeIdx].parent)
			} else {
				set.rotateRight(alloc[nodeIdx].parent)
			}
		}

		sib := sibling(nodeIdx, alloc)

		if getColor(alloc[nodeIdx].parent, alloc) &&
			getColor(sib, alloc) &&
			getColor(alloc[sib].left, alloc) &&
			getColor(alloc[sib].right, alloc) {
			alloc[sib].color = red
			nodeIdx = alloc[nodeIdx].parent

			continue
		}

		// Case 4.
		if !getColor(alloc[nodeIdx].parent, alloc) &&
			getColor(sib, alloc) &&
			getColor(alloc[sib].left, alloc) &&
			getColor(alloc[sib].right, alloc) {
			alloc[sib].color = red
			alloc[alloc[nodeIdx].parent].color = black
		} else {
			set.deleteCase5(nodeIdx)
		}

		break
	}
}

func (set *Multiset[K]) deleteCase5(nodeIdx uint32) {
	alloc := set.storage()
	sib := sibling(nodeIdx, alloc)

	if nodeIdx == alloc[alloc[nodeIdx].parent].left &&
		getColor(sib, alloc) &&
		!getColor(alloc[sib].left, alloc) &&
		getColor(alloc[sib].right, alloc) {
		alloc[sib].color = red
		alloc[alloc[sib].left].color = black
		set.rotateRight(sib)
	} else if nodeIdx == alloc[alloc[nodeIdx].parent].right &&
		getColor(sib, alloc) &&
		!getColor(alloc[sib].right, alloc) &&
		getColor(alloc[sib].left, alloc) {
		alloc[sib].color = red
		alloc[alloc[sib].right].color = black
		set.rotateLeft(sib)
	}

	// Case 6.
	sib = sibling(nodeIdx, alloc)
	alloc[sib].color = getColor(alloc[nodeIdx].parent, alloc)
	alloc[alloc[nodeIdx].parent].color = black

	if nodeIdx == alloc[alloc[nodeIdx].parent].left {
		doAssert(!getColor(alloc[sib].right, alloc))
		alloc[alloc[sib].right].color = black
		set.rotateLeft(alloc[nodeIdx].parent)
	} else {
		doAssert(!getColor(alloc[sib].left, alloc))
		alloc[alloc[sib].left].color = black
		set.rotateRight(alloc[nodeIdx].parent)
	}
}

func (set *Multiset[K]) replaceNode(oldn, newn uint32) {
	alloc := set.storage()

	switch {
	case alloc[oldn].parent == 0:
		set.root = newn
	case oldn == alloc[alloc[oldn].parent].left:
		alloc[alloc[oldn].parent].left = newn
	default:
		alloc[alloc[oldn].parent].right = newn
	}

	if newn != 0 {
		alloc[newn].parent = alloc[oldn].parent
	}
}

// rotateDirection performs a tree rotation in the specified direction.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
func (set *Multiset[K]) rotateDirection(pivot uint32, isLeft bool) {
	alloc := set.storage()

	var child, inner uint32
	if isLeft {
		child = alloc[pivot].right
		inner = alloc[child].left
		alloc[pivot].right = inner
	} else {
		child = alloc[pivot].left
		inner = alloc[child].right
		alloc[pivot].left = inner
	}

	if inner != 0 {
		alloc[inner].parent = pivot
	}

	alloc[child].parent = alloc[pivot].parent

	switch {
	case alloc[pivot].parent == 0:
		set.root = child
	case isLeftChild(pivot, alloc):
		alloc[alloc[pivot].parent].left = child
	default:
		alloc[alloc[pivot].parent].right = child
	}

	if isLeft {
		alloc[child].left = pivot
	} else {
		alloc[child].right = pivot
	}

	alloc[pivot].parent = child
}

func (set *Multiset[K]) rotateLeft(nodeIdx uint32) {
	set.rotateDirection(nodeIdx, true)
}

func (set *Multiset[K]) rotateRight(nodeIdx uint32) {
	set.rotateDirection(nodeIdx, false)
}
