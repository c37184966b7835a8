package bufferpool

import "github.com/kzdb/kzdb/internal/alias/bx"

// Free-list trunk pages, grounded on the original implementation's
// PageManager trunk helpers (trunk_write_new / trunk_append_leaf /
// trunk_pop_leaf / trunk_next). tuannm99-novasql has no free-list at all
// (freed pages are never reclaimed); this is written fresh from the
// original since spec.md names a free list but not its pop order.
//
// Trunk page body (after the 24-byte page header):
//
//	[0:4]  next_trunk page id (0 => end of free-list chain)
//	[4:8]  leaf_count
//	[8: ]  leaf_count * uint32 leaf page ids, LIFO: the last appended leaf
//	       is the first one popped.
const (
	trunkOffNextTrunk = 0
	trunkOffLeafCount = 4
	trunkHeaderSize   = 8
)

func trunkCapacity(pageBodySize int) int {
	return (pageBodySize - trunkHeaderSize) / 4
}

func trunkNext(body []byte) uint32 {
	return bx.U32At(body, trunkOffNextTrunk)
}

func trunkSetNext(body []byte, next uint32) {
	bx.PutU32At(body, trunkOffNextTrunk, next)
}

func trunkLeafCount(body []byte) uint32 {
	return bx.U32At(body, trunkOffLeafCount)
}

func trunkSetLeafCount(body []byte, n uint32) {
	bx.PutU32At(body, trunkOffLeafCount, n)
}

func trunkLeafAt(body []byte, i uint32) uint32 {
	return bx.U32At(body, trunkHeaderSize+int(i)*4)
}

func trunkSetLeafAt(body []byte, i uint32, id uint32) {
	bx.PutU32At(body, trunkHeaderSize+int(i)*4, id)
}

func trunkInit(body []byte, next uint32) {
	trunkSetNext(body, next)
	trunkSetLeafCount(body, 0)
}

// trunkPushLeaf appends a leaf id to the trunk if there is room. It
// returns false when the trunk is full and the caller must start a new
// trunk.
func trunkPushLeaf(body []byte, capacity int, leaf uint32) bool {
	n := trunkLeafCount(body)
	if int(n) >= capacity {
		return false
	}
	trunkSetLeafAt(body, n, leaf)
	trunkSetLeafCount(body, n+1)
	return true
}

// trunkPopLeaf removes and returns the most recently pushed leaf id.
func trunkPopLeaf(body []byte) (uint32, bool) {
	n := trunkLeafCount(body)
	if n == 0 {
		return 0, false
	}
	leaf := trunkLeafAt(body, n-1)
	trunkSetLeafCount(body, n-1)
	return leaf, true
}
