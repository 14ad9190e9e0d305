package book

import (
	"cmp"
	"slices"
)

// nilSlot terminates the intrusive FIFO lists.
const nilSlot int32 = -1

// node is an arena slot holding one resting order. Orders at the same price
// are chained through prev/next in arrival order.
type node struct {
	order     Order
	remaining int64
	seq       uint64
	prev      int32
	next      int32
	level     *priceLevel
}

// priceLevel is the FIFO queue at one price. total always equals the sum of
// remaining quantities of the orders chained from head.
type priceLevel struct {
	price int64
	head  int32
	tail  int32
	count int
	total int64
}

// arena stores resting orders by stable slot index and recycles freed slots.
type arena struct {
	nodes []node
	free  []int32
}

func (a *arena) alloc(n node) int32 {
	if k := len(a.free); k > 0 {
		slot := a.free[k-1]
		a.free = a.free[:k-1]
		a.nodes[slot] = n
		return slot
	}
	a.nodes = append(a.nodes, n)
	return int32(len(a.nodes) - 1)
}

func (a *arena) release(slot int32) {
	a.nodes[slot] = node{prev: nilSlot, next: nilSlot}
	a.free = append(a.free, slot)
}

// pushBack appends slot to the tail of the level.
func (a *arena) pushBack(l *priceLevel, slot int32) {
	n := &a.nodes[slot]
	n.level = l
	n.prev = l.tail
	n.next = nilSlot
	if l.tail != nilSlot {
		a.nodes[l.tail].next = slot
	} else {
		l.head = slot
	}
	l.tail = slot
	l.count++
	l.total += n.remaining
}

// unlink removes slot from its level without touching the aggregate total;
// callers adjust total for whatever quantity is still attached.
func (a *arena) unlink(slot int32) {
	n := &a.nodes[slot]
	l := n.level
	if n.prev != nilSlot {
		a.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nilSlot {
		a.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	l.count--
}

// ladder keeps the distinct prices of one side sorted so that the best price
// is the last element: bids ascending, asks descending.
type ladder struct {
	prices []int64
	better func(a, b int64) int
}

func newBidLadder() ladder {
	return ladder{better: func(a, b int64) int { return cmp.Compare(a, b) }}
}

func newAskLadder() ladder {
	return ladder{better: func(a, b int64) int { return cmp.Compare(b, a) }}
}

func (l *ladder) best() (int64, bool) {
	if len(l.prices) == 0 {
		return 0, false
	}
	return l.prices[len(l.prices)-1], true
}

func (l *ladder) insert(p int64) {
	i, found := slices.BinarySearchFunc(l.prices, p, l.better)
	if found {
		return
	}
	l.prices = slices.Insert(l.prices, i, p)
}

func (l *ladder) remove(p int64) {
	n := len(l.prices)
	if n > 0 && l.prices[n-1] == p {
		l.prices = l.prices[:n-1]
		return
	}
	if i, found := slices.BinarySearchFunc(l.prices, p, l.better); found {
		l.prices = slices.Delete(l.prices, i, i+1)
	}
}

// walk visits prices from best to worst until fn returns false.
func (l *ladder) walk(fn func(p int64) bool) {
	for i := len(l.prices) - 1; i >= 0; i-- {
		if !fn(l.prices[i]) {
			return
		}
	}
}
