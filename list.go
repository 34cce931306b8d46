package slab

// slabList is a circular, sentinel-rooted doubly linked list of slabs.
// Link and unlink touch exactly four pointer fields with no
// conditionals; emptiness is a single pointer comparison against the
// sentinel's own address.
type slabList struct {
	sentinel Slab
	size     int
}

func (l *slabList) init() {
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
	l.size = 0
}

func (l *slabList) empty() bool {
	return l.sentinel.next == &l.sentinel
}

// linkAfter splices s in immediately after at.
func linkAfter(at, s *Slab) {
	n := at.next
	s.prev = at
	s.next = n
	at.next = s
	n.prev = s
}

// unlink removes s from whatever list it currently sits in. s must
// currently be linked (its prev/next must be non-nil).
func unlink(s *Slab) {
	s.prev.next = s.next
	s.next.prev = s.prev
	s.prev = nil
	s.next = nil
}

func (l *slabList) pushFront(s *Slab) {
	linkAfter(&l.sentinel, s)
	l.size++
}

func (l *slabList) pushBack(s *Slab) {
	linkAfter(l.sentinel.prev, s)
	l.size++
}

// popFront removes and returns the head of the list, or nil if empty.
func (l *slabList) popFront() *Slab {
	if l.empty() {
		return nil
	}
	s := l.sentinel.next
	unlink(s)
	l.size--
	return s
}

// remove unlinks s from this list and decrements size. s must be a member
// of l.
func (l *slabList) remove(s *Slab) {
	unlink(s)
	l.size--
}

// walkFromTail calls fn for up to max nodes starting at the tail and
// moving toward the head, stopping early if fn returns true. Used by the
// bounded full-list scavenge.
func (l *slabList) walkFromTail(max int, fn func(*Slab) bool) *Slab {
	n := l.sentinel.prev
	for i := 0; i < max && n != &l.sentinel; i++ {
		next := n.prev
		if fn(n) {
			return n
		}
		n = next
	}
	return nil
}
