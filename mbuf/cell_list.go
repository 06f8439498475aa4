// Copyright 2024 The mbufchain Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mbuf

// cellList is an intrusive doubly linked list of *cell. Entries can be
// added to or removed from the list in O(1) time and with no additional
// allocations, since the linkage lives inside each cell rather than in
// a separate node.
//
// The zero value for cellList is an empty list ready to use.
type cellList struct {
	head *cell
	tail *cell
}

// cellEntry is embedded in cell to give it list linkage.
type cellEntry struct {
	next *cell
	prev *cell
}

// Empty returns true iff the list has no cells.
func (l *cellList) Empty() bool {
	return l.head == nil
}

// Front returns the first cell in the list, or nil.
func (l *cellList) Front() *cell {
	return l.head
}

// Back returns the last cell in the list, or nil.
func (l *cellList) Back() *cell {
	return l.tail
}

// PushBack appends c to the tail of the list.
func (l *cellList) PushBack(c *cell) {
	c.next = nil
	c.prev = l.tail
	if l.tail != nil {
		l.tail.next = c
	} else {
		l.head = c
	}
	l.tail = c
}

// PushBackList appends all of m to the tail of l, emptying m.
func (l *cellList) PushBackList(m *cellList) {
	if m.head == nil {
		return
	}
	if l.tail == nil {
		l.head = m.head
	} else {
		l.tail.next = m.head
		m.head.prev = l.tail
	}
	l.tail = m.tail
	m.head = nil
	m.tail = nil
}

// Remove removes c from the list. c must currently be a member of l.
func (l *cellList) Remove(c *cell) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		l.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		l.tail = c.prev
	}
	c.next = nil
	c.prev = nil
}

// PopFront removes and returns the first cell in the list, or nil if the
// list is empty.
func (l *cellList) PopFront() *cell {
	c := l.head
	if c != nil {
		l.Remove(c)
	}
	return c
}
