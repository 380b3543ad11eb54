package giveaway

import "sync"

// Cursor keeps the listing offset each user last looked at. It lives for the process lifetime only.
type Cursor struct {
	mu      sync.Mutex
	offsets map[string]int
}

func NewCursor() *Cursor {
	return &Cursor{offsets: make(map[string]int)}
}

func (c *Cursor) Get(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsets[userID]
}

func (c *Cursor) Set(userID string, offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets[userID] = max(offset, 0)
}

// Next advances one page unless that would move past total.
func (c *Cursor) Next(userID string, total int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	offset := c.offsets[userID]
	if offset+PageSize < total {
		offset += PageSize
	}
	c.offsets[userID] = offset
	return offset
}

func (c *Cursor) Prev(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	offset := max(c.offsets[userID]-PageSize, 0)
	c.offsets[userID] = offset
	return offset
}

func (c *Cursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = make(map[string]int)
}
