package offline

import "sync"

// Connectivity tracks whether the remote end is reachable. It is owned by a
// Manager and handed to whoever needs to observe sync state.
type Connectivity struct {
	mu     sync.RWMutex
	online bool
	subs   map[int]chan bool
	nextID int
}

// NewConnectivity returns a tracker starting in the given state.
func NewConnectivity(online bool) *Connectivity {
	return &Connectivity{online: online, subs: make(map[int]chan bool)}
}

// Online reports the last known state.
func (c *Connectivity) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// Set records a new state and notifies subscribers when it changed.
// Slow subscribers miss intermediate states but always see the latest.
func (c *Connectivity) Set(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online == online {
		return
	}
	c.online = online
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Subscribe returns a channel receiving state changes and a cancel function.
func (c *Connectivity) Subscribe() (<-chan bool, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan bool, 1)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}
