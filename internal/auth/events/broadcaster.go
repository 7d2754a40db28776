// Package events is a tiny in-process pub/sub for auth state changes. It
// replaces a browser-global event target: any number of consumers can watch
// for login/logout and converge on one auth state.
package events

import "sync"

type signal int

const (
	sigLogout signal = iota
	sigLogin
)

type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[signal][]subscriber
}

type subscriber struct {
	id int
	fn func()
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: map[signal][]subscriber{}}
}

// OnLogout registers a handler and returns its unsubscribe function.
// Handlers run synchronously, in registration order.
func (b *Broadcaster) OnLogout(fn func()) func() {
	return b.on(sigLogout, fn)
}

func (b *Broadcaster) OnLogin(fn func()) func() {
	return b.on(sigLogin, fn)
}

func (b *Broadcaster) EmitLogout() { b.emit(sigLogout) }
func (b *Broadcaster) EmitLogin()  { b.emit(sigLogin) }

func (b *Broadcaster) on(s signal, fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[s] = append(b.subs[s], subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[s]
		for i, sub := range list {
			if sub.id == id {
				b.subs[s] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *Broadcaster) emit(s signal) {
	b.mu.Lock()
	list := make([]subscriber, len(b.subs[s]))
	copy(list, b.subs[s])
	b.mu.Unlock()

	for _, sub := range list {
		sub.fn()
	}
}
