package provider

import (
	"reflect"
	"sync"
)

// Provider lifecycle events.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Listener handles one emitted event.
type Listener func(args ...interface{})

type registration struct {
	fn   Listener
	once bool
}

type emitter struct {
	lk       sync.Mutex
	handlers map[string][]*registration
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[string][]*registration)}
}

func (e *emitter) on(event string, fn Listener, once bool) {
	e.lk.Lock()
	defer e.lk.Unlock()
	e.handlers[event] = append(e.handlers[event], &registration{fn: fn, once: once})
}

func (e *emitter) off(event string, fn Listener) {
	target := reflect.ValueOf(fn).Pointer()
	e.lk.Lock()
	defer e.lk.Unlock()
	regs := e.handlers[event]
	for i, reg := range regs {
		if reflect.ValueOf(reg.fn).Pointer() == target {
			e.handlers[event] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit fires every listener registered for event, outside the lock.
// Once-listeners are dropped first so a re-entrant Emit cannot double-fire
// them.
func (e *emitter) Emit(event string, args ...interface{}) {
	e.lk.Lock()
	regs := e.handlers[event]
	var fire []Listener
	var keep []*registration
	for _, reg := range regs {
		fire = append(fire, reg.fn)
		if !reg.once {
			keep = append(keep, reg)
		}
	}
	e.handlers[event] = keep
	e.lk.Unlock()
	for _, fn := range fire {
		fn(args...)
	}
}

// On registers a listener for event.
func (p *Provider) On(event string, fn Listener) { p.c.events.on(event, fn, false) }

// Once registers a listener removed after its first invocation.
func (p *Provider) Once(event string, fn Listener) { p.c.events.on(event, fn, true) }

// Off removes a listener previously registered with On or Once.
func (p *Provider) Off(event string, fn Listener) { p.c.events.off(event, fn) }

// Emit fires an event to the page's listeners.
func (p *Provider) Emit(event string, args ...interface{}) { p.c.events.Emit(event, args...) }
