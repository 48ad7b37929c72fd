package session

import "sort"

// Dispatcher runs callbacks on the owner's scheduling context, typically a
// UI loop. Observers of gestures and async results are delivered through it;
// an async result and the commit it causes share one dispatch. Gestures
// dispatch from the caller's goroutine, so a run loop that calls gestures
// itself must queue rather than wait for its own turn.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to Dispatcher
type DispatchFunc func(fn func())

func (f DispatchFunc) Dispatch(fn func()) { f(fn) }

// Inline runs callbacks on the calling goroutine
var Inline Dispatcher = DispatchFunc(func(fn func()) { fn() })

// Subscribe registers an observer and returns a function that removes it.
// All observers of one change receive the same snapshot, in subscription
// order, within a single dispatch.
func (s *Session) Subscribe(o Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) observersLocked() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, len(ids))
	for i, id := range ids {
		out[i] = s.observers[id]
	}
	return out
}

func (s *Session) notify(snap Snapshot, observers []Observer) {
	if len(observers) == 0 {
		return
	}
	s.dispatcher.Dispatch(func() {
		for _, o := range observers {
			o(snap)
		}
	})
}
