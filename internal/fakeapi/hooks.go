package fakeapi

import (
	"net/http"
	"sync"
)

type failure struct {
	status int
	detail string
}

// Hooks let tests observe and steer the backend per route. A route is named
// by its method and pattern, e.g. "GET /api/posts/:id".
type Hooks struct {
	mutex    sync.Mutex
	counts   map[string]int
	holds    map[string]chan struct{}
	failures map[string][]failure
}

func newHooks() *Hooks {
	return &Hooks{
		counts:   make(map[string]int),
		holds:    make(map[string]chan struct{}),
		failures: make(map[string][]failure),
	}
}

func (h *Hooks) Requests(route string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.counts[route]
}

// Hold parks requests to route until release is called or the request is
// cancelled. Release is safe to call more than once.
func (h *Hooks) Hold(route string) (release func()) {
	gate := make(chan struct{})
	h.mutex.Lock()
	h.holds[route] = gate
	h.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mutex.Lock()
			if h.holds[route] == gate {
				delete(h.holds, route)
			}
			h.mutex.Unlock()
			close(gate)
		})
	}
}

// FailNext makes the next request to route answer with status and detail.
func (h *Hooks) FailNext(route string, status int, detail string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.failures[route] = append(h.failures[route], failure{status: status, detail: detail})
}

func (h *Hooks) enter(route string) (chan struct{}, *failure) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.counts[route]++
	var next *failure
	if queued := h.failures[route]; len(queued) > 0 {
		next = &queued[0]
		h.failures[route] = queued[1:]
	}
	return h.holds[route], next
}

func (s *Server) hooked(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gate, fail := s.hooks.enter(route)
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			s.errorResponse(w, r, fail.status, &AppError{ErrorMessage: fail.detail})
			return
		}
		next(w, r)
	}
}
