package server

import (
	"net"
	"net/http"
	"sync"
)

// flashes holds one pending message per client host.
type flashes struct {
	mu       sync.Mutex
	messages map[string]string
}

func newFlashes() *flashes {
	return &flashes{messages: make(map[string]string)}
}

func (f *flashes) set(r *http.Request, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[clientKey(r)] = message
}

// pop retrieves and immediately deletes a message.
func (f *flashes) pop(r *http.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := clientKey(r)
	message, ok := f.messages[key]
	if ok {
		delete(f.messages, key)
	}
	return message
}

// clientKey drops the port so a redirect on a new connection finds the message.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
