// Package chat implements the connection sessions, the shared presence
// registry, and the message routing between connected clients.
package chat

import (
	"sort"
	"sync"

	"github.com/wiliyo/wiliyo/internal/common"
)

// Registry is the single source of truth for who is connected, under what
// name, and in which groups. Every session mutates it concurrently, so all
// state lives behind one mutex; in particular the check-then-insert of Join
// is indivisible, which is what keeps a username online at most once.
//
// Group membership only grows. Leaving or disconnecting removes a user from
// presence but not from any group, matching the original service behavior.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session            // session ID -> session
	online   map[string]string              // username -> session ID
	groups   map[string]map[string]struct{} // group name -> member usernames
	lastIP   map[string]string              // username -> peer IP of the live session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		online:   make(map[string]string),
		groups:   make(map[string]map[string]struct{}),
		lastIP:   make(map[string]string),
	}
}

// Join registers an authenticated session. It fails with ErrAlreadyLoggedIn
// when the username is already online; the check and the insert happen under
// one lock so two racing logins can never both win.
func (r *Registry) Join(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.online[s.username]; ok {
		return common.ErrAlreadyLoggedIn
	}

	r.sessions[s.id] = s
	r.online[s.username] = s.id
	r.lastIP[s.username] = s.peerIP

	return nil
}

// Leave deregisters a session. Idempotent: a session that was never joined,
// or was already removed, is a no-op. Reports whether a removal happened so
// the caller knows to broadcast a leave notice exactly once.
func (r *Registry) Leave(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.id]; !ok {
		return false
	}

	delete(r.sessions, s.id)
	if id, ok := r.online[s.username]; ok && id == s.id {
		delete(r.online, s.username)
		delete(r.lastIP, s.username)
	}

	return true
}

// Snapshot returns the currently connected sessions. Broadcast iterates the
// copy, never the live map, so a concurrent disconnect cannot invalidate the
// iteration.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// OnlineUsers returns the online usernames in sorted order.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.online))
	for name := range r.online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.online)
}

// SessionsFor returns every connected session registered under the given
// username. With Join enforcing uniqueness that is at most one, but direct
// delivery deliberately does not assume it.
func (r *Registry) SessionsFor(username string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*Session
	for _, s := range r.sessions {
		if s.username == username {
			matches = append(matches, s)
		}
	}
	return matches
}

// JoinGroup adds the sender to a group, creating it on first use, and
// returns the connected sessions of the other members. Membership update and
// recipient snapshot happen under one lock so the fan-out always matches the
// membership it was computed from.
func (r *Registry) JoinGroup(group, sender string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]struct{})
		r.groups[group] = members
	}
	members[sender] = struct{}{}

	var recipients []*Session
	for _, s := range r.sessions {
		if s.username == sender {
			continue
		}
		if _, ok := members[s.username]; ok {
			recipients = append(recipients, s)
		}
	}
	return recipients
}

// GroupMembers returns the member usernames of a group, sorted. A group that
// was never used yields nil.
func (r *Registry) GroupMembers(group string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LastIP reports the peer address recorded for an online username.
func (r *Registry) LastIP(username string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ip, ok := r.lastIP[username]
	return ip, ok
}
