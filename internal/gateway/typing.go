package gateway

import "sync"

type typingKey struct {
	ConversationId string
	UserId         string
}

// TypingTracker holds the ephemeral typing state: which connections of a user
// are currently typing in a conversation. There is no server-side expiry.
type TypingTracker struct {
	mu      sync.Mutex
	entries map[typingKey]map[string]struct{} // (conversation, user) -> connIds
	byConn  map[string]map[typingKey]struct{} // connId -> keys
}

// NewTypingTracker creates a new TypingTracker
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		entries: make(map[typingKey]map[string]struct{}),
		byConn:  make(map[string]map[typingKey]struct{}),
	}
}

// Set records the typing flag of one connection. It reports whether the user-level
// state changed: the first connection started typing or the last one stopped.
func (t *TypingTracker) Set(conversationId, userId, connId string, isTyping bool) bool {
	key := typingKey{ConversationId: conversationId, UserId: userId}

	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		conns, ok := t.entries[key]
		if !ok {
			conns = make(map[string]struct{})
			t.entries[key] = conns
		}
		started := len(conns) == 0
		conns[connId] = struct{}{}

		keys, ok := t.byConn[connId]
		if !ok {
			keys = make(map[typingKey]struct{})
			t.byConn[connId] = keys
		}
		keys[key] = struct{}{}
		return started
	}

	return t.remove(key, connId)
}

// IsTyping reports whether any connection of userId is typing in conversationId
func (t *TypingTracker) IsTyping(conversationId, userId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries[typingKey{ConversationId: conversationId, UserId: userId}]) > 0
}

// ClearConn drops every typing flag of connId and returns the conversations in which
// the user stopped typing altogether.
func (t *TypingTracker) ClearConn(connId string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := t.byConn[connId]
	var stopped []string
	for key := range keys {
		if t.remove(key, connId) {
			stopped = append(stopped, key.ConversationId)
		}
	}
	delete(t.byConn, connId)
	return stopped
}

// remove reports whether the user has no typing connection left for key
func (t *TypingTracker) remove(key typingKey, connId string) bool {
	if keys, ok := t.byConn[connId]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(t.byConn, connId)
		}
	}

	conns, ok := t.entries[key]
	if !ok {
		return false
	}
	if _, ok := conns[connId]; !ok {
		return false
	}
	delete(conns, connId)
	if len(conns) == 0 {
		delete(t.entries, key)
		return true
	}
	return false
}
