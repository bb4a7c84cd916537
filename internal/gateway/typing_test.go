package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypingTracker_SetAndClear(t *testing.T) {
	tr := NewTypingTracker()

	assert.True(t, tr.Set("c1", "alice", "conn-1", true))
	assert.False(t, tr.Set("c1", "alice", "conn-2", true), "second connection does not change user state")
	assert.True(t, tr.IsTyping("c1", "alice"))

	assert.False(t, tr.Set("c1", "alice", "conn-1", false), "conn-2 is still typing")
	assert.True(t, tr.IsTyping("c1", "alice"))

	assert.True(t, tr.Set("c1", "alice", "conn-2", false))
	assert.False(t, tr.IsTyping("c1", "alice"))

	// stopping twice is a no-op
	assert.False(t, tr.Set("c1", "alice", "conn-2", false))
}

func TestTypingTracker_ClearConn(t *testing.T) {
	tr := NewTypingTracker()
	tr.Set("c1", "alice", "conn-1", true)
	tr.Set("c2", "alice", "conn-1", true)
	tr.Set("c2", "alice", "conn-2", true)
	tr.Set("c1", "bob", "conn-3", true)

	stopped := tr.ClearConn("conn-1")
	assert.Equal(t, []string{"c1"}, stopped)
	assert.False(t, tr.IsTyping("c1", "alice"))
	assert.True(t, tr.IsTyping("c2", "alice"))
	assert.True(t, tr.IsTyping("c1", "bob"))

	assert.Empty(t, tr.ClearConn("conn-1"))
	assert.Empty(t, tr.ClearConn("unknown"))
}
