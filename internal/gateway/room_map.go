package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/devcircle/pkg/constant"
	"github.com/mbeoliero/kit/log"
)

// RoomMap is the room-membership table. It is the only writer of a client's room set.
type RoomMap struct {
	mu        sync.RWMutex
	rooms     map[string]map[string]*Client // room -> connId -> client
	users     map[string]map[string]*Client // userId -> connId -> client
	presence  *repository.PresenceRepo
	onlineTTL time.Duration
}

// NewRoomMap creates a new RoomMap. presence may be nil.
func NewRoomMap(presence *repository.PresenceRepo, onlineTTL time.Duration) *RoomMap {
	return &RoomMap{
		rooms:     make(map[string]map[string]*Client),
		users:     make(map[string]map[string]*Client),
		presence:  presence,
		onlineTTL: onlineTTL,
	}
}

// Register admits a client and joins it to its user room. Returns true for the user's first connection.
func (m *RoomMap) Register(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	conns, exists := m.users[client.UserId]
	if !exists {
		conns = make(map[string]*Client, 2)
		m.users[client.UserId] = conns
	}
	conns[client.ConnId] = client
	m.join(client, constant.UserRoom(client.UserId))
	m.mu.Unlock()

	if !exists {
		m.setOnline(ctx, client.UserId)
	}
	return !exists
}

// Unregister removes a client from every room. Returns true when it was the user's last connection.
func (m *RoomMap) Unregister(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	m.leaveAll(client)

	conns, exists := m.users[client.UserId]
	if !exists {
		m.mu.Unlock()
		return false
	}
	if _, ok := conns[client.ConnId]; !ok {
		m.mu.Unlock()
		return false
	}
	delete(conns, client.ConnId)
	offline := len(conns) == 0
	if offline {
		delete(m.users, client.UserId)
	}
	m.mu.Unlock()

	if offline {
		m.setOffline(ctx, client.UserId)
	}
	return offline
}

// Join adds client to room. Returns false when it was already a member.
func (m *RoomMap) Join(client *Client, room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.join(client, room)
}

func (m *RoomMap) join(client *Client, room string) bool {
	if _, ok := client.rooms[room]; ok {
		return false
	}
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		m.rooms[room] = members
	}
	members[client.ConnId] = client
	client.rooms[room] = struct{}{}
	return true
}

// Leave removes client from room. Leaving a room the client is not in is a no-op.
func (m *RoomMap) Leave(client *Client, room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leave(client, room)
}

func (m *RoomMap) leave(client *Client, room string) {
	delete(client.rooms, room)
	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, client.ConnId)
	if len(members) == 0 {
		delete(m.rooms, room)
	}
}

func (m *RoomMap) leaveAll(client *Client) {
	for room := range client.rooms {
		m.leave(client, room)
	}
}

// IsMember reports whether client is joined to room
func (m *RoomMap) IsMember(client *Client, room string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := client.rooms[room]
	return ok
}

// Rooms returns a snapshot of the rooms client is joined to
func (m *RoomMap) Rooms(client *Client) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]string, 0, len(client.rooms))
	for room := range client.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Members returns a snapshot of the clients joined to room
func (m *RoomMap) Members(room string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.rooms[room]
	clients := make([]*Client, 0, len(members))
	for _, c := range members {
		clients = append(clients, c)
	}
	return clients
}

// UserClients returns a snapshot of every connection of userId
func (m *RoomMap) UserClients(userId string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conns := m.users[userId]
	clients := make([]*Client, 0, len(conns))
	for _, c := range conns {
		clients = append(clients, c)
	}
	return clients
}

// AllClients returns a snapshot of every registered connection
func (m *RoomMap) AllClients() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var clients []*Client
	for _, conns := range m.users {
		for _, c := range conns {
			clients = append(clients, c)
		}
	}
	return clients
}

// HasConnection checks if user has any connection on this instance
func (m *RoomMap) HasConnection(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users[userId]) > 0
}

// GetOnlineUserCount returns the number of online users
func (m *RoomMap) GetOnlineUserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// GetOnlineConnCount returns the total number of connections
func (m *RoomMap) GetOnlineConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, conns := range m.users {
		count += len(conns)
	}
	return count
}

// GetAllOnlineUserIds returns all online user Ids (local only)
func (m *RoomMap) GetAllOnlineUserIds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userIds := make([]string, 0, len(m.users))
	for userId := range m.users {
		userIds = append(userIds, userId)
	}
	return userIds
}

// RefreshOnlineStatus extends the presence TTL of every local user
func (m *RoomMap) RefreshOnlineStatus(ctx context.Context) {
	if m.presence == nil {
		return
	}
	if err := m.presence.RefreshOnline(ctx, m.GetAllOnlineUserIds(), m.onlineTTL); err != nil {
		log.CtxWarn(ctx, "refresh online status failed: %v", err)
	}
}

func (m *RoomMap) setOnline(ctx context.Context, userId string) {
	if m.presence == nil {
		return
	}
	if err := m.presence.SetOnline(ctx, userId, m.onlineTTL); err != nil {
		log.CtxWarn(ctx, "set online failed: user_id=%s, error=%v", userId, err)
	}
}

func (m *RoomMap) setOffline(ctx context.Context, userId string) {
	if m.presence == nil {
		return
	}
	if err := m.presence.SetOffline(ctx, userId); err != nil {
		log.CtxWarn(ctx, "set offline failed: user_id=%s, error=%v", userId, err)
	}
}
