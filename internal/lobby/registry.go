// Package lobby is a small in-memory stand-in for the BringTen lobby: a room
// registry plus the pages and JSON endpoints a browser walk-through touches.
package lobby

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/kuitang/bringten-smoke/internal/errs"
)

const (
	// MaxPlayers is the BringTen table size.
	MaxPlayers = 4

	idAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomIDSize   = 4
	playerIDSize = 6
	maxNameLen   = 64
	idAttempts   = 8
)

// Player is a seated player.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is a snapshot of a lobby room. Players[0] is the host.
type Room struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Players []Player  `json:"players"`
	Created time.Time `json:"created"`
}

// Host returns the room's host.
func (r Room) Host() Player {
	if len(r.Players) == 0 {
		return Player{}
	}
	return r.Players[0]
}

// Full reports whether no seat is left.
func (r Room) Full() bool { return len(r.Players) >= MaxPlayers }

// Registry holds rooms in memory. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// CreateRoom opens a room named roomName hosted by hostName.
func (g *Registry) CreateRoom(hostName, roomName string) (Room, Player, error) {
	hostName, err := cleanName("player name", hostName)
	if err != nil {
		return Room{}, Player{}, err
	}
	roomName, err = cleanName("room name", roomName)
	if err != nil {
		return Room{}, Player{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	roomID, err := g.newRoomIDLocked()
	if err != nil {
		return Room{}, Player{}, err
	}
	host, err := newPlayer(hostName)
	if err != nil {
		return Room{}, Player{}, err
	}
	room := &Room{
		ID:      roomID,
		Name:    roomName,
		Players: []Player{host},
		Created: g.now(),
	}
	g.rooms[roomID] = room
	return room.clone(), host, nil
}

// JoinRoom seats name in the room.
func (g *Registry) JoinRoom(roomID, name string) (Room, Player, error) {
	name, err := cleanName("player name", name)
	if err != nil {
		return Room{}, Player{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[roomID]
	if !ok {
		return Room{}, Player{}, errs.New(errs.NotFound, fmt.Sprintf("room %q not found", roomID))
	}
	if room.Full() {
		return Room{}, Player{}, errs.New(errs.FailedPrecondition, fmt.Sprintf("room %q is full", room.Name))
	}
	p, err := newPlayer(name)
	if err != nil {
		return Room{}, Player{}, err
	}
	room.Players = append(room.Players, p)
	return room.clone(), p, nil
}

// Room returns the room with the given ID.
func (g *Registry) Room(roomID string) (Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[roomID]
	if !ok {
		return Room{}, errs.New(errs.NotFound, fmt.Sprintf("room %q not found", roomID))
	}
	return room.clone(), nil
}

// Rooms lists all rooms. Rooms with a free seat come before full ones and the
// newest room leads each group, so the first join button is always the most
// recent open table.
func (g *Registry) Rooms() []Room {
	g.mu.RLock()
	out := make([]Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r.clone())
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b Room) int {
		if a.Full() != b.Full() {
			if a.Full() {
				return 1
			}
			return -1
		}
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Reset removes every room.
func (g *Registry) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.rooms)
}

func (g *Registry) newRoomIDLocked() (string, error) {
	for range idAttempts {
		id, err := gonanoid.Generate(idAlphabet, roomIDSize)
		if err != nil {
			return "", errs.Wrap(errs.Internal, "failed to generate room id", err)
		}
		if _, taken := g.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", errs.New(errs.Unavailable, "no free room id")
}

func newPlayer(name string) (Player, error) {
	id, err := gonanoid.Generate(idAlphabet, playerIDSize)
	if err != nil {
		return Player{}, errs.Wrap(errs.Internal, "failed to generate player id", err)
	}
	return Player{ID: id, Name: name}, nil
}

func (r *Room) clone() Room {
	c := *r
	c.Players = slices.Clone(r.Players)
	return c
}

func cleanName(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", errs.New(errs.InvalidArgument, field+" is required")
	case len(s) > maxNameLen:
		return "", errs.New(errs.InvalidArgument, fmt.Sprintf("%s is longer than %d bytes", field, maxNameLen))
	}
	return s, nil
}
