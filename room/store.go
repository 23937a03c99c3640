// Package room holds the in-memory synchronization core: the registry of
// live rooms, their membership lists and the authoritative playback state.
// Nothing here persists; a room exists exactly as long as it has members.
package room

import (
	"errors"
	"sync"
	"time"

	"vmeste.me/model"
	"vmeste.me/pkg/utils"
)

// Playback transport verbs.
const (
	EventPlay  = "play"
	EventPause = "pause"
	EventSeek  = "seek"
)

const defaultSyncErrorMargin = 0.5

// Join failure modes surfaced to the gateway.
var (
	ErrWrongPassword = errors.New("wrong room password")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyJoined = errors.New("connection is already in a room")
)

type roomEntry struct {
	info    model.RoomInfo
	sync    model.SyncInfo
	members []*model.Member

	// receipt sequence of the last applied playback mutation; stale
	// syncUpdate deliveries are discarded against it
	lastSeq uint64
}

// Store is the room registry. One instance is owned by the gateway it is
// injected into; all mutation goes through its lock, so events against the
// same room apply in arrival order. The conns index maps a connection id to
// the single room it is in, making disconnect O(1).
type Store struct {
	mu      sync.Mutex
	rooms   map[string]*roomEntry
	conns   map[string]string
	roomCap int
}

// New returns an empty registry. roomCap limits participants per room,
// 0 means unlimited.
func New(roomCap int) *Store {
	return &Store{
		rooms:   make(map[string]*roomEntry),
		conns:   make(map[string]string),
		roomCap: roomCap,
	}
}

// MintID picks a fresh room id, re-rolling on collision with a live room.
func (s *Store) MintID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < 16; i++ {
		id := utils.NewRoomID()
		if _, taken := s.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", errors.New("unable to generate an unused room id")
}

func (s *Store) Exists(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.rooms[roomID]
	return exists
}

// Join adds the member to the room, materializing the room first if needed.
// The creator becomes owner and host and the supplied password, if any,
// becomes the room password. Joining an existing protected room requires
// the matching password. A connection can be in at most one room.
func (s *Store) Join(roomID string, m *model.Member, password string) (*model.FullState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, joined := s.conns[m.UserID]; joined {
		return nil, ErrAlreadyJoined
	}

	e, exists := s.rooms[roomID]
	if !exists {
		e = &roomEntry{
			info: model.RoomInfo{
				RoomName:        "Room " + roomID,
				OwnerID:         m.UserID,
				CreatedAt:       time.Now(),
				MaxParticipants: s.roomCap,
			},
			sync: model.SyncInfo{
				SyncErrorMargin: defaultSyncErrorMargin,
			},
		}
		if password != "" {
			e.info.PasswordProtected = true
			e.info.RoomPassword = password
		}
		s.rooms[roomID] = e
	} else {
		if e.info.PasswordProtected && e.info.RoomPassword != password {
			return nil, ErrWrongPassword
		}
		if e.info.MaxParticipants > 0 && len(e.members) >= e.info.MaxParticipants {
			return nil, ErrRoomFull
		}
	}

	m.IsHost = len(e.members) == 0
	e.members = append(e.members, m)
	s.conns[m.UserID] = roomID

	return e.snapshot(), nil
}

// Leave removes the connection's member record from its room. When the last
// member leaves, the room and its state go with it in the same step. The
// returned flags report whether the room was deleted and whether the
// connection was a member of anything at all.
func (s *Store) Leave(connID string) (roomID string, member model.Member, deleted bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, ok = s.conns[connID]
	if !ok {
		return "", model.Member{}, false, false
	}
	delete(s.conns, connID)

	e := s.rooms[roomID]
	for i, m := range e.members {
		if m.UserID == connID {
			member = *m
			e.members = append(e.members[:i], e.members[i+1:]...)
			break
		}
	}

	if len(e.members) == 0 {
		delete(s.rooms, roomID)
		return roomID, member, true, true
	}
	return roomID, member, false, true
}

// Members returns the room's membership in insertion order.
func (s *Store) Members(roomID string) ([]model.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.rooms[roomID]
	if !exists {
		return nil, false
	}
	return e.memberList(), true
}

// Snapshot merges room info, sync info and the member list.
func (s *Store) Snapshot(roomID string) (*model.FullState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.rooms[roomID]
	if !exists {
		return nil, false
	}
	return e.snapshot(), true
}

// ApplyPlayback applies a transport event to the room's sync state and
// returns the resulting state. No-op on an unknown room or a stale delivery.
func (s *Store) ApplyPlayback(roomID string, seq uint64, eventType string, t float64) (model.SyncInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.rooms[roomID]
	if !exists || e.stale(seq) {
		return model.SyncInfo{}, false
	}

	switch eventType {
	case EventPlay:
		e.sync.IsPlaying = true
	case EventPause:
		e.sync.IsPlaying = false
	case EventSeek:
		e.sync.Time = t
	default:
		return model.SyncInfo{}, false
	}
	e.mark(seq)
	return e.sync, true
}

// ApplySync applies a coalesced heartbeat update, overwriting position and
// play state together. Deliveries older than the last applied mutation are
// discarded so an out-of-order heartbeat cannot clobber a newer state.
func (s *Store) ApplySync(roomID string, seq uint64, t float64, isPlaying bool) (model.SyncInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.rooms[roomID]
	if !exists || e.stale(seq) {
		return model.SyncInfo{}, false
	}
	e.sync.Time = t
	e.sync.IsPlaying = isPlaying
	e.mark(seq)
	return e.sync, true
}

// SetTyping flips the member's typing flag. No-op when the room or member
// is absent.
func (s *Store) SetTyping(roomID, userID string, isTyping bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.rooms[roomID]
	if !exists {
		return false
	}
	for _, m := range e.members {
		if m.UserID == userID {
			m.IsTyping = isTyping
			return true
		}
	}
	return false
}

// SetFileInfo records the member's media fingerprint and reports whether
// the room's files are still consistent afterwards.
func (s *Store) SetFileInfo(roomID, userID string, fi model.FileInfo) (consistent, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.rooms[roomID]
	if !exists {
		return false, false
	}
	for _, m := range e.members {
		if m.UserID == userID {
			m.FileInfo = fi
			return FilesConsistent(e.memberList()), true
		}
	}
	return false, false
}

func (e *roomEntry) stale(seq uint64) bool {
	return seq != 0 && seq <= e.lastSeq
}

func (e *roomEntry) mark(seq uint64) {
	if seq > e.lastSeq {
		e.lastSeq = seq
	}
}

func (e *roomEntry) memberList() []model.Member {
	members := make([]model.Member, 0, len(e.members))
	for _, m := range e.members {
		members = append(members, *m)
	}
	return members
}

func (e *roomEntry) snapshot() *model.FullState {
	return &model.FullState{
		RoomInfo: e.info,
		SyncInfo: e.sync,
		Users:    e.memberList(),
	}
}
