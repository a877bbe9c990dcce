// Package repository implements the single actor owning the document store.
// All persistent reads and writes funnel through its request channel; no
// other task touches the store handle.
package repository

import (
	"encoding/base64"
	"errors"
)

// EntryID is the 12-byte identifier the document store assigns to a record.
type EntryID [12]byte

// String renders the id the way it appears in topics and HTTP responses.
// URL-safe base64 keeps '/' out of topic levels.
func (id EntryID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// ParseEntryID reverses String.
func ParseEntryID(s string) (EntryID, error) {
	var id EntryID
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("repository: entry id must decode to 12 bytes")
	}
	copy(id[:], raw)
	return id, nil
}

// RoomEntry is the persisted room record.
type RoomEntry struct {
	ID             EntryID
	Password       int64
	PlayersLimit   int64
	CurrentPlayers int32
}

// UserEntry is a persisted broker credential, identical for runtime and
// player users.
type UserEntry struct {
	Username EntryID
	Password int64
}

// UserKind distinguishes the two credential kinds in the store.
type UserKind string

const (
	KindRuntime UserKind = "rt"
	KindPlayer  UserKind = "player"
)

// Request is one message to the repository actor.
type Request interface{ isRequest() }

// CreateRoom inserts a fresh room record with a random password.
type CreateRoom struct {
	PlayersLimit int64
}

// RemoveRoom deletes a room record; also the compensating rollback.
type RemoveRoom struct {
	RoomID EntryID
}

// CreateRuntimeUser mints the broker credential for a room runtime.
type CreateRuntimeUser struct {
	RoomID EntryID
}

// CreatePlayerUser mints a broker credential for one player seat.
type CreatePlayerUser struct {
	RoomID EntryID
}

// UpdatePlayers persists a room's current player count.
type UpdatePlayers struct {
	RoomID         EntryID
	CurrentPlayers int32
}

// Close asks the actor to stop accepting requests, drain, and exit.
type Close struct{}

func (CreateRoom) isRequest()        {}
func (RemoveRoom) isRequest()        {}
func (CreateRuntimeUser) isRequest() {}
func (CreatePlayerUser) isRequest()  {}
func (UpdatePlayers) isRequest()     {}
func (Close) isRequest()             {}

// Response is one reply from the repository actor.
type Response interface{ isResponse() }

// RoomCreated carries the freshly inserted room record.
type RoomCreated struct {
	Entry RoomEntry
}

// RoomRemoved acknowledges a RemoveRoom.
type RoomRemoved struct{}

// UserCreated carries a freshly minted credential.
type UserCreated struct {
	Entry UserEntry
}

// PlayersUpdated acknowledges an UpdatePlayers.
type PlayersUpdated struct{}

// ClosingRepository acknowledges a Close; the actor drains and exits after
// sending it.
type ClosingRepository struct{}

func (RoomCreated) isResponse()       {}
func (RoomRemoved) isResponse()       {}
func (UserCreated) isResponse()       {}
func (PlayersUpdated) isResponse()    {}
func (ClosingRepository) isResponse() {}

var (
	// ErrChannelClosed means the actor already accepted a Close.
	ErrChannelClosed = errors.New("repository: channel closed")

	// ErrStore wraps a document-store fault reported back to the caller.
	ErrStore = errors.New("repository: store error")
)
