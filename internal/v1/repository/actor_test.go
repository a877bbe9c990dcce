package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  byte
	rooms   map[EntryID]int32
	users   map[EntryID]UserKind
	removed []EntryID

	insertRoomErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms: make(map[EntryID]int32),
		users: make(map[EntryID]UserKind),
	}
}

func (f *fakeStore) newID() EntryID {
	f.nextID++
	var id EntryID
	id[11] = f.nextID
	return id
}

func (f *fakeStore) InsertRoom(ctx context.Context, password, playersLimit int64) (EntryID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertRoomErr != nil {
		return EntryID{}, f.insertRoomErr
	}
	id := f.newID()
	f.rooms[id] = 0
	return id, nil
}

func (f *fakeStore) RemoveRoom(ctx context.Context, id EntryID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeStore) InsertUser(ctx context.Context, roomID EntryID, password int64, kind UserKind) (EntryID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.users[id] = kind
	return id, nil
}

func (f *fakeStore) UpdateRoomPlayers(ctx context.Context, id EntryID, currentPlayers int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[id] = currentPlayers
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error       { return nil }
func (f *fakeStore) Disconnect(ctx context.Context) error { return nil }

func startActor(t *testing.T, store Store) *Actor {
	t.Helper()
	a := NewActor(store)
	go a.Run(context.Background())
	t.Cleanup(func() {
		_, _ = a.Send(context.Background(), Close{})
		select {
		case <-a.Finished():
		case <-time.After(time.Second):
			t.Fatal("actor did not finish")
		}
	})
	return a
}

func TestActor_CreateAndRemoveRoom(t *testing.T) {
	store := newFakeStore()
	a := startActor(t, store)

	resp, err := a.Send(context.Background(), CreateRoom{PlayersLimit: 4})
	require.NoError(t, err)
	created, ok := resp.(RoomCreated)
	require.True(t, ok, "got %T", resp)
	assert.Equal(t, int64(4), created.Entry.PlayersLimit)
	assert.Equal(t, int32(0), created.Entry.CurrentPlayers)

	resp, err = a.Send(context.Background(), RemoveRoom{RoomID: created.Entry.ID})
	require.NoError(t, err)
	assert.IsType(t, RoomRemoved{}, resp)
	assert.Equal(t, []EntryID{created.Entry.ID}, store.removed)
}

func TestActor_CreateUsers(t *testing.T) {
	store := newFakeStore()
	a := startActor(t, store)

	resp, err := a.Send(context.Background(), CreateRoom{PlayersLimit: 2})
	require.NoError(t, err)
	roomID := resp.(RoomCreated).Entry.ID

	resp, err = a.Send(context.Background(), CreateRuntimeUser{RoomID: roomID})
	require.NoError(t, err)
	rt := resp.(UserCreated).Entry

	resp, err = a.Send(context.Background(), CreatePlayerUser{RoomID: roomID})
	require.NoError(t, err)
	player := resp.(UserCreated).Entry

	assert.NotEqual(t, rt.Username, player.Username)
	assert.Equal(t, KindRuntime, store.users[rt.Username])
	assert.Equal(t, KindPlayer, store.users[player.Username])
}

func TestActor_UpdatePlayers(t *testing.T) {
	store := newFakeStore()
	a := startActor(t, store)

	resp, err := a.Send(context.Background(), CreateRoom{PlayersLimit: 3})
	require.NoError(t, err)
	roomID := resp.(RoomCreated).Entry.ID

	resp, err = a.Send(context.Background(), UpdatePlayers{RoomID: roomID, CurrentPlayers: 2})
	require.NoError(t, err)
	assert.IsType(t, PlayersUpdated{}, resp)
	assert.Equal(t, int32(2), store.rooms[roomID])
}

func TestActor_StoreFaultIsRecoverable(t *testing.T) {
	store := newFakeStore()
	store.insertRoomErr = errors.New("connection refused")
	a := startActor(t, store)

	_, err := a.Send(context.Background(), CreateRoom{PlayersLimit: 2})
	assert.ErrorIs(t, err, ErrStore)

	// The fault did not kill the loop.
	store.mu.Lock()
	store.insertRoomErr = nil
	store.mu.Unlock()
	resp, err := a.Send(context.Background(), CreateRoom{PlayersLimit: 2})
	require.NoError(t, err)
	assert.IsType(t, RoomCreated{}, resp)
}

func TestActor_CloseDrainsEnqueuedWork(t *testing.T) {
	store := newFakeStore()
	a := NewActor(store)

	// Enqueue a CreateRoom and a Close before the loop starts, so channel
	// order alone decides who is served first.
	createReply := make(chan result, 1)
	closeReply := make(chan result, 1)
	a.reqCh <- envelope{req: CreateRoom{PlayersLimit: 2}, reply: createReply}
	a.reqCh <- envelope{req: Close{}, reply: closeReply}

	go a.Run(context.Background())

	res := <-createReply
	require.NoError(t, res.err)
	assert.IsType(t, RoomCreated{}, res.resp)

	res = <-closeReply
	require.NoError(t, res.err)
	assert.IsType(t, ClosingRepository{}, res.resp)

	select {
	case <-a.Finished():
	case <-time.After(time.Second):
		t.Fatal("actor did not finish after Close")
	}

	_, err := a.Send(context.Background(), CreateRoom{PlayersLimit: 2})
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestActor_SendHonorsContext(t *testing.T) {
	store := newFakeStore()
	a := NewActor(store) // never started, so the reply will not arrive

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := a.Send(ctx, CreateRoom{PlayersLimit: 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEntryID_StringRoundTrip(t *testing.T) {
	id := EntryID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c}
	s := id.String()
	assert.NotContains(t, s, "/")

	got, err := ParseEntryID(s)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseEntryID("too-short")
	assert.Error(t, err)
}
