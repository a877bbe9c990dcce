package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/eurus-project/eurus/internal/v1/logging"
	"github.com/eurus-project/eurus/internal/v1/metrics"
)

const requestBufferSize = 256

type result struct {
	resp Response
	err  error
}

type envelope struct {
	req   Request
	reply chan result
}

// Store is the persistence surface the actor drives. The production
// implementation is MongoStore; tests substitute fakes.
type Store interface {
	InsertRoom(ctx context.Context, password, playersLimit int64) (EntryID, error)
	RemoveRoom(ctx context.Context, id EntryID) error
	InsertUser(ctx context.Context, roomID EntryID, password int64, kind UserKind) (EntryID, error)
	UpdateRoomPlayers(ctx context.Context, id EntryID, currentPlayers int32) error
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Actor serializes all store access through one goroutine. Callers use Send;
// requests are served strictly in channel-arrival order.
type Actor struct {
	store Store

	reqCh    chan envelope
	done     chan struct{}
	finished chan struct{}

	closeOnce sync.Once
}

// NewActor builds an actor; Run must be started on its own goroutine.
func NewActor(store Store) *Actor {
	return &Actor{
		store:    store,
		reqCh:    make(chan envelope, requestBufferSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Send submits one request and awaits its reply. It fails with
// ErrChannelClosed once the actor accepted a Close.
func (a *Actor) Send(ctx context.Context, req Request) (Response, error) {
	reply := make(chan result, 1)

	select {
	case <-a.done:
		return nil, ErrChannelClosed
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a.reqCh <- envelope{req: req, reply: reply}:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-reply:
		return res.resp, res.err
	case <-a.finished:
		// The loop may have answered just before exiting.
		select {
		case res := <-reply:
			return res.resp, res.err
		default:
			return nil, ErrChannelClosed
		}
	}
}

// Finished is closed when the actor's loop has fully drained and returned.
func (a *Actor) Finished() <-chan struct{} {
	return a.finished
}

// Run serves requests until a Close arrives, then drains everything already
// enqueued and returns. Cleanup is deterministic; the loop never exits
// mid-request.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.finished)
	defer func() {
		if err := a.store.Disconnect(context.Background()); err != nil {
			logging.Error(ctx, "store disconnect failed", zap.Error(err))
		}
	}()

	for {
		select {
		case <-a.done:
			a.drain(ctx)
			return
		case env := <-a.reqCh:
			a.handle(ctx, env)
		}
	}
}

func (a *Actor) drain(ctx context.Context) {
	for {
		select {
		case env := <-a.reqCh:
			a.handle(ctx, env)
		default:
			return
		}
	}
}

func (a *Actor) handle(ctx context.Context, env envelope) {
	res := a.process(ctx, env.req)

	status := "ok"
	if res.err != nil {
		status = "error"
	}
	metrics.RepositoryRequests.WithLabelValues(requestName(env.req), status).Inc()

	// Best effort: the caller may have given up on its reply.
	select {
	case env.reply <- res:
	default:
	}
}

func (a *Actor) process(ctx context.Context, req Request) result {
	switch r := req.(type) {
	case CreateRoom:
		password := int64(rand.Uint64())
		id, err := a.store.InsertRoom(ctx, password, r.PlayersLimit)
		if err != nil {
			return storeFault("create room", err)
		}
		return result{resp: RoomCreated{Entry: RoomEntry{
			ID:           id,
			Password:     password,
			PlayersLimit: r.PlayersLimit,
		}}}

	case RemoveRoom:
		if err := a.store.RemoveRoom(ctx, r.RoomID); err != nil {
			return storeFault("remove room", err)
		}
		return result{resp: RoomRemoved{}}

	case CreateRuntimeUser:
		return a.createUser(ctx, r.RoomID, KindRuntime)

	case CreatePlayerUser:
		return a.createUser(ctx, r.RoomID, KindPlayer)

	case UpdatePlayers:
		if err := a.store.UpdateRoomPlayers(ctx, r.RoomID, r.CurrentPlayers); err != nil {
			return storeFault("update players", err)
		}
		return result{resp: PlayersUpdated{}}

	case Close:
		a.closeOnce.Do(func() { close(a.done) })
		return result{resp: ClosingRepository{}}

	default:
		return result{err: fmt.Errorf("repository: unknown request %T", req)}
	}
}

func (a *Actor) createUser(ctx context.Context, roomID EntryID, kind UserKind) result {
	password := int64(rand.Uint64())
	id, err := a.store.InsertUser(ctx, roomID, password, kind)
	if err != nil {
		return storeFault("create user", err)
	}
	return result{resp: UserCreated{Entry: UserEntry{
		Username: id,
		Password: password,
	}}}
}

func storeFault(op string, err error) result {
	return result{err: fmt.Errorf("%w: %s: %v", ErrStore, op, err)}
}

func requestName(req Request) string {
	switch req.(type) {
	case CreateRoom:
		return "create_room"
	case RemoveRoom:
		return "remove_room"
	case CreateRuntimeUser:
		return "create_runtime_user"
	case CreatePlayerUser:
		return "create_player_user"
	case UpdatePlayers:
		return "update_players"
	case Close:
		return "close"
	default:
		return "unknown"
	}
}
