// Package service implements the room creation orchestrator: a compensating
// transaction across the repository and the broker.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eurus-project/eurus/internal/v1/broker"
	"github.com/eurus-project/eurus/internal/v1/config"
	"github.com/eurus-project/eurus/internal/v1/logging"
	"github.com/eurus-project/eurus/internal/v1/message"
	"github.com/eurus-project/eurus/internal/v1/metrics"
	"github.com/eurus-project/eurus/internal/v1/repository"
	"github.com/eurus-project/eurus/internal/v1/room"
)

// NewRoomReq is the POST /new_room body.
type NewRoomReq struct {
	PlayersLimit uint `json:"players_limit"`
	RoundsLimit  uint `json:"rounds_limit"`
}

// NewRoomResp is the POST /new_room success body.
type NewRoomResp struct {
	ID       string `json:"id"`
	Password int64  `json:"password"`
}

// ErrRoomCreation covers every mid-flight failure after validation.
var ErrRoomCreation = errors.New("service: room creation failed")

// Repo is the slice of the repository actor the orchestrator needs.
type Repo interface {
	Send(ctx context.Context, req repository.Request) (repository.Response, error)
}

// Session extends the runtime's broker capability set with the two calls
// only the orchestrator performs.
type Session interface {
	room.Session
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topics []string) error
}

// SessionFactory builds an unconnected broker session; tests substitute an
// in-memory broker.
type SessionFactory func(opts broker.Options) Session

// RoomService creates rooms and spawns their runtimes.
type RoomService struct {
	repo       Repo
	mqtt       config.MQTT
	prefix     string
	newSession SessionFactory

	// spawn starts a runtime; overridden in tests to keep goroutines in
	// check.
	spawn func(rt *room.Runtime)
}

// NewRoomService wires the orchestrator.
func NewRoomService(repo Repo, cfg *config.Config, factory SessionFactory) *RoomService {
	if factory == nil {
		factory = func(opts broker.Options) Session {
			return broker.NewClient(opts)
		}
	}
	return &RoomService{
		repo:       repo,
		mqtt:       cfg.MQTT,
		prefix:     cfg.Runtime.RoomChannelPrefix,
		newSession: factory,
		spawn: func(rt *room.Runtime) {
			// Rooms outlive the HTTP request that created them.
			go rt.Run(context.Background())
		},
	}
}

// CreateNewRoom runs the compensating transaction: persist the room, mint
// the runtime credential, open the broker session, announce the runtime, and
// spawn its actor. Any failure after the room record exists rolls the record
// back with a best-effort RemoveRoom.
func (s *RoomService) CreateNewRoom(ctx context.Context, req NewRoomReq) (NewRoomResp, error) {
	start := time.Now()
	resp, err := s.createNewRoom(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RoomsCreated.WithLabelValues(status).Inc()
	metrics.RoomCreationDuration.Observe(time.Since(start).Seconds())
	return resp, err
}

func (s *RoomService) createNewRoom(ctx context.Context, req NewRoomReq) (NewRoomResp, error) {
	created, err := s.repo.Send(ctx, repository.CreateRoom{PlayersLimit: int64(req.PlayersLimit)})
	if err != nil {
		return NewRoomResp{}, fmt.Errorf("%w: %v", ErrRoomCreation, err)
	}
	roomCreated, ok := created.(repository.RoomCreated)
	if !ok {
		return NewRoomResp{}, fmt.Errorf("%w: unexpected repository response %T", ErrRoomCreation, created)
	}
	entry := roomCreated.Entry
	roomID := entry.ID.String()
	ctx = logging.WithRoom(ctx, roomID)

	credential, err := s.runtimeCredential(ctx, entry.ID)
	if err != nil {
		s.rollback(ctx, entry.ID)
		return NewRoomResp{}, err
	}

	session := s.newSession(broker.Options{
		Server:      s.mqtt.Host,
		ClientID:    "room-rt-" + roomID,
		Username:    credential.Username.String(),
		Password:    fmt.Sprintf("%d", credential.Password),
		WillTopic:   broker.LWTTopic(roomID),
		WillPayload: broker.LWTPayload(roomID),
	})

	if err := session.Connect(ctx); err != nil {
		s.rollback(ctx, entry.ID)
		return NewRoomResp{}, fmt.Errorf("%w: connect: %v", ErrRoomCreation, err)
	}

	topics := broker.DefaultSubscriptions(s.prefix, roomID, int(req.PlayersLimit))
	if err := session.Subscribe(ctx, topics); err != nil {
		s.rollback(ctx, entry.ID)
		return NewRoomResp{}, fmt.Errorf("%w: subscribe: %v", ErrRoomCreation, err)
	}

	payload, err := message.EncodeResponse(message.RuntimeStarted{})
	if err != nil {
		session.Disconnect()
		s.rollback(ctx, entry.ID)
		return NewRoomResp{}, fmt.Errorf("%w: %v", ErrRoomCreation, err)
	}
	if err := session.Publish(ctx, broker.RuntimeRead(s.prefix, roomID), payload); err != nil {
		session.Disconnect()
		s.rollback(ctx, entry.ID)
		return NewRoomResp{}, fmt.Errorf("%w: publish: %v", ErrRoomCreation, err)
	}

	rt := room.NewRuntime(room.New(entry, int(req.RoundsLimit)), session, s.repo, s.prefix)
	s.spawn(rt)

	logging.Info(ctx, "room created",
		zap.Uint("players_limit", req.PlayersLimit),
		zap.Uint("rounds_limit", req.RoundsLimit))
	return NewRoomResp{ID: roomID, Password: entry.Password}, nil
}

// runtimeCredential mints the broker login the room runtime authenticates
// with; the users collection doubles as the broker's auth source.
func (s *RoomService) runtimeCredential(ctx context.Context, roomID repository.EntryID) (repository.UserEntry, error) {
	resp, err := s.repo.Send(ctx, repository.CreateRuntimeUser{RoomID: roomID})
	if err != nil {
		return repository.UserEntry{}, fmt.Errorf("%w: runtime credential: %v", ErrRoomCreation, err)
	}
	created, ok := resp.(repository.UserCreated)
	if !ok {
		return repository.UserEntry{}, fmt.Errorf("%w: unexpected repository response %T", ErrRoomCreation, resp)
	}
	return created.Entry, nil
}

// rollback is the only compensation path. Best effort; failures are only
// logged.
func (s *RoomService) rollback(ctx context.Context, roomID repository.EntryID) {
	if _, err := s.repo.Send(context.WithoutCancel(ctx), repository.RemoveRoom{RoomID: roomID}); err != nil {
		logging.Warn(ctx, "room rollback failed", zap.Error(err))
	}
}
