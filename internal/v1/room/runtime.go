package room

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/eurus-project/eurus/internal/v1/broker"
	"github.com/eurus-project/eurus/internal/v1/logging"
	"github.com/eurus-project/eurus/internal/v1/message"
	"github.com/eurus-project/eurus/internal/v1/metrics"
	"github.com/eurus-project/eurus/internal/v1/repository"
)

// Session is the broker capability set the runtime drives. Production hands
// in *broker.Client; tests hand in an in-memory fake.
type Session interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Stream() <-chan *broker.Message
	IsConnected() bool
	Reconnect(ctx context.Context, topics []string) error
	Disconnect()
}

// Repo is the slice of the repository the runtime needs.
type Repo interface {
	Send(ctx context.Context, req repository.Request) (repository.Response, error)
}

// Runtime owns one Room and its broker session for the room's lifetime.
type Runtime struct {
	room    *Room
	session Session
	repo    Repo
	prefix  string
	topics  []string
}

// NewRuntime wires a runtime around an already connected and subscribed
// session.
func NewRuntime(room *Room, session Session, repo Repo, prefix string) *Runtime {
	return &Runtime{
		room:    room,
		session: session,
		repo:    repo,
		prefix:  prefix,
		topics:  broker.DefaultSubscriptions(prefix, room.ID, room.PlayersLimit),
	}
}

// Run consumes the broker stream until the game completes, the stream
// closes, or the connection dies past recovery. Message handling is strictly
// sequential within the room.
func (rt *Runtime) Run(ctx context.Context) {
	ctx = logging.WithRoom(ctx, rt.room.ID)
	defer metrics.ActiveRooms.Dec()
	metrics.ActiveRooms.Inc()

	stream := rt.session.Stream()
	for {
		msg, open := <-stream
		if !open {
			logging.Info(ctx, "broker stream closed")
			return
		}

		if msg == nil {
			if rt.session.IsConnected() {
				continue
			}
			if err := rt.session.Reconnect(ctx, rt.topics); err == nil {
				logging.Info(ctx, "broker session restored")
				continue
			}
			logging.Error(ctx, "channel died")
			rt.session.Disconnect()
			return
		}

		if abort := rt.handle(ctx, msg); abort {
			rt.session.Disconnect()
			return
		}

		if rt.room.State == Dead {
			rt.finish(ctx)
			return
		}
	}
}

// handle runs one inbound message through the state machine and dispatches
// the resulting command. It reports whether the loop must abort.
func (rt *Runtime) handle(ctx context.Context, msg *broker.Message) bool {
	sender, ok := rt.sender(ctx, msg.Topic)
	if !ok {
		return false
	}

	req, err := message.DecodeRequest(msg.Payload)
	if err != nil {
		logging.Error(ctx, "dropping undecodable message",
			zap.String("topic", msg.Topic), zap.Error(err))
		metrics.MessagesProcessed.WithLabelValues("decode", "error").Inc()
		return false
	}

	playersBefore := len(rt.room.Players)
	metrics.MessagesProcessed.WithLabelValues(requestLabel(req), "ok").Inc()

	switch cmd := rt.room.Process(sender, req).(type) {
	case Skip:
	case Abort:
		logging.Warn(ctx, "runtime aborting", zap.String("reason", cmd.Reason))
		return true
	case Respond:
		for _, resp := range cmd.Resps {
			rt.publish(ctx, resp)
		}
	}

	rt.persistPlayerChange(ctx, req, playersBefore)
	return false
}

func (rt *Runtime) sender(ctx context.Context, topic string) (Sender, bool) {
	slot, err := broker.SenderSlot(topic)
	if err != nil {
		logging.Error(ctx, "dropping message on malformed topic",
			zap.String("topic", topic), zap.Error(err))
		return Sender{}, false
	}
	if slot == broker.RuntimeSlot {
		return Sender{Runtime: true}, true
	}

	id, err := strconv.Atoi(slot)
	if err != nil || id < 0 || id >= rt.room.PlayersLimit {
		logging.Error(ctx, "dropping message from unknown slot",
			zap.String("topic", topic))
		return Sender{}, false
	}
	return Sender{Player: message.PlayerID(id)}, true
}

func (rt *Runtime) publish(ctx context.Context, resp message.Response) {
	topic := broker.RuntimeRead(rt.prefix, rt.room.ID)
	if priv, ok := resp.(message.Priv); ok {
		topic = broker.PlayerRead(rt.prefix, rt.room.ID, int(priv.Player))
		resp = priv.Inner
	}

	payload, err := message.EncodeResponse(resp)
	if err != nil {
		logging.Error(ctx, "encoding response", zap.Error(err))
		return
	}
	if err := rt.session.Publish(ctx, topic, payload); err != nil {
		logging.Error(ctx, "publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// persistPlayerChange mirrors join/leave into the store: a fresh credential
// for a joiner plus the updated player count. Store faults are logged and
// tolerated; the game goes on.
func (rt *Runtime) persistPlayerChange(ctx context.Context, req message.Request, playersBefore int) {
	playersNow := len(rt.room.Players)
	if playersNow == playersBefore {
		return
	}

	if _, isJoin := req.(message.JoinRoom); isJoin && playersNow > playersBefore {
		resp, err := rt.repo.Send(ctx, repository.CreatePlayerUser{RoomID: rt.room.EntryID})
		if err != nil {
			logging.Error(ctx, "creating player credential", zap.Error(err))
		} else if created, ok := resp.(repository.UserCreated); ok {
			rt.room.Players[playersNow-1].Token = created.Entry.Password
		}
	}

	if _, err := rt.repo.Send(ctx, repository.UpdatePlayers{
		RoomID:         rt.room.EntryID,
		CurrentPlayers: int32(playersNow),
	}); err != nil {
		logging.Error(ctx, "persisting player count", zap.Error(err))
	}
}

func requestLabel(req message.Request) string {
	switch req.(type) {
	case message.GetRoomState:
		return "get_room_state"
	case message.JoinRoom:
		return "join_room"
	case message.AddQuestion:
		return "add_question"
	case message.AddAnswer:
		return "add_answer"
	case message.SelectAnswer:
		return "select_answer"
	case message.Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// finish runs after the state machine went Dead: drop the room record and
// close the session.
func (rt *Runtime) finish(ctx context.Context) {
	if _, err := rt.repo.Send(ctx, repository.RemoveRoom{RoomID: rt.room.EntryID}); err != nil {
		logging.Error(ctx, "removing finished room", zap.Error(err))
	}
	rt.session.Disconnect()
	logging.Info(ctx, "room finished")
}
