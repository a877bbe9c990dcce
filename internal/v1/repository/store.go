package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/eurus-project/eurus/internal/v1/config"
)

// MongoStore backs the actor with MongoDB. A circuit breaker sits in front
// of every operation so a dead store fails fast instead of piling up
// timed-out requests.
type MongoStore struct {
	client  *mongo.Client
	rooms   *mongo.Collection
	users   *mongo.Collection
	breaker *gobreaker.CircuitBreaker
}

// NewMongoStore connects to the configured database using SCRAM-SHA-1 with
// the database itself as auth source.
func NewMongoStore(ctx context.Context, cfg config.DB) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI("mongodb://" + cfg.Host).
		SetAuth(options.Credential{
			AuthMechanism: "SCRAM-SHA-1",
			AuthSource:    cfg.Database,
			Username:      cfg.User,
			Password:      cfg.Password,
		})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}

	db := client.Database(cfg.Database)
	return &MongoStore{
		client: client,
		rooms:  db.Collection(cfg.RoomsCollection),
		users:  db.Collection(cfg.UsersCollection),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mongo",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

func (s *MongoStore) InsertRoom(ctx context.Context, password, playersLimit int64) (EntryID, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.rooms.InsertOne(ctx, bson.D{
			{Key: "room_pass", Value: password},
			{Key: "players_limit", Value: playersLimit},
			{Key: "curr_players", Value: int32(0)},
		})
	})
	if err != nil {
		return EntryID{}, err
	}

	oid, ok := res.(*mongo.InsertOneResult).InsertedID.(primitive.ObjectID)
	if !ok {
		return EntryID{}, fmt.Errorf("store returned non-ObjectID room id")
	}
	return EntryID(oid), nil
}

func (s *MongoStore) RemoveRoom(ctx context.Context, id EntryID) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.rooms.DeleteOne(ctx, bson.D{
			{Key: "_id", Value: primitive.ObjectID(id)},
		})
	})
	return err
}

func (s *MongoStore) InsertUser(ctx context.Context, roomID EntryID, password int64, kind UserKind) (EntryID, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.users.InsertOne(ctx, bson.D{
			{Key: "password", Value: password},
			{Key: "kind", Value: string(kind)},
			{Key: "room_id", Value: primitive.ObjectID(roomID)},
		})
	})
	if err != nil {
		return EntryID{}, err
	}

	oid, ok := res.(*mongo.InsertOneResult).InsertedID.(primitive.ObjectID)
	if !ok {
		return EntryID{}, fmt.Errorf("store returned non-ObjectID user id")
	}
	return EntryID(oid), nil
}

func (s *MongoStore) UpdateRoomPlayers(ctx context.Context, id EntryID, currentPlayers int32) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.rooms.UpdateByID(ctx, primitive.ObjectID(id), bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "curr_players", Value: currentPlayers},
			}},
		})
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx, readpref.Primary())
	})
	return err
}

func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
