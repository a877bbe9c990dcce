// Package room holds the per-room game model, its state machine, and the
// runtime actor that drives one room against the broker.
package room

import (
	"sort"

	"github.com/eurus-project/eurus/internal/v1/message"
	"github.com/eurus-project/eurus/internal/v1/repository"
)

// State is the lifecycle phase of a room.
type State string

const (
	AcceptingPlayers   State = "AcceptingPlayers"
	AcceptingQuestions State = "AcceptingQuestions"
	Playing            State = "Playing"
	Dead               State = "Dead"
)

// RoundState is the phase of the current round.
type RoundState string

const (
	AcceptingAnswers RoundState = "AcceptingAnswers"
	Polling          RoundState = "Polling"
)

// Free-text payloads over this length are dropped.
const maxContentLen = 512

// Player is one seat in a room. ID doubles as the player's topic slot.
type Player struct {
	ID     message.PlayerID
	Token  int64
	Name   string
	Points int
}

// Question is one entry of the game deck.
type Question struct {
	ID       message.QuestionID
	PlayerID message.PlayerID
	Content  string
}

// Answer is one player's answer within a round. The author stays hidden from
// the public snapshot until scoring.
type Answer struct {
	ID       message.AnswerID
	PlayerID message.PlayerID
	Content  string
}

// Round holds one round's answers and votes. At most one answer and one vote
// per player; every vote targets a recorded answer.
type Round struct {
	RoundNum int
	State    RoundState
	Question Question
	Answers  map[message.PlayerID]Answer
	Polls    map[message.PlayerID]message.AnswerID
}

// Room is the in-memory game model, exclusively owned by its runtime.
type Room struct {
	ID           string
	EntryID      repository.EntryID
	Pass         int64
	PlayersLimit int
	RoundsLimit  int

	Players    []Player
	Questions  []Question
	CurrRound  *Round
	PastRounds []Round
	State      State
}

// New builds a fresh room in AcceptingPlayers.
func New(entry repository.RoomEntry, roundsLimit int) *Room {
	return &Room{
		ID:           entry.ID.String(),
		EntryID:      entry.ID,
		Pass:         entry.Password,
		PlayersLimit: int(entry.PlayersLimit),
		RoundsLimit:  roundsLimit,
		State:        AcceptingPlayers,
	}
}

func (r *Room) player(id message.PlayerID) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// questionsBy counts deck entries authored by one player.
func (r *Room) questionsBy(id message.PlayerID) int {
	n := 0
	for _, q := range r.Questions {
		if q.PlayerID == id {
			n++
		}
	}
	return n
}

// Snapshot renders the public view of the room.
func (r *Room) Snapshot() message.RoomState {
	players := make([]message.PlayerInfo, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, message.PlayerInfo{
			ID:     p.ID,
			Name:   p.Name,
			Points: p.Points,
		})
	}

	snap := message.RoomState{
		State:        string(r.State),
		PlayersLimit: r.PlayersLimit,
		RoundsLimit:  r.RoundsLimit,
		Players:      players,
		RoundsPlayed: len(r.PastRounds),
	}

	if r.CurrRound != nil {
		answers := make([]message.AnswerInfo, 0, len(r.CurrRound.Answers))
		for _, a := range r.CurrRound.Answers {
			answers = append(answers, message.AnswerInfo{ID: a.ID, Content: a.Content})
		}
		sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
		snap.CurrRound = &message.RoundInfo{
			RoundNum: r.CurrRound.RoundNum,
			State:    string(r.CurrRound.State),
			Question: r.CurrRound.Question.Content,
			Answers:  answers,
		}
	}
	return snap
}
