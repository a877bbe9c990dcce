// Package message defines the JSON wire schema spoken between room runtimes
// and players: externally-tagged Request, Response and ErrResponse sum types.
//
// Unit variants travel as bare JSON strings ("RuntimeStarted"); variants with
// a payload travel as single-key objects ({"AddQuestion":{"content":"..."}}).
// Errors wrap as {"Err":"AnswerAlreadySent"} and private responses as
// {"Priv":[<player_id>,<response>]}.
package message

// PlayerID is a dense small integer identifying a player within one room; it
// equals the player's topic slot.
type PlayerID int

// QuestionID identifies a question within one room.
type QuestionID int

// AnswerID identifies an answer within one round.
type AnswerID int

// Request is an inbound message from a player or the global write topic.
type Request interface{ isRequest() }

// GetRoomState asks for a private snapshot of the room.
type GetRoomState struct{}

// JoinRoom claims the sender's topic slot as a player seat.
type JoinRoom struct {
	Name string `json:"name"`
}

// AddQuestion submits a question for the game deck.
type AddQuestion struct {
	Content string `json:"content"`
}

// AddAnswer submits the sender's answer for the current round.
type AddAnswer struct {
	Content string `json:"content"`
}

// SelectAnswer casts the sender's vote for one answer of the current round.
type SelectAnswer struct {
	AnswerID AnswerID `json:"answer_id"`
}

// Disconnecting announces that the sender is leaving the room.
type Disconnecting struct{}

func (GetRoomState) isRequest()  {}
func (JoinRoom) isRequest()      {}
func (AddQuestion) isRequest()   {}
func (AddAnswer) isRequest()     {}
func (SelectAnswer) isRequest()  {}
func (Disconnecting) isRequest() {}

// Response is an outbound message published by a room runtime.
type Response interface{ isResponse() }

// RuntimeStarted announces a freshly spawned room runtime.
type RuntimeStarted struct{}

// NewPlayerJoined broadcasts a successful join.
type NewPlayerJoined struct {
	ID   PlayerID `json:"id"`
	Name string   `json:"name"`
}

// PlayerDisconnected broadcasts that a player left.
type PlayerDisconnected struct {
	ID PlayerID `json:"id"`
}

// QuestionAdded broadcasts that a question entered the deck.
type QuestionAdded struct {
	ID QuestionID `json:"id"`
}

// NewRound broadcasts the start of a round and its question.
type NewRound struct {
	RoundNum int    `json:"round_num"`
	Question string `json:"question"`
}

// GameScore broadcasts the final standings; it is the room's last word.
type GameScore struct {
	Scores []PlayerScore `json:"scores"`
}

// PlayerScore is one row of the final standings.
type PlayerScore struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	Points int      `json:"points"`
}

// RoomState is a snapshot of the room, sent privately on GetRoomState and
// broadcast when a round enters polling.
type RoomState struct {
	State        string      `json:"state"`
	PlayersLimit int         `json:"players_limit"`
	RoundsLimit  int         `json:"rounds_limit"`
	Players      []PlayerInfo `json:"players"`
	RoundsPlayed int         `json:"rounds_played"`
	CurrRound    *RoundInfo  `json:"curr_round,omitempty"`
}

// PlayerInfo is the public view of a player.
type PlayerInfo struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	Points int      `json:"points"`
}

// RoundInfo is the public view of the current round.
type RoundInfo struct {
	RoundNum int          `json:"round_num"`
	State    string       `json:"state"`
	Question string       `json:"question"`
	Answers  []AnswerInfo `json:"answers"`
}

// AnswerInfo is the public view of a submitted answer. The author stays
// hidden until scoring.
type AnswerInfo struct {
	ID      AnswerID `json:"id"`
	Content string   `json:"content"`
}

// Priv wraps a response addressed to a single player; the runtime publishes
// it on that player's read topic instead of the room-wide broadcast.
type Priv struct {
	Player PlayerID
	Inner  Response
}

// Err wraps a game rule violation reported back to the offending player.
type Err struct {
	Kind ErrResponse
}

func (RuntimeStarted) isResponse()     {}
func (NewPlayerJoined) isResponse()    {}
func (PlayerDisconnected) isResponse() {}
func (QuestionAdded) isResponse()      {}
func (NewRound) isResponse()           {}
func (GameScore) isResponse()          {}
func (RoomState) isResponse()          {}
func (Priv) isResponse()               {}
func (Err) isResponse()                {}

// ErrResponse enumerates the game rule violations.
type ErrResponse string

const (
	ErrRoomFull              ErrResponse = "RoomFull"
	ErrQuestionLimitReached  ErrResponse = "QuestionLimitReached"
	ErrAnswerAlreadySent     ErrResponse = "AnswerAlreadySent"
	ErrAnswerAlreadySelected ErrResponse = "AnswerAlreadySelected"
)
