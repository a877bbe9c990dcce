package room

import (
	"sort"
	"strconv"

	"github.com/eurus-project/eurus/internal/v1/message"
)

// Sender identifies where an inbound request came from: the global "rt"
// slot or a player slot.
type Sender struct {
	Runtime bool
	Player  message.PlayerID
}

// Command is what the state machine tells the runtime to do next.
type Command interface{ isCommand() }

// Skip means no publish and keep looping.
type Skip struct{}

// Abort means disconnect and exit the runtime loop.
type Abort struct {
	Reason string
}

// Respond carries the ordered responses to publish. Priv entries go to the
// player's read topic, everything else to the room broadcast.
type Respond struct {
	Resps []message.Response
}

func (Skip) isCommand()    {}
func (Abort) isCommand()   {}
func (Respond) isCommand() {}

func respond(resps ...message.Response) Respond {
	return Respond{Resps: resps}
}

func privErr(to message.PlayerID, kind message.ErrResponse) Respond {
	return respond(message.Priv{Player: to, Inner: message.Err{Kind: kind}})
}

// Process advances the state machine by one request. Handling is strictly
// sequential; the caller publishes all returned responses before dequeueing
// the next request. Input/state pairs without a defined edge reduce to Skip.
func (r *Room) Process(sender Sender, req message.Request) Command {
	if r.State == Dead {
		return Skip{}
	}

	switch q := req.(type) {
	case message.GetRoomState:
		if sender.Runtime {
			return respond(r.Snapshot())
		}
		return respond(message.Priv{Player: sender.Player, Inner: r.Snapshot()})

	case message.JoinRoom:
		if sender.Runtime {
			return Skip{}
		}
		return r.join(sender.Player, q.Name)

	case message.AddQuestion:
		if sender.Runtime {
			return Skip{}
		}
		return r.addQuestion(sender.Player, q.Content)

	case message.AddAnswer:
		if sender.Runtime {
			return Skip{}
		}
		return r.addAnswer(sender.Player, q.Content)

	case message.SelectAnswer:
		if sender.Runtime {
			return Skip{}
		}
		return r.selectAnswer(sender.Player, q.AnswerID)

	case message.Disconnecting:
		if sender.Runtime {
			return Skip{}
		}
		return r.disconnect(sender.Player)

	default:
		return Skip{}
	}
}

func (r *Room) join(id message.PlayerID, name string) Command {
	if r.State != AcceptingPlayers {
		return privErr(id, message.ErrRoomFull)
	}
	if int(id) < 0 || int(id) >= r.PlayersLimit {
		return Skip{}
	}
	if r.player(id) != nil {
		return Skip{}
	}

	if name == "" {
		name = defaultName(id)
	}
	r.Players = append(r.Players, Player{ID: id, Name: name})

	if len(r.Players) == r.PlayersLimit {
		r.State = AcceptingQuestions
	}
	return respond(message.NewPlayerJoined{ID: id, Name: name})
}

func (r *Room) addQuestion(id message.PlayerID, content string) Command {
	if r.State != AcceptingQuestions || r.player(id) == nil {
		return Skip{}
	}
	if content == "" || len(content) > maxContentLen {
		return Skip{}
	}
	if r.questionsBy(id) >= r.questionQuota() {
		return privErr(id, message.ErrQuestionLimitReached)
	}

	question := Question{
		ID:       message.QuestionID(len(r.Questions)),
		PlayerID: id,
		Content:  content,
	}
	r.Questions = append(r.Questions, question)

	resps := []message.Response{message.QuestionAdded{ID: question.ID}}
	if len(r.Questions) == r.RoundsLimit {
		r.State = Playing
		resps = append(resps, r.startRound(0))
	}
	return Respond{Resps: resps}
}

// questionQuota is the per-player ceiling on deck contributions, sized so
// that a full room can always reach rounds_limit questions.
func (r *Room) questionQuota() int {
	if r.PlayersLimit == 0 {
		return 0
	}
	return (r.RoundsLimit + r.PlayersLimit - 1) / r.PlayersLimit
}

func (r *Room) startRound(num int) message.Response {
	round := Round{
		RoundNum: num,
		State:    AcceptingAnswers,
		Question: r.Questions[num],
		Answers:  make(map[message.PlayerID]Answer),
		Polls:    make(map[message.PlayerID]message.AnswerID),
	}
	r.CurrRound = &round
	return message.NewRound{RoundNum: num, Question: round.Question.Content}
}

func (r *Room) addAnswer(id message.PlayerID, content string) Command {
	if r.State != Playing || r.CurrRound == nil || r.CurrRound.State != AcceptingAnswers {
		return Skip{}
	}
	if r.player(id) == nil {
		return Skip{}
	}
	if content == "" || len(content) > maxContentLen {
		return Skip{}
	}
	if _, sent := r.CurrRound.Answers[id]; sent {
		return privErr(id, message.ErrAnswerAlreadySent)
	}

	r.CurrRound.Answers[id] = Answer{
		ID:       message.AnswerID(len(r.CurrRound.Answers)),
		PlayerID: id,
		Content:  content,
	}

	if r.allAnswered() {
		r.CurrRound.State = Polling
		return respond(r.Snapshot())
	}
	return Skip{}
}

func (r *Room) selectAnswer(id message.PlayerID, target message.AnswerID) Command {
	if r.State != Playing || r.CurrRound == nil || r.CurrRound.State != Polling {
		return Skip{}
	}
	if r.player(id) == nil {
		return Skip{}
	}
	if _, voted := r.CurrRound.Polls[id]; voted {
		return privErr(id, message.ErrAnswerAlreadySelected)
	}
	if !r.answerExists(target) {
		return Skip{}
	}

	r.CurrRound.Polls[id] = target

	if r.allVoted() {
		return Respond{Resps: r.finishRound()}
	}
	return Skip{}
}

func (r *Room) disconnect(id message.PlayerID) Command {
	if r.player(id) == nil {
		return Skip{}
	}

	kept := r.Players[:0]
	for _, p := range r.Players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	r.Players = kept

	resps := []message.Response{message.PlayerDisconnected{ID: id}}

	if len(r.Players) == 0 {
		r.State = Dead
		return Respond{Resps: resps}
	}

	// The departed player no longer blocks round completion.
	if r.State == Playing && r.CurrRound != nil {
		switch r.CurrRound.State {
		case AcceptingAnswers:
			if r.allAnswered() {
				r.CurrRound.State = Polling
				resps = append(resps, r.Snapshot())
			}
		case Polling:
			if r.allVoted() {
				resps = append(resps, r.finishRound()...)
			}
		}
	}
	return Respond{Resps: resps}
}

func (r *Room) allAnswered() bool {
	for _, p := range r.Players {
		if _, ok := r.CurrRound.Answers[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) allVoted() bool {
	for _, p := range r.Players {
		if _, ok := r.CurrRound.Polls[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) answerExists(id message.AnswerID) bool {
	for _, a := range r.CurrRound.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}

// finishRound scores the current round, archives it, and either starts the
// next round or ends the game. Each vote awards one point to the author of
// the chosen answer.
func (r *Room) finishRound() []message.Response {
	round := r.CurrRound
	for _, target := range round.Polls {
		for _, a := range round.Answers {
			if a.ID == target {
				if author := r.player(a.PlayerID); author != nil {
					author.Points++
				}
				break
			}
		}
	}

	r.PastRounds = append(r.PastRounds, *round)
	r.CurrRound = nil

	next := len(r.PastRounds)
	if next < r.RoundsLimit && next < len(r.Questions) {
		return []message.Response{r.startRound(next)}
	}

	r.State = Dead
	return []message.Response{r.finalScore()}
}

func (r *Room) finalScore() message.Response {
	scores := make([]message.PlayerScore, 0, len(r.Players))
	for _, p := range r.Players {
		scores = append(scores, message.PlayerScore{
			ID:     p.ID,
			Name:   p.Name,
			Points: p.Points,
		})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Points > scores[j].Points })
	return message.GameScore{Scores: scores}
}

func defaultName(id message.PlayerID) string {
	return "player-" + strconv.Itoa(int(id))
}
