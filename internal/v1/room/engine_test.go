package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurus-project/eurus/internal/v1/message"
	"github.com/eurus-project/eurus/internal/v1/repository"
)

func testEntry(playersLimit int64) repository.RoomEntry {
	return repository.RoomEntry{
		ID:           repository.EntryID{0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4, 5, 6, 7, 8},
		Password:     12345,
		PlayersLimit: playersLimit,
	}
}

func playerSender(id int) Sender {
	return Sender{Player: message.PlayerID(id)}
}

// fullRoom builds a room with every seat taken, sitting in
// AcceptingQuestions.
func fullRoom(t *testing.T, players, rounds int) *Room {
	t.Helper()
	r := New(testEntry(int64(players)), rounds)
	for i := 0; i < players; i++ {
		cmd := r.Process(playerSender(i), message.JoinRoom{Name: "p" + string(rune('a'+i))})
		require.IsType(t, Respond{}, cmd)
	}
	require.Equal(t, AcceptingQuestions, r.State)
	return r
}

// playingRoom additionally fills the deck so round 0 is live.
func playingRoom(t *testing.T, players, rounds int) *Room {
	t.Helper()
	r := fullRoom(t, players, rounds)
	for i := 0; i < rounds; i++ {
		author := i % players
		cmd := r.Process(playerSender(author), message.AddQuestion{Content: "question"})
		require.IsType(t, Respond{}, cmd)
	}
	require.Equal(t, Playing, r.State)
	require.NotNil(t, r.CurrRound)
	return r
}

func TestJoin_FillsSeatsThenAcceptsQuestions(t *testing.T) {
	r := New(testEntry(2), 3)

	cmd := r.Process(playerSender(0), message.JoinRoom{Name: "ann"})
	require.IsType(t, Respond{}, cmd)
	assert.Equal(t, []message.Response{message.NewPlayerJoined{ID: 0, Name: "ann"}}, cmd.(Respond).Resps)
	assert.Equal(t, AcceptingPlayers, r.State)

	cmd = r.Process(playerSender(1), message.JoinRoom{Name: "bob"})
	require.IsType(t, Respond{}, cmd)
	assert.Equal(t, AcceptingQuestions, r.State)
	assert.Len(t, r.Players, 2)
}

func TestJoin_DefaultsEmptyName(t *testing.T) {
	r := New(testEntry(2), 3)
	cmd := r.Process(playerSender(0), message.JoinRoom{})
	require.IsType(t, Respond{}, cmd)
	assert.Equal(t, "player-0", r.Players[0].Name)
}

func TestJoin_FullRoomRefused(t *testing.T) {
	r := fullRoom(t, 2, 3)
	cmd := r.Process(playerSender(1), message.JoinRoom{Name: "late"})
	assert.Equal(t, privErr(1, message.ErrRoomFull), cmd)
	assert.Len(t, r.Players, 2)
}

func TestJoin_DuplicateAndOutOfRangeSlotsSkipped(t *testing.T) {
	r := New(testEntry(3), 3)
	r.Process(playerSender(0), message.JoinRoom{Name: "ann"})

	assert.Equal(t, Skip{}, r.Process(playerSender(0), message.JoinRoom{Name: "again"}))
	assert.Equal(t, Skip{}, r.Process(playerSender(7), message.JoinRoom{Name: "ghost"}))
	assert.Len(t, r.Players, 1)
}

func TestAddQuestion_ThresholdStartsGame(t *testing.T) {
	r := fullRoom(t, 2, 2)

	cmd := r.Process(playerSender(0), message.AddQuestion{Content: "q0"})
	require.IsType(t, Respond{}, cmd)
	assert.Equal(t, []message.Response{message.QuestionAdded{ID: 0}}, cmd.(Respond).Resps)

	cmd = r.Process(playerSender(1), message.AddQuestion{Content: "q1"})
	require.IsType(t, Respond{}, cmd)
	resps := cmd.(Respond).Resps
	require.Len(t, resps, 2)
	assert.Equal(t, message.QuestionAdded{ID: 1}, resps[0])
	assert.Equal(t, message.NewRound{RoundNum: 0, Question: "q0"}, resps[1])
	assert.Equal(t, Playing, r.State)
	require.NotNil(t, r.CurrRound)
	assert.Equal(t, AcceptingAnswers, r.CurrRound.State)
}

func TestAddQuestion_QuotaEnforced(t *testing.T) {
	// Two players, four rounds: quota is two questions each.
	r := fullRoom(t, 2, 4)

	r.Process(playerSender(0), message.AddQuestion{Content: "q0"})
	r.Process(playerSender(0), message.AddQuestion{Content: "q1"})

	cmd := r.Process(playerSender(0), message.AddQuestion{Content: "q2"})
	assert.Equal(t, privErr(0, message.ErrQuestionLimitReached), cmd)
	assert.Len(t, r.Questions, 2)
}

func TestAddQuestion_OutsidePhaseSkipped(t *testing.T) {
	r := New(testEntry(2), 3)
	assert.Equal(t, Skip{}, r.Process(playerSender(0), message.AddQuestion{Content: "early"}))
}

func TestAddAnswer_AllAnsweredEntersPolling(t *testing.T) {
	r := playingRoom(t, 2, 2)

	assert.Equal(t, Skip{}, r.Process(playerSender(0), message.AddAnswer{Content: "a0"}))
	assert.Equal(t, AcceptingAnswers, r.CurrRound.State)

	cmd := r.Process(playerSender(1), message.AddAnswer{Content: "a1"})
	require.IsType(t, Respond{}, cmd)
	require.Len(t, cmd.(Respond).Resps, 1)
	snap, ok := cmd.(Respond).Resps[0].(message.RoomState)
	require.True(t, ok)
	assert.Equal(t, Polling, r.CurrRound.State)
	require.NotNil(t, snap.CurrRound)
	assert.Equal(t, string(Polling), snap.CurrRound.State)
	assert.Len(t, snap.CurrRound.Answers, 2)
}

func TestAddAnswer_DuplicateIsIdempotent(t *testing.T) {
	r := playingRoom(t, 2, 2)
	r.Process(playerSender(0), message.AddAnswer{Content: "first"})

	cmd := r.Process(playerSender(0), message.AddAnswer{Content: "second"})
	assert.Equal(t, privErr(0, message.ErrAnswerAlreadySent), cmd)
	assert.Len(t, r.CurrRound.Answers, 1)
	assert.Equal(t, "first", r.CurrRound.Answers[0].Content)
}

func TestSelectAnswer_DuplicateVoteRefused(t *testing.T) {
	r := playingRoom(t, 2, 2)
	r.Process(playerSender(0), message.AddAnswer{Content: "a0"})
	r.Process(playerSender(1), message.AddAnswer{Content: "a1"})

	assert.Equal(t, Skip{}, r.Process(playerSender(0), message.SelectAnswer{AnswerID: 1}))
	cmd := r.Process(playerSender(0), message.SelectAnswer{AnswerID: 0})
	assert.Equal(t, privErr(0, message.ErrAnswerAlreadySelected), cmd)
}

func TestSelectAnswer_UnknownTargetSkipped(t *testing.T) {
	r := playingRoom(t, 2, 2)
	r.Process(playerSender(0), message.AddAnswer{Content: "a0"})
	r.Process(playerSender(1), message.AddAnswer{Content: "a1"})

	assert.Equal(t, Skip{}, r.Process(playerSender(0), message.SelectAnswer{AnswerID: 42}))
	assert.Empty(t, r.CurrRound.Polls)
}

func TestFullGame_PlaysExactlyRoundsLimitThenDies(t *testing.T) {
	const rounds = 2
	r := playingRoom(t, 2, rounds)

	for round := 0; round < rounds; round++ {
		r.Process(playerSender(0), message.AddAnswer{Content: "a0"})
		r.Process(playerSender(1), message.AddAnswer{Content: "a1"})
		require.Equal(t, Polling, r.CurrRound.State)

		answerOf := func(p message.PlayerID) message.AnswerID {
			return r.CurrRound.Answers[p].ID
		}
		// Both vote for player 0's answer.
		r.Process(playerSender(0), message.SelectAnswer{AnswerID: answerOf(0)})
		cmd := r.Process(playerSender(1), message.SelectAnswer{AnswerID: answerOf(0)})
		require.IsType(t, Respond{}, cmd)

		if round < rounds-1 {
			assert.Equal(t, []message.Response{
				message.NewRound{RoundNum: round + 1, Question: r.CurrRound.Question.Content},
			}, cmd.(Respond).Resps)
		} else {
			resps := cmd.(Respond).Resps
			require.Len(t, resps, 1)
			score, ok := resps[0].(message.GameScore)
			require.True(t, ok)
			require.Len(t, score.Scores, 2)
			// Two votes per round went to player 0.
			assert.Equal(t, message.PlayerID(0), score.Scores[0].ID)
			assert.Equal(t, 2*rounds, score.Scores[0].Points)
			assert.Equal(t, 0, score.Scores[1].Points)
		}
	}

	assert.Equal(t, Dead, r.State)
	assert.Nil(t, r.CurrRound)
	assert.Len(t, r.PastRounds, rounds)

	// Dead is terminal.
	assert.Equal(t, Skip{}, r.Process(playerSender(0), message.GetRoomState{}))
}

func TestDisconnect_RemovesPlayerAndUnblocksRound(t *testing.T) {
	r := playingRoom(t, 2, 2)
	r.Process(playerSender(0), message.AddAnswer{Content: "a0"})

	cmd := r.Process(playerSender(1), message.Disconnecting{})
	require.IsType(t, Respond{}, cmd)
	resps := cmd.(Respond).Resps
	require.Len(t, resps, 2)
	assert.Equal(t, message.PlayerDisconnected{ID: 1}, resps[0])
	assert.IsType(t, message.RoomState{}, resps[1])
	assert.Equal(t, Polling, r.CurrRound.State)
}

func TestDisconnect_LastPlayerKillsRoom(t *testing.T) {
	r := New(testEntry(2), 3)
	r.Process(playerSender(0), message.JoinRoom{Name: "ann"})

	cmd := r.Process(playerSender(0), message.Disconnecting{})
	require.IsType(t, Respond{}, cmd)
	assert.Equal(t, Dead, r.State)
}

func TestGetRoomState_PrivateToSenderBroadcastForRuntime(t *testing.T) {
	r := fullRoom(t, 2, 3)

	cmd := r.Process(playerSender(1), message.GetRoomState{})
	require.IsType(t, Respond{}, cmd)
	priv, ok := cmd.(Respond).Resps[0].(message.Priv)
	require.True(t, ok)
	assert.Equal(t, message.PlayerID(1), priv.Player)
	assert.IsType(t, message.RoomState{}, priv.Inner)

	cmd = r.Process(Sender{Runtime: true}, message.GetRoomState{})
	require.IsType(t, Respond{}, cmd)
	assert.IsType(t, message.RoomState{}, cmd.(Respond).Resps[0])
}

func TestInvariants_HoldThroughFullGame(t *testing.T) {
	r := playingRoom(t, 3, 3)

	check := func() {
		assert.LessOrEqual(t, len(r.Players), r.PlayersLimit)
		played := len(r.PastRounds)
		if r.CurrRound != nil {
			played++
			assert.Equal(t, Playing, r.State)
			for voter, target := range r.CurrRound.Polls {
				assert.NotNil(t, r.player(voter))
				assert.True(t, r.answerExists(target))
			}
		}
		assert.LessOrEqual(t, played, r.RoundsLimit)
	}

	for r.State == Playing {
		for i := 0; i < 3; i++ {
			r.Process(playerSender(i), message.AddAnswer{Content: "answer"})
			check()
		}
		for i := 0; i < 3; i++ {
			if r.CurrRound == nil {
				break
			}
			r.Process(playerSender(i), message.SelectAnswer{AnswerID: 0})
			check()
		}
	}
	assert.Equal(t, Dead, r.State)
	check()
}

func TestOversizedContentDropped(t *testing.T) {
	r := fullRoom(t, 2, 2)
	huge := make([]byte, maxContentLen+1)
	for i := range huge {
		huge[i] = 'x'
	}
	assert.Equal(t, Skip{}, r.Process(playerSender(0), message.AddQuestion{Content: string(huge)}))
	assert.Empty(t, r.Questions)
}
