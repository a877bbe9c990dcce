package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownVariant reports a tag that is not part of the schema.
var ErrUnknownVariant = errors.New("message: unknown variant")

// DecodeRequest parses an inbound payload. Both the bare-string form
// ("JoinRoom") and the tagged-object form ({"JoinRoom":{"name":"ann"}}) are
// accepted; the bare form yields a zero payload.
func DecodeRequest(data []byte) (Request, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		return requestFromTag(tag, nil)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("message: decoding request: %w", err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("message: request must carry exactly one variant tag, got %d", len(obj))
	}
	for tag, raw := range obj {
		return requestFromTag(tag, raw)
	}
	return nil, errors.New("message: empty request")
}

func requestFromTag(tag string, raw json.RawMessage) (Request, error) {
	switch tag {
	case "GetRoomState":
		return GetRoomState{}, nil
	case "JoinRoom":
		var v JoinRoom
		return v, unmarshalPayload(raw, &v)
	case "AddQuestion":
		var v AddQuestion
		return v, unmarshalPayload(raw, &v)
	case "AddAnswer":
		var v AddAnswer
		return v, unmarshalPayload(raw, &v)
	case "SelectAnswer":
		var v SelectAnswer
		return v, unmarshalPayload(raw, &v)
	case "Disconnecting":
		return Disconnecting{}, nil
	default:
		return nil, fmt.Errorf("%w: request %q", ErrUnknownVariant, tag)
	}
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("message: decoding request payload: %w", err)
	}
	return nil
}

// EncodeRequest renders a request in its canonical wire form.
func EncodeRequest(r Request) ([]byte, error) {
	switch v := r.(type) {
	case GetRoomState:
		return json.Marshal("GetRoomState")
	case JoinRoom:
		return tagged("JoinRoom", v)
	case AddQuestion:
		return tagged("AddQuestion", v)
	case AddAnswer:
		return tagged("AddAnswer", v)
	case SelectAnswer:
		return tagged("SelectAnswer", v)
	case Disconnecting:
		return json.Marshal("Disconnecting")
	default:
		return nil, fmt.Errorf("%w: request %T", ErrUnknownVariant, r)
	}
}

// EncodeResponse renders a response in its canonical wire form.
func EncodeResponse(r Response) ([]byte, error) {
	switch v := r.(type) {
	case RuntimeStarted:
		return json.Marshal("RuntimeStarted")
	case NewPlayerJoined:
		return tagged("NewPlayerJoined", v)
	case PlayerDisconnected:
		return tagged("PlayerDisconnected", v)
	case QuestionAdded:
		return tagged("QuestionAdded", v)
	case NewRound:
		return tagged("NewRound", v)
	case GameScore:
		return tagged("GameScore", v)
	case RoomState:
		return tagged("RoomState", v)
	case Err:
		return json.Marshal(map[string]ErrResponse{"Err": v.Kind})
	case Priv:
		inner, err := EncodeResponse(v.Inner)
		if err != nil {
			return nil, err
		}
		id, err := json.Marshal(v.Player)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string][]json.RawMessage{
			"Priv": {id, inner},
		})
	default:
		return nil, fmt.Errorf("%w: response %T", ErrUnknownVariant, r)
	}
}

// DecodeResponse parses an outbound payload; it exists so tests and player
// clients can read what the runtime publishes.
func DecodeResponse(data []byte) (Response, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		return responseFromTag(tag, nil)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("message: decoding response: %w", err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("message: response must carry exactly one variant tag, got %d", len(obj))
	}
	for tag, raw := range obj {
		return responseFromTag(tag, raw)
	}
	return nil, errors.New("message: empty response")
}

func responseFromTag(tag string, raw json.RawMessage) (Response, error) {
	switch tag {
	case "RuntimeStarted":
		return RuntimeStarted{}, nil
	case "NewPlayerJoined":
		var v NewPlayerJoined
		return v, unmarshalPayload(raw, &v)
	case "PlayerDisconnected":
		var v PlayerDisconnected
		return v, unmarshalPayload(raw, &v)
	case "QuestionAdded":
		var v QuestionAdded
		return v, unmarshalPayload(raw, &v)
	case "NewRound":
		var v NewRound
		return v, unmarshalPayload(raw, &v)
	case "GameScore":
		var v GameScore
		return v, unmarshalPayload(raw, &v)
	case "RoomState":
		var v RoomState
		return v, unmarshalPayload(raw, &v)
	case "Err":
		var kind ErrResponse
		if err := unmarshalPayload(raw, &kind); err != nil {
			return nil, err
		}
		switch kind {
		case ErrRoomFull, ErrQuestionLimitReached, ErrAnswerAlreadySent, ErrAnswerAlreadySelected:
			return Err{Kind: kind}, nil
		default:
			return nil, fmt.Errorf("%w: error %q", ErrUnknownVariant, kind)
		}
	case "Priv":
		var parts []json.RawMessage
		if err := unmarshalPayload(raw, &parts); err != nil {
			return nil, err
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("message: Priv must be [player, response], got %d elements", len(parts))
		}
		var player PlayerID
		if err := json.Unmarshal(parts[0], &player); err != nil {
			return nil, fmt.Errorf("message: decoding Priv player: %w", err)
		}
		inner, err := DecodeResponse(parts[1])
		if err != nil {
			return nil, err
		}
		return Priv{Player: player, Inner: inner}, nil
	default:
		return nil, fmt.Errorf("%w: response %q", ErrUnknownVariant, tag)
	}
}

func tagged(tag string, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{tag: payload})
}
