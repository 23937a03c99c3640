package websocket

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"vmeste.me/model"
	"vmeste.me/pkg/utils"
)

// Inbound event names.
const (
	EvJoinRoom       = "joinRoom"
	EvPlaybackEvent  = "playbackEvent"
	EvSyncUpdate     = "syncUpdate"
	EvUserTyping     = "userTyping"
	EvUpdateFileInfo = "updateFileInfo"
	EvGetRoomUsers   = "getRoomUsers"
)

// Outbound event names.
const (
	EvRoomIDGenerated = "roomIdGenerated"
	EvChatMessage     = "chatMessage"
	EvFullRoomState   = "fullRoomState"
	EvPlaybackUpdate  = "playbackUpdate"
	EvSyncTime        = "syncTime"
	EvTypingStatus    = "typingStatusUpdate"
	EvRoomUsers       = "roomUsers"
	EvJoinRejected    = "joinRejected"
)

// Playback event types.
const (
	PlaybackPlay  = "play"
	PlaybackPause = "pause"
	PlaybackSeek  = "seek"
)

type (
	// Envelope is the frame every inbound message arrives in. UserID, Seq and
	// SentAt are stamped by the gateway on receipt and never trusted from the
	// client; they survive the trip through the message broker.
	Envelope struct {
		ID      string          `json:"id,omitempty"`
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload,omitempty"`

		UserID string    `json:"userId,omitempty"`
		Seq    uint64    `json:"seq,omitempty"`
		SentAt time.Time `json:"sentAt,omitempty"`
	}

	// Inbound is one decoded event payload. The set of implementations is
	// closed: Decode rejects any event name outside it.
	Inbound interface {
		Room() string
		validate() error
	}

	JoinRoom struct {
		RoomID       string `json:"roomId,omitempty"`
		Username     string `json:"username"`
		RoomPassword string `json:"roomPassword,omitempty"`
	}

	PlaybackEvent struct {
		RoomID    string   `json:"roomId"`
		EventType string   `json:"eventType"`
		Time      *float64 `json:"time,omitempty"`
	}

	SyncUpdate struct {
		RoomID    string  `json:"roomId"`
		Time      float64 `json:"time"`
		IsPlaying bool    `json:"isPlaying"`
	}

	UserTyping struct {
		RoomID   string `json:"roomId"`
		UserID   string `json:"userId"`
		IsTyping bool   `json:"isTyping"`
	}

	UpdateFileInfo struct {
		RoomID   string         `json:"roomId"`
		FileInfo model.FileInfo `json:"fileInfo"`
	}

	GetRoomUsers struct {
		RoomID string
	}
)

// Decode unpacks and validates the envelope's payload by event name.
func (e *Envelope) Decode() (Inbound, error) {
	var in Inbound
	switch e.Event {
	case EvJoinRoom:
		in = &JoinRoom{}
	case EvPlaybackEvent:
		in = &PlaybackEvent{}
	case EvSyncUpdate:
		in = &SyncUpdate{}
	case EvUserTyping:
		in = &UserTyping{}
	case EvUpdateFileInfo:
		in = &UpdateFileInfo{}
	case EvGetRoomUsers:
		// payload is the bare room id
		var roomID string
		if err := json.Unmarshal(e.Payload, &roomID); err != nil {
			return nil, fmt.Errorf("invalid '%s' payload: %w", e.Event, err)
		}
		in = &GetRoomUsers{RoomID: roomID}
	default:
		return nil, fmt.Errorf("unknown event: '%s'", e.Event)
	}

	if e.Event != EvGetRoomUsers {
		if err := json.Unmarshal(e.Payload, in); err != nil {
			return nil, fmt.Errorf("invalid '%s' payload: %w", e.Event, err)
		}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func (p *JoinRoom) Room() string { return p.RoomID }

func (p *JoinRoom) validate() error {
	if !utils.IsNameValid(p.Username) {
		return fmt.Errorf("invalid username: '%s'", p.Username)
	}
	if p.RoomID != "" && !utils.IsLengthValid(p.RoomID, 1, 64) {
		return fmt.Errorf("invalid room id")
	}
	return nil
}

func (p *PlaybackEvent) Room() string { return p.RoomID }

func (p *PlaybackEvent) validate() error {
	if strings.TrimSpace(p.RoomID) == "" {
		return fmt.Errorf("invalid room id")
	}
	switch p.EventType {
	case PlaybackPlay, PlaybackPause:
		return nil
	case PlaybackSeek:
		if p.Time == nil {
			return fmt.Errorf("'%s' requires param 'time'", p.EventType)
		}
		return validTime(*p.Time)
	default:
		return fmt.Errorf("unknown playback event type: '%s'", p.EventType)
	}
}

func (p *SyncUpdate) Room() string { return p.RoomID }

func (p *SyncUpdate) validate() error {
	if strings.TrimSpace(p.RoomID) == "" {
		return fmt.Errorf("invalid room id")
	}
	return validTime(p.Time)
}

func (p *UserTyping) Room() string { return p.RoomID }

func (p *UserTyping) validate() error {
	if strings.TrimSpace(p.RoomID) == "" {
		return fmt.Errorf("invalid room id")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("invalid user id")
	}
	return nil
}

func (p *UpdateFileInfo) Room() string { return p.RoomID }

func (p *UpdateFileInfo) validate() error {
	if strings.TrimSpace(p.RoomID) == "" {
		return fmt.Errorf("invalid room id")
	}
	if p.FileInfo.FileSize < 0 {
		return fmt.Errorf("invalid file size: %d", p.FileInfo.FileSize)
	}
	return nil
}

func (p *GetRoomUsers) Room() string { return p.RoomID }

func (p *GetRoomUsers) validate() error {
	if strings.TrimSpace(p.RoomID) == "" {
		return fmt.Errorf("invalid room id")
	}
	return nil
}

func validTime(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return fmt.Errorf("invalid playback time: %f", t)
	}
	return nil
}

type (
	// Event is an outbound frame pushed to subscribers.
	Event struct {
		Event   string      `json:"event"`
		Payload interface{} `json:"payload,omitempty"`
	}

	// Response acknowledges one inbound request by its client-assigned id.
	Response struct {
		ID     string                 `json:"id"`
		Result map[string]interface{} `json:"result"`
	}

	ChatMessage struct {
		Message string `json:"message"`
	}

	PlaybackUpdate struct {
		EventType string  `json:"eventType"`
		Time      float64 `json:"time"`
		IsPlaying bool    `json:"isPlaying"`
	}

	SyncTime struct {
		Time      float64 `json:"time"`
		IsPlaying bool    `json:"isPlaying"`
	}

	TypingStatus struct {
		UserID   string `json:"userId"`
		IsTyping bool   `json:"isTyping"`
	}

	JoinRejected struct {
		RoomID string `json:"roomId"`
		Reason string `json:"reason"`
		Code   int    `json:"code"`
	}
)

// MarshalEvent frames an outbound event once, so a broadcast serializes a
// single time no matter how many subscribers it reaches.
func MarshalEvent(name string, payload interface{}) ([]byte, error) {
	return json.Marshal(&Event{Event: name, Payload: payload})
}

func NewResponse(id string, code int) *Response {
	return &Response{
		ID: id,
		Result: map[string]interface{}{
			"success": code == 200,
			"code":    code,
		},
	}
}
