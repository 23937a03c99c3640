package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullSubscriber struct {
	id string
}

func (s *nullSubscriber) GetID() string     { return s.id }
func (s *nullSubscriber) Send([]byte) error { return nil }

func decode(t *testing.T, event string, payload string) (Inbound, error) {
	t.Helper()
	e := &Envelope{ID: "1", Event: event, Payload: json.RawMessage(payload)}
	return e.Decode()
}

func TestDecodeJoinRoom(t *testing.T) {
	in, err := decode(t, EvJoinRoom, `{"roomId":"1234-5678","username":"Alice","roomPassword":"hunter2"}`)
	require.NoError(t, err)
	join, ok := in.(*JoinRoom)
	require.True(t, ok)
	assert.Equal(t, "1234-5678", join.Room())
	assert.Equal(t, "Alice", join.Username)
	assert.Equal(t, "hunter2", join.RoomPassword)

	// room id may be omitted, the gateway mints one
	in, err = decode(t, EvJoinRoom, `{"username":"Alice"}`)
	require.NoError(t, err)
	assert.Equal(t, "", in.Room())

	_, err = decode(t, EvJoinRoom, `{"username":" "}`)
	assert.Error(t, err)
}

func TestDecodePlaybackEvent(t *testing.T) {
	in, err := decode(t, EvPlaybackEvent, `{"roomId":"A","eventType":"seek","time":120}`)
	require.NoError(t, err)
	pb := in.(*PlaybackEvent)
	require.NotNil(t, pb.Time)
	assert.Equal(t, 120.0, *pb.Time)

	_, err = decode(t, EvPlaybackEvent, `{"roomId":"A","eventType":"play"}`)
	assert.NoError(t, err)
	_, err = decode(t, EvPlaybackEvent, `{"roomId":"A","eventType":"pause"}`)
	assert.NoError(t, err)

	// seek without a time
	_, err = decode(t, EvPlaybackEvent, `{"roomId":"A","eventType":"seek"}`)
	assert.Error(t, err)
	// negative seek
	_, err = decode(t, EvPlaybackEvent, `{"roomId":"A","eventType":"seek","time":-3}`)
	assert.Error(t, err)
	// unknown transport verb
	_, err = decode(t, EvPlaybackEvent, `{"roomId":"A","eventType":"rewind","time":0}`)
	assert.Error(t, err)
	// missing room
	_, err = decode(t, EvPlaybackEvent, `{"eventType":"play"}`)
	assert.Error(t, err)
}

func TestDecodeSyncUpdate(t *testing.T) {
	in, err := decode(t, EvSyncUpdate, `{"roomId":"A","time":42.5,"isPlaying":true}`)
	require.NoError(t, err)
	su := in.(*SyncUpdate)
	assert.Equal(t, 42.5, su.Time)
	assert.True(t, su.IsPlaying)

	_, err = decode(t, EvSyncUpdate, `{"roomId":"A","time":-1,"isPlaying":true}`)
	assert.Error(t, err)
}

func TestDecodeUserTyping(t *testing.T) {
	in, err := decode(t, EvUserTyping, `{"roomId":"A","userId":"u1","isTyping":true}`)
	require.NoError(t, err)
	ut := in.(*UserTyping)
	assert.True(t, ut.IsTyping)

	_, err = decode(t, EvUserTyping, `{"roomId":"A","isTyping":true}`)
	assert.Error(t, err)
}

func TestDecodeGetRoomUsers(t *testing.T) {
	in, err := decode(t, EvGetRoomUsers, `"1234-5678"`)
	require.NoError(t, err)
	assert.Equal(t, "1234-5678", in.Room())

	_, err = decode(t, EvGetRoomUsers, `""`)
	assert.Error(t, err)
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := decode(t, "dropTables", `{}`)
	assert.Error(t, err)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := decode(t, EvSyncUpdate, `"not an object"`)
	assert.Error(t, err)
}

func TestChannels(t *testing.T) {
	ch := NewChannels()
	a := &nullSubscriber{id: "a"}
	b := &nullSubscriber{id: "b"}

	ch.Subscribe(a, "room1")
	ch.Subscribe(b, "room1", "room2")

	assert.Len(t, ch.GetSubscribers("room1"), 2)
	assert.Len(t, ch.GetSubscribers("room2"), 1)
	assert.Empty(t, ch.GetSubscribers("room3"))

	got, ok := ch.Get("room1", "a")
	require.True(t, ok)
	assert.Equal(t, a, got)
	_, ok = ch.Get("room1", "c")
	assert.False(t, ok)

	ch.Unsubscribe(a, "room1")
	assert.Len(t, ch.GetSubscribers("room1"), 1)
	ch.Unsubscribe(b, "room1", "room2")
	assert.Empty(t, ch.GetSubscribers("room1"))
	assert.Empty(t, ch.GetSubscribers("room2"))
}
