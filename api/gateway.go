package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws/wsutil"
	"github.com/labstack/gommon/log"

	"vmeste.me/model"
	"vmeste.me/pkg/msgbroker"
	"vmeste.me/pkg/websocket"
	"vmeste.me/room"
)

// servePeer runs one connection: a ping ticker, the read loop, and removal
// from whatever room the connection was in once the transport drops.
func (api *API) servePeer(p *websocket.Peer) {
	api.addPeer(p)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(api.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := p.Ping(); err != nil {
					log.Warn(err)
				}
			}
		}
	}()

	defer func() {
		close(done)
		_ = p.Close()
		api.dropPeer(p)
	}()

	for {
		b, err := wsutil.ReadClientText(p.Conn())
		if err != nil {
			break
		}
		api.handleFrame(p, b)
	}
}

// handleFrame validates one inbound frame, stamps it and hands it to the
// broker. Queries that mutate nothing are answered right here.
func (api *API) handleFrame(p websocket.Subscriber, b []byte) {
	var env websocket.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		api.sendResponse(p, "", 422)
		return
	}

	in, err := env.Decode()
	if err != nil {
		log.Warn(err)
		api.sendResponse(p, env.ID, 422)
		return
	}

	if q, isQuery := in.(*websocket.GetRoomUsers); isQuery {
		members, _ := api.rooms.Members(q.RoomID)
		if members == nil {
			members = []model.Member{}
		}
		api.sendResponse(p, env.ID, 200)
		api.sendTo(p, websocket.EvRoomUsers, members)
		return
	}

	if join, isJoin := in.(*websocket.JoinRoom); isJoin && join.RoomID == "" {
		roomID, err := api.rooms.MintID()
		if err != nil {
			log.Error(err)
			api.sendResponse(p, env.ID, 500)
			return
		}
		api.sendTo(p, websocket.EvRoomIDGenerated, roomID)
		join.RoomID = roomID
		if env.Payload, err = json.Marshal(join); err != nil {
			log.Error(err)
			api.sendResponse(p, env.ID, 500)
			return
		}
	}

	env.UserID = p.GetID()
	env.Seq = atomic.AddUint64(&api.seq, 1)
	env.SentAt = time.Now()

	b, err = json.Marshal(&env)
	if err != nil {
		log.Error(err)
		api.sendResponse(p, env.ID, 500)
		return
	}

	if err = api.msgBroker.Publish(b, api.roomsChannel+in.Room()); err != nil {
		log.Warn(err)
		api.sendResponse(p, env.ID, 500)
	} else {
		api.sendResponse(p, env.ID, 200)
	}
}

// Broker delivery callback. Delivery order within one room channel is
// publish order; dispatching synchronously keeps it that way.
func (api *API) handleMessages(msg *msgbroker.Message) {
	if len(msg.Channel) <= len(api.roomsChannel) {
		return
	}

	var env websocket.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Error(err)
		return
	}
	in, err := env.Decode()
	if err != nil {
		log.Warn(err)
		return
	}
	api.dispatch(&env, in)
}

func (api *API) dispatch(env *websocket.Envelope, in websocket.Inbound) {
	switch p := in.(type) {
	case *websocket.JoinRoom:
		api.handleJoin(env, p)

	case *websocket.PlaybackEvent:
		var t float64
		if p.Time != nil {
			t = *p.Time
		}
		sync, applied := api.rooms.ApplyPlayback(p.RoomID, env.Seq, p.EventType, t)
		if applied {
			api.broadcast(p.RoomID, websocket.EvPlaybackUpdate, &websocket.PlaybackUpdate{
				EventType: p.EventType,
				Time:      sync.Time,
				IsPlaying: sync.IsPlaying,
			})
		}

	case *websocket.SyncUpdate:
		sync, applied := api.rooms.ApplySync(p.RoomID, env.Seq, p.Time, p.IsPlaying)
		if applied {
			api.broadcast(p.RoomID, websocket.EvSyncTime, &websocket.SyncTime{
				Time:      sync.Time,
				IsPlaying: sync.IsPlaying,
			})
		}

	case *websocket.UserTyping:
		if api.rooms.SetTyping(p.RoomID, p.UserID, p.IsTyping) {
			api.broadcast(p.RoomID, websocket.EvTypingStatus, &websocket.TypingStatus{
				UserID:   p.UserID,
				IsTyping: p.IsTyping,
			})
		}

	case *websocket.UpdateFileInfo:
		consistent, ok := api.rooms.SetFileInfo(p.RoomID, env.UserID, p.FileInfo)
		if !ok {
			return
		}
		if !consistent {
			api.broadcast(p.RoomID, websocket.EvChatMessage, &websocket.ChatMessage{
				Message: "Warning: Some users are using different video files.",
			})
		}
		api.broadcastFullRoomState(p.RoomID)
	}
}

func (api *API) handleJoin(env *websocket.Envelope, p *websocket.JoinRoom) {
	m := &model.Member{UserID: env.UserID, Username: p.Username}
	_, err := api.rooms.Join(p.RoomID, m, p.RoomPassword)
	if err != nil {
		code := 409
		if errors.Is(err, room.ErrWrongPassword) {
			code = 403
		}
		if peer, ok := api.getPeer(env.UserID); ok {
			api.sendTo(peer, websocket.EvJoinRejected, &websocket.JoinRejected{
				RoomID: p.RoomID,
				Reason: err.Error(),
				Code:   code,
			})
		}
		return
	}

	peer, ok := api.getPeer(env.UserID)
	if !ok {
		// the connection dropped while the join sat in the broker queue
		api.rooms.Leave(env.UserID)
		return
	}
	api.channels.Subscribe(peer, p.RoomID)

	api.broadcast(p.RoomID, websocket.EvChatMessage, &websocket.ChatMessage{
		Message: fmt.Sprintf("User %s has joined the room", p.Username),
	})
	api.broadcastFullRoomState(p.RoomID)
}

// dropPeer removes the connection's membership record and notifies the
// remaining room members. O(1): the store keeps a connection index.
func (api *API) dropPeer(p websocket.Subscriber) {
	api.peersMu.Lock()
	delete(api.peers, p.GetID())
	api.peersMu.Unlock()

	roomID, m, deleted, ok := api.rooms.Leave(p.GetID())
	if !ok {
		return
	}
	api.channels.Unsubscribe(p, roomID)
	log.Infof("user %s disconnected from room %s", m.Username, roomID)
	if deleted {
		return
	}

	api.broadcast(roomID, websocket.EvChatMessage, &websocket.ChatMessage{
		Message: fmt.Sprintf("User %s has left the room", m.Username),
	})
	api.broadcastFullRoomState(roomID)
}

// broadcastFullRoomState pushes the merged room snapshot to every member.
// Used after structural changes; playback events get the lighter payloads.
func (api *API) broadcastFullRoomState(roomID string) {
	state, exists := api.rooms.Snapshot(roomID)
	if exists {
		api.broadcast(roomID, websocket.EvFullRoomState, state)
	}
}

// broadcast serializes the event once and fans the write I/O out to the
// worker pool, so one slow subscriber cannot stall dispatch.
func (api *API) broadcast(roomID, event string, payload interface{}) {
	b, err := websocket.MarshalEvent(event, payload)
	if err != nil {
		log.Error(err)
		return
	}
	for _, sub := range api.channels.GetSubscribers(roomID) {
		sub := sub
		api.workerPool.Submit(func() {
			if err := sub.Send(b); err != nil {
				log.Warn(err)
			}
		})
	}
}

func (api *API) sendTo(p websocket.Subscriber, event string, payload interface{}) {
	b, err := websocket.MarshalEvent(event, payload)
	if err != nil {
		log.Error(err)
		return
	}
	if err = p.Send(b); err != nil {
		log.Warn(err)
	}
}

func (api *API) sendResponse(p websocket.Subscriber, id string, code int) {
	b, err := json.Marshal(websocket.NewResponse(id, code))
	if err != nil {
		log.Error(err)
		return
	}
	if err = p.Send(b); err != nil {
		log.Warn(err)
	}
}

func (api *API) addPeer(p websocket.Subscriber) {
	api.peersMu.Lock()
	api.peers[p.GetID()] = p
	api.peersMu.Unlock()
}

func (api *API) getPeer(id string) (websocket.Subscriber, bool) {
	api.peersMu.Lock()
	defer api.peersMu.Unlock()
	p, ok := api.peers[id]
	return p, ok
}
