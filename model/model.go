package model

import (
	"time"
)

type (
	// FileInfo is the fingerprint and metadata of the media file a member
	// is playing locally. Hash and size together identify the exact file.
	FileInfo struct {
		FileHash   string  `json:"fileHash"`
		FileSize   int64   `json:"fileSize"`
		VideoID    string  `json:"videoId"`
		Title      string  `json:"title"`
		Duration   float64 `json:"duration"`
		FilePath   string  `json:"filePath,omitempty"`
		FileFormat string  `json:"fileFormat,omitempty"`
		Resolution string  `json:"resolution,omitempty"`
		Codec      string  `json:"codec,omitempty"`
	}

	// Member is one connection's participation record inside a room.
	Member struct {
		UserID   string   `json:"userId"`
		Username string   `json:"username"`
		IsHost   bool     `json:"isHost"`
		IsTyping bool     `json:"isTyping"`
		FileInfo FileInfo `json:"fileInfo"`
	}

	RoomInfo struct {
		RoomName          string    `json:"roomName"`
		OwnerID           string    `json:"ownerId"`
		IsArchived        bool      `json:"isArchived"`
		CreatedAt         time.Time `json:"createdAt"`
		MaxParticipants   int       `json:"maxParticipants,omitempty"`
		PasswordProtected bool      `json:"passwordProtected,omitempty"`
		RoomPassword      string    `json:"-"`
	}

	// SyncInfo is the authoritative transport state of a room's playback.
	SyncInfo struct {
		Time            float64 `json:"time"`
		IsPlaying       bool    `json:"isPlaying"`
		SyncErrorMargin float64 `json:"syncErrorMargin"`
		PlaybackRate    float64 `json:"playbackRate,omitempty"`
	}

	// FullState is the merged snapshot broadcast on structural changes.
	FullState struct {
		RoomInfo RoomInfo `json:"roomInfo"`
		SyncInfo SyncInfo `json:"syncInfo"`
		Users    []Member `json:"users"`
	}

	// User is a registered account, kept by the user store.
	User struct {
		ID           string    `json:"userId"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Identity is what the resolver yields for a bearer credential.
	Identity struct {
		UserID    string    `json:"userId"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"createdAt"`
	}
)

// FingerprintEmpty reports whether the member has not reported a file yet.
func (f FileInfo) FingerprintEmpty() bool {
	return f.FileHash == "" && f.FileSize == 0
}

// SameFile reports whether two members hold byte-identical media.
func (f FileInfo) SameFile(other FileInfo) bool {
	return f.FileHash == other.FileHash && f.FileSize == other.FileSize
}

func (u *User) Public() *User {
	return &User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
