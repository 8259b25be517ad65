// Package models defines the persisted entities of the recommendation core.
package models

import "time"

const EmbeddingDim = 384

type ContentType string

const (
	ContentMovie ContentType = "movie"
	ContentTV    ContentType = "tv"
	ContentMixed ContentType = "mixed"
)

// CatalogueItem is a single piece of content carried in both ContentStore
// and VectorIndex.
type CatalogueItem struct {
	TMDBID         int64       `gorm:"primaryKey:composite;column:tmdb_id"`
	ContentType    ContentType `gorm:"primaryKey:composite;column:content_type"`
	Title          string
	OriginalTitle  string
	Overview       string
	Genres         []string `gorm:"serializer:json"`
	ReleaseDate    string   // YYYY-MM-DD
	PosterPath     string
	BackdropPath   string
	VoteAverage    float64
	VoteCount      int
	Popularity     float64
	OriginalLang   string
	Embedding      []float32 `gorm:"serializer:json"`
	UpdatedAt      time.Time
}

// UserRating is an upserted 1-10 rating a user left on a piece of content.
type UserRating struct {
	ID          int64 `gorm:"primaryKey"`
	UserID      int64 `gorm:"uniqueIndex:uq_user_rating"`
	TMDBID      int64 `gorm:"uniqueIndex:uq_user_rating"`
	ContentType ContentType `gorm:"uniqueIndex:uq_user_rating"`
	Rating      int
	Comment     string
	CreatedAt   time.Time
}

type WatchlistStatus string

const (
	WatchlistToWatch  WatchlistStatus = "to_watch"
	WatchlistWatching WatchlistStatus = "watching"
	WatchlistDone     WatchlistStatus = "completed"
)

// WatchlistEntry tracks a user's intent to watch (or progress watching)
// a title, optionally tagged with the recommendation that surfaced it.
type WatchlistEntry struct {
	ID                  int64 `gorm:"primaryKey"`
	UserID              int64 `gorm:"uniqueIndex:uq_watchlist"`
	TMDBID              int64 `gorm:"uniqueIndex:uq_watchlist"`
	ContentType         ContentType `gorm:"uniqueIndex:uq_watchlist"`
	Status              WatchlistStatus
	FromRecommendation  bool
	RecommendationType  string
	RecommendationScore float64
	AddedAt             time.Time
}

// UserEmotionalProfile is the incrementally-updated taste vector for a user.
type UserEmotionalProfile struct {
	UserID       int64 `gorm:"primaryKey"`
	Embedding    []float32 `gorm:"serializer:json"`
	WatchedCount int
	Confidence   float64
	LastUpdated  time.Time
}

// HasEmbedding reports whether the profile has accumulated at least one
// rating (embedding is present iff watched_count >= 1).
func (p UserEmotionalProfile) HasEmbedding() bool {
	return p.WatchedCount >= 1
}

type RecommendationType string

const (
	RecCurrentEmotion RecommendationType = "current_emotion"
	RecHistoryBased   RecommendationType = "history_based"
	RecHybrid         RecommendationType = "hybrid"
	RecProfileBased   RecommendationType = "profile_based"
	RecEmotionPublic  RecommendationType = "emotion_public"
)

// RecommendationLog is an append-only audit trail of served recommendations.
type RecommendationLog struct {
	ID                 int64 `gorm:"primaryKey"`
	UserID             int64 `gorm:"index"`
	TMDBID             int64
	ContentType        ContentType
	RecommendationType RecommendationType
	EmotionState       string
	Score              float64
	Viewed             bool
	CreatedAt          time.Time
}

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomVoting   RoomStatus = "voting"
	RoomFinished RoomStatus = "finished"
)

// Room is a shared voting session keyed by a short human-shareable code.
type Room struct {
	ID               int64 `gorm:"primaryKey"`
	Code             string `gorm:"uniqueIndex"`
	CreatorSessionID string
	Status           RoomStatus
	ContentType      ContentType
	MaxParticipants  int
	DurationMinutes  int
	CreatedAt        time.Time

	Participants []RoomParticipant `gorm:"foreignKey:RoomID"`
	Interactions []RoomInteraction `gorm:"foreignKey:RoomID"`
	Matches      []RoomMatch       `gorm:"foreignKey:RoomID"`
}

// RoomParticipant is one session's membership in a room.
type RoomParticipant struct {
	ID        int64  `gorm:"primaryKey"`
	RoomID    int64  `gorm:"uniqueIndex:uq_room_session"`
	SessionID string `gorm:"uniqueIndex:uq_room_session"`
	Mood      string
	IsReady   bool
	JoinedAt  time.Time
}

type SwipeAction string

const (
	SwipeLike      SwipeAction = "like"
	SwipeDislike   SwipeAction = "dislike"
	SwipeSuperlike SwipeAction = "superlike"
)

// RoomInteraction is a single swipe; first write per (room, session, tmdb) wins.
type RoomInteraction struct {
	ID        int64       `gorm:"primaryKey"`
	RoomID    int64       `gorm:"uniqueIndex:uq_room_interaction"`
	SessionID string      `gorm:"uniqueIndex:uq_room_interaction"`
	TMDBID    int64       `gorm:"uniqueIndex:uq_room_interaction"`
	Action    SwipeAction
	CreatedAt time.Time
}

// RoomMatch records a title the room converged on, once per (room, tmdb).
type RoomMatch struct {
	ID        int64 `gorm:"primaryKey"`
	RoomID    int64 `gorm:"uniqueIndex:uq_room_match"`
	TMDBID    int64 `gorm:"uniqueIndex:uq_room_match"`
	CreatedAt time.Time
}
