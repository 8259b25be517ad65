// Package rooms implements the RoomEngine: room lifecycle, mood-pooling
// deck construction, swipe recording, match detection and weighted
// top-K finishing.
package rooms

import (
	"context"
	cryptorand "crypto/rand"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/embedding"
	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/notifier"
	"github.com/moodreel/core/internal/store"
	"github.com/moodreel/core/internal/vectorindex"
)

const (
	codeLength        = 6
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeGenAttempts   = 10
	deckSize          = 20
	perMoodK          = 10
	jokerK            = 5
	jokerQuery        = "popular award winning masterpiece highly rated best"
)

// DeckItem is a stripped-down recommendation candidate for the room deck:
// no embedding vector travels outbound.
type DeckItem struct {
	TMDBID       int64              `json:"tmdb_id"`
	ContentType  models.ContentType `json:"content_type"`
	Title        string             `json:"title"`
	Overview     string             `json:"overview"`
	PosterPath   string             `json:"poster_path"`
	BackdropPath string             `json:"backdrop_path"`
	VoteAverage  float64            `json:"vote_average"`
}

// Engine orchestrates room lifecycle and voting.
type Engine struct {
	rooms    *store.RoomStore
	index    *vectorindex.Index
	embed    *embedding.Model
	notifier notifier.Notifier

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(rooms *store.RoomStore, index *vectorindex.Index, embed *embedding.Model, notif notifier.Notifier) *Engine {
	return &Engine{
		rooms:    rooms,
		index:    index,
		embed:    embed,
		notifier: notif,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create generates a unique room code, inserts the room in waiting
// status, and records the creator as the first participant.
func (e *Engine) Create(ctx context.Context, creatorSession string, ct models.ContentType, durationMinutes, maxParticipants int) (*models.Room, error) {
	code, err := e.generateUniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		Code:             code,
		CreatorSessionID: creatorSession,
		Status:           models.RoomWaiting,
		ContentType:      ct,
		MaxParticipants:  maxParticipants,
		DurationMinutes:  durationMinutes,
	}
	if err := e.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	if err := e.rooms.AddParticipant(ctx, &models.RoomParticipant{
		RoomID:    room.ID,
		SessionID: creatorSession,
	}); err != nil {
		return nil, err
	}
	return e.rooms.GetByCode(ctx, code)
}

func (e *Engine) generateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < codeGenAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", apperr.Fatal("generate room code", err)
		}
		taken, err := e.rooms.CodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperr.InvalidRoomAction("could not generate a unique room code")
}

func randomCode() (string, error) {
	out := make([]byte, codeLength)
	for i := range out {
		n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// GetByCode loads a room by its code, with participants/interactions/
// matches preloaded.
func (e *Engine) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	return e.rooms.GetByCode(ctx, code)
}

// JoinOrRejoin adds session to the room, or returns its existing state
// if already a participant.
func (e *Engine) JoinOrRejoin(ctx context.Context, sessionID, code string) (*models.Room, error) {
	room, err := e.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	for _, p := range room.Participants {
		if p.SessionID == sessionID {
			return room, nil
		}
	}

	switch room.Status {
	case models.RoomFinished:
		return nil, apperr.InvalidRoomAction("room has finished")
	case models.RoomVoting:
		return nil, apperr.RoomAlreadyStarted("voting has already started")
	}

	if len(room.Participants) >= room.MaxParticipants {
		return nil, apperr.RoomFull("room is at capacity")
	}

	if err := e.rooms.AddParticipant(ctx, &models.RoomParticipant{RoomID: room.ID, SessionID: sessionID}); err != nil {
		return nil, err
	}
	return e.rooms.GetByCode(ctx, code)
}

// SubmitMood assigns a participant's mood text (3-500 chars enforced by
// callers at the transport boundary) and marks them ready.
func (e *Engine) SubmitMood(ctx context.Context, code, sessionID, text string) error {
	room, err := e.rooms.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	return e.rooms.SetMood(ctx, room.ID, sessionID, text)
}

// ForceStart lets the creator transition waiting -> voting as long as at
// least one participant is ready.
func (e *Engine) ForceStart(ctx context.Context, creatorSession, code string) (*models.Room, []DeckItem, error) {
	room, err := e.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if room.CreatorSessionID != creatorSession {
		return nil, nil, apperr.InvalidRoomAction("only the creator may force-start")
	}
	if room.Status != models.RoomWaiting {
		return nil, nil, apperr.InvalidRoomAction("room is not waiting")
	}
	anyReady := false
	for _, p := range room.Participants {
		if p.IsReady {
			anyReady = true
			break
		}
	}
	if !anyReady {
		return nil, nil, apperr.InvalidRoomAction("no participant is ready yet")
	}
	return e.StartVoting(ctx, room)
}

// StartVoting transitions the room to voting and computes the shared deck.
func (e *Engine) StartVoting(ctx context.Context, room *models.Room) (*models.Room, []DeckItem, error) {
	deck := e.buildDeck(room)
	if err := e.rooms.UpdateStatus(ctx, room.ID, models.RoomVoting); err != nil {
		return nil, nil, err
	}
	room.Status = models.RoomVoting
	return room, deck, nil
}

// buildDeck runs one search per non-empty mood plus the "joker" layer in
// parallel (up to N+1), merges by first-seen tmdb_id, shuffles, truncates
// to deckSize, and strips embeddings from the outbound payload.
func (e *Engine) buildDeck(room *models.Room) []DeckItem {
	type searchJob struct {
		vec string
		k   int
	}
	var jobs []searchJob
	for _, p := range room.Participants {
		if p.Mood != "" {
			jobs = append(jobs, searchJob{vec: p.Mood, k: perMoodK})
		}
	}
	jobs = append(jobs, searchJob{vec: jokerQuery, k: jokerK})

	results := make([][]vectorindex.Result, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job searchJob) {
			defer wg.Done()
			vec := e.embed.Encode(job.vec)
			ct := room.ContentType
			if ct == models.ContentMixed {
				ct = ""
			}
			results[i] = e.index.Search(vec, job.k, ct)
		}(i, job)
	}
	wg.Wait()

	seen := make(map[int64]struct{})
	var merged []DeckItem
	for _, rs := range results {
		for _, r := range rs {
			if _, dup := seen[r.Item.TMDBID]; dup {
				continue
			}
			seen[r.Item.TMDBID] = struct{}{}
			merged = append(merged, DeckItem{
				TMDBID:       r.Item.TMDBID,
				ContentType:  r.Item.ContentType,
				Title:        r.Item.Title,
				Overview:     r.Item.Overview,
				PosterPath:   r.Item.PosterPath,
				BackdropPath: r.Item.BackdropPath,
				VoteAverage:  r.Item.VoteAverage,
			})
		}
	}

	e.rngMu.Lock()
	e.rng.Shuffle(len(merged), func(i, j int) { merged[i], merged[j] = merged[j], merged[i] })
	e.rngMu.Unlock()

	if len(merged) > deckSize {
		merged = merged[:deckSize]
	}
	return merged
}

// RecordSwipe stores a first-write-wins interaction, runs match detection
// on like/superlike, and reports whether every participant has now
// swiped every title anyone has swiped.
func (e *Engine) RecordSwipe(ctx context.Context, code, sessionID string, tmdbID int64, action models.SwipeAction) (matched bool, allDone bool, err error) {
	room, err := e.rooms.GetByCode(ctx, code)
	if err != nil {
		return false, false, err
	}

	written, err := e.rooms.RecordSwipe(ctx, room.ID, sessionID, tmdbID, action)
	if err != nil {
		return false, false, err
	}

	room, err = e.rooms.GetByCode(ctx, code)
	if err != nil {
		return false, false, err
	}

	if written && (action == models.SwipeLike || action == models.SwipeSuperlike) {
		matched, err = e.detectMatch(ctx, room, tmdbID)
		if err != nil {
			return false, false, err
		}
	}

	allDone = allParticipantsDone(room)
	return matched, allDone, nil
}

func (e *Engine) detectMatch(ctx context.Context, room *models.Room, tmdbID int64) (bool, error) {
	sessionsLiked := make(map[string]struct{})
	for _, in := range room.Interactions {
		if in.TMDBID == tmdbID && (in.Action == models.SwipeLike || in.Action == models.SwipeSuperlike) {
			sessionsLiked[in.SessionID] = struct{}{}
		}
	}
	for _, p := range room.Participants {
		if _, ok := sessionsLiked[p.SessionID]; !ok {
			return false, nil
		}
	}

	exists, err := e.rooms.MatchExists(ctx, room.ID, tmdbID)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	if _, err := e.rooms.CreateMatch(ctx, room.ID, tmdbID); err != nil {
		return false, err
	}
	return true, nil
}

// allParticipantsDone implements the stricter definition: the union of
// every participant's swiped set must be a subset of its intersection,
// i.e. every participant has swiped every title anyone has swiped.
// Trivially false when the set is empty.
func allParticipantsDone(room *models.Room) bool {
	if len(room.Participants) == 0 || len(room.Interactions) == 0 {
		return false
	}
	swipedBy := make(map[string]map[int64]struct{}, len(room.Participants))
	for _, p := range room.Participants {
		swipedBy[p.SessionID] = make(map[int64]struct{})
	}
	union := make(map[int64]struct{})
	for _, in := range room.Interactions {
		set, ok := swipedBy[in.SessionID]
		if !ok {
			continue
		}
		set[in.TMDBID] = struct{}{}
		union[in.TMDBID] = struct{}{}
	}
	for id := range union {
		for _, set := range swipedBy {
			if _, ok := set[id]; !ok {
				return false
			}
		}
	}
	return true
}

// ForceFinish lets the creator compute weighted top-K matches and
// transition the room to finished.
func (e *Engine) ForceFinish(ctx context.Context, creatorSession, code string) ([]models.RoomMatch, error) {
	room, err := e.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.CreatorSessionID != creatorSession {
		return nil, apperr.InvalidRoomAction("only the creator may force-finish")
	}
	if room.Status != models.RoomVoting {
		return nil, apperr.InvalidRoomAction("room is not voting")
	}
	return e.finishVoting(ctx, room)
}

// AutoFinish runs the same top-K + finished transition as ForceFinish
// without the creator check, for the all_done-triggered path out of
// RecordSwipe. A no-op (returns the existing matches) if the room has
// already finished.
func (e *Engine) AutoFinish(ctx context.Context, code string) ([]models.RoomMatch, error) {
	room, err := e.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status == models.RoomFinished {
		return room.Matches, nil
	}
	if room.Status != models.RoomVoting {
		return nil, apperr.InvalidRoomAction("room is not voting")
	}
	return e.finishVoting(ctx, room)
}

func (e *Engine) finishVoting(ctx context.Context, room *models.Room) ([]models.RoomMatch, error) {
	matches := weightedTopK(room, 5)
	if err := e.rooms.CreateMatches(ctx, matches); err != nil {
		return nil, err
	}
	if err := e.Finish(ctx, room); err != nil {
		return nil, err
	}

	matchIDs := make([]int64, len(matches))
	for i, m := range matches {
		matchIDs[i] = m.TMDBID
	}
	for _, p := range room.Participants {
		_ = e.notifier.NotifyRoomFinished(ctx, notifier.RoomFinishedEvent{
			RoomCode:  room.Code,
			SessionID: p.SessionID,
			MatchIDs:  matchIDs,
		})
	}
	return matches, nil
}

// weightedTopK scores each candidate by summing superlike=3, like=1 over
// all positive interactions, and returns the top n as RoomMatch rows.
func weightedTopK(room *models.Room, n int) []models.RoomMatch {
	scores := make(map[int64]int)
	for _, in := range room.Interactions {
		switch in.Action {
		case models.SwipeSuperlike:
			scores[in.TMDBID] += 3
		case models.SwipeLike:
			scores[in.TMDBID] += 1
		}
	}
	type scored = struct {
		id    int64
		score int
	}
	ranked := make([]scored, 0, len(scores))
	for id, s := range scores {
		ranked = append(ranked, scored{id, s})
	}
	sortByScoreDesc(ranked)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]models.RoomMatch, len(ranked))
	for i, r := range ranked {
		out[i] = models.RoomMatch{RoomID: room.ID, TMDBID: r.id}
	}
	return out
}

func sortByScoreDesc(s []struct {
	id    int64
	score int
}) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].score < s[j].score; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Finish is the unconditional terminal transition.
func (e *Engine) Finish(ctx context.Context, room *models.Room) error {
	return e.rooms.UpdateStatus(ctx, room.ID, models.RoomFinished)
}

// CleanupExpired deletes abandoned rooms and purges session data from
// stale finished rooms, keeping match history.
func (e *Engine) CleanupExpired(ctx context.Context, olderThan time.Duration) error {
	return e.rooms.CleanupExpired(ctx, olderThan)
}
