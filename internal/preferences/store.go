// Package preferences persists per-user, per-channel notification opt-outs.
package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coaching-notifier/internal/common/database"
	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/eventbus"
	"coaching-notifier/internal/models"

	"github.com/redis/go-redis/v9"
)

// Toggles holds explicit choices. A missing entry means enabled.
type Toggles map[models.Channel]map[eventbus.Kind]bool

// Preferences is the preference record for one user.
type Preferences struct {
	UserID    string    `json:"userId"`
	Toggles   Toggles   `json:"toggles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Enabled reports whether delivery on channel is allowed for kind. Only an
// explicit false disables it.
func (p *Preferences) Enabled(channel models.Channel, kind eventbus.Kind) bool {
	if p == nil {
		return true
	}
	if byKind, ok := p.Toggles[channel]; ok {
		if v, ok := byKind[kind]; ok {
			return v
		}
	}
	return true
}

// Validate rejects unknown channels and kinds.
func (t Toggles) Validate() error {
	for channel, byKind := range t {
		if !channel.Valid() {
			return apperrors.NewPreferenceInvalidError(fmt.Sprintf("unknown channel %q", channel))
		}
		for kind := range byKind {
			if !kind.Valid() {
				return apperrors.NewPreferenceInvalidError(fmt.Sprintf("unknown kind %q for channel %q", kind, channel))
			}
		}
	}
	return nil
}

// merge returns a copy of t with every entry of other applied on top.
func (t Toggles) merge(other Toggles) Toggles {
	out := make(Toggles, len(t)+len(other))
	for channel, byKind := range t {
		out[channel] = make(map[eventbus.Kind]bool, len(byKind))
		for kind, v := range byKind {
			out[channel][kind] = v
		}
	}
	for channel, byKind := range other {
		if out[channel] == nil {
			out[channel] = make(map[eventbus.Kind]bool, len(byKind))
		}
		for kind, v := range byKind {
			out[channel][kind] = v
		}
	}
	return out
}

const cachePrefix = "prefs:"

func cacheKey(userID string) string { return cachePrefix + userID }

// Store reads preference records through a redis cache. A nil redis client
// disables caching.
type Store struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewStore(db *sql.DB, rdb *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		db:     db,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "preferences"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the user's record, creating an empty one on first access.
func (s *Store) Get(ctx context.Context, userID string) (*Preferences, error) {
	key := cacheKey(userID)
	if s.redis != nil {
		val, err := s.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			var p Preferences
			if err := json.Unmarshal([]byte(val), &p); err == nil {
				return &p, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Debug("preference cache read failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}

	p, err := s.load(ctx, s.db, userID, false)
	if errors.Is(err, sql.ErrNoRows) {
		p, err = s.createDefault(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	s.cache(ctx, p)
	return p, nil
}

// Update merges toggles into the stored record and drops the cached copy.
func (s *Store) Update(ctx context.Context, userID string, toggles Toggles) (*Preferences, error) {
	if err := toggles.Validate(); err != nil {
		return nil, err
	}

	var updated *Preferences
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := s.load(ctx, tx, userID, true)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		merged := toggles.merge(nil)
		if current != nil {
			merged = current.Toggles.merge(toggles)
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}

		now := s.now()
		p := &Preferences{UserID: userID, Toggles: merged}
		var raw []byte
		err = tx.QueryRowContext(ctx, `
			INSERT INTO notification_preferences (user_id, toggles, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (user_id) DO UPDATE SET toggles = EXCLUDED.toggles, updated_at = EXCLUDED.updated_at
			RETURNING toggles, created_at, updated_at`,
			userID, string(data), now,
		).Scan(&raw, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return apperrors.NewDatabaseInsertFailedError(err)
		}
		if err := json.Unmarshal(raw, &p.Toggles); err != nil {
			return fmt.Errorf("decode toggles: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, cacheKey(userID)).Err(); err != nil {
			s.logger.Warn("preference cache invalidation failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}
	return updated, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) load(ctx context.Context, q queryRower, userID string, forUpdate bool) (*Preferences, error) {
	query := `SELECT toggles, created_at, updated_at FROM notification_preferences WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p := &Preferences{UserID: userID}
	var raw []byte
	if err := q.QueryRowContext(ctx, query, userID).Scan(&raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.NewQueryExecutionFailedError("preferences.load", err)
	}
	if err := json.Unmarshal(raw, &p.Toggles); err != nil {
		return nil, fmt.Errorf("decode toggles for %s: %w", userID, err)
	}
	if p.Toggles == nil {
		p.Toggles = Toggles{}
	}
	return p, nil
}

func (s *Store) createDefault(ctx context.Context, userID string) (*Preferences, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, toggles, created_at, updated_at)
		VALUES ($1, '{}'::jsonb, $2, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, now,
	)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	// Another writer created the row first; read theirs.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return s.load(ctx, s.db, userID, false)
	}

	s.logger.Debug("created default preferences", map[string]interface{}{"userId": userID})
	return &Preferences{UserID: userID, Toggles: Toggles{}, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) cache(ctx context.Context, p *Preferences) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(p.UserID), data, s.ttl).Err(); err != nil {
		s.logger.Debug("preference cache write failed", map[string]interface{}{
			"userId": p.UserID,
			"error":  err.Error(),
		})
	}
}
