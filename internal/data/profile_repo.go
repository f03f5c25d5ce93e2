package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	"github.com/coverforge/authd/internal/ports"
)

// ErrProfileNotFound is returned when a profile row does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepo mirrors identity-backend user records into the profiles table.
// The backend owns the user record; this table is a read-model refreshed as a
// side effect of sign-in, so Upsert is last-writer-wins on the user id.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.ProfileStore = (*ProfileRepo)(nil)

// NewProfileRepo creates a ProfileRepo with the real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// Upsert inserts or refreshes the profile row for a user.
func (r *ProfileRepo) Upsert(ctx context.Context, user domainauth.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return apperrors.ValidationField("id", "user id is required")
	}

	now := r.timeProvider.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO profiles (user_id, email, display_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			email        = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			avatar_url   = EXCLUDED.avatar_url,
			updated_at   = EXCLUDED.updated_at
	`, user.ID, user.Email, nullable(user.DisplayName), nullable(user.AvatarURL), now)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Profile is the stored projection of a backend user record.
type Profile struct {
	UserID      string
	Email       string
	DisplayName *string
	AvatarURL   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GetByUserID fetches one profile row.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.DB.QueryRowContext(ctx, `
		SELECT user_id, email, display_name, avatar_url, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Email, &p.DisplayName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, apperrors.MapDBError(err)
	}
	return &p, nil
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
