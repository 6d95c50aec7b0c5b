package service

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

// userDirectory resolves identities through a TTL cache over the users table.
// Unknown users are cached as nil so repeated requests skip the lookup.
type userDirectory struct {
	repo  repository.UserRepository
	cache *expirable.LRU[string, *models.User]
	log   zerolog.Logger
}

func newUserDirectory(repo repository.UserRepository, cfg config.AuthConfig, log zerolog.Logger) *userDirectory {
	size := cfg.UserCacheMax
	if size <= 0 {
		size = 1024
	}
	return &userDirectory{
		repo:  repo,
		cache: expirable.NewLRU[string, *models.User](size, nil, cfg.UserCacheTTL),
		log:   log.With().Str("service", "users").Logger(),
	}
}

// Resolve returns the verified identity for userID. A stored user's role wins
// over the claimed one; inactive users are refused.
func (d *userDirectory) Resolve(ctx context.Context, userID, claimedRole string) (models.Identity, error) {
	if userID == "" {
		return models.Identity{}, apperr.Validation("user id is required")
	}

	user, ok := d.cache.Get(userID)
	if !ok {
		var err error
		user, err = d.repo.GetByID(ctx, userID)
		if err != nil {
			return models.Identity{}, apperr.Storage("load user", err)
		}
		d.cache.Add(userID, user)
	}

	if user == nil {
		role := claimedRole
		if !models.ValidRoles[role] {
			role = models.RoleUser
		}
		return models.Identity{UserID: userID, Role: role}, nil
	}
	if !user.IsActive {
		d.log.Warn().Str("user_id", userID).Msg("Inactive user refused")
		return models.Identity{}, apperr.Forbidden("user is inactive")
	}
	return models.Identity{UserID: user.ID, Role: user.Role}, nil
}

// Invalidate drops the cached entry for userID
func (d *userDirectory) Invalidate(userID string) {
	d.cache.Remove(userID)
}
