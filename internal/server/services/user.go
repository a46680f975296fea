// Package services contains server-side business logic: staff sessions,
// QR token issuance, check-in decisions, bulk refresh and offline snapshots.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/server/auth"
	"github.com/dmitrijs2005/doorkeeper/internal/server/config"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService manages staff accounts and their sessions.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	logger                       logging.Logger
	now                          func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		logger:                       logger,
		now:                          time.Now,
	}
}

// RefreshToken rotates a refresh token and returns a fresh TokenPair.
// Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Register creates a staff account. An empty role means staff.
func (s *UserService) Register(ctx context.Context, username string, salt, verifier []byte, role string) (*models.User, error) {
	switch role {
	case "":
		role = common.RoleStaff
	case common.RoleStaff, common.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	user := &models.User{UserName: username, Salt: salt, Verifier: verifier, Role: role}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// GetSalt returns the user's stored salt or a random salt if the user is absent,
// to avoid leaking existence through timing.
func (s *UserService) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.getRandomSalt(), nil
		}
		return nil, common.ErrorInternal
	}
	return user.Salt, nil
}

// Login verifies verifierCandidate against the stored verifier and, on
// success, returns a new TokenPair. Stale refresh tokens of the user are
// purged on the way.
func (s *UserService) Login(ctx context.Context, userName string, verifierCandidate []byte) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !s.checkVerifier(user.Verifier, verifierCandidate) {
		return nil, common.ErrorUnauthorized
	}

	if n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn(ctx, "purging expired refresh tokens failed", "user_id", user.ID, "error", err)
	} else if n > 0 {
		s.logger.Debug(ctx, "expired refresh tokens purged", "user_id", user.ID, "count", n)
	}

	return s.generateTokenPair(ctx, user, s.db)
}

func (s *UserService) getRandomSalt() []byte { return common.GenerateRandByteArray(32) }

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) checkVerifier(verifier []byte, candidate []byte) bool {
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(user.ID, user.Role, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	expiresAt := s.now().Add(s.refreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, user.ID, refresh, expiresAt); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
