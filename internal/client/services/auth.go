// Package services contains the scanner's application services.
// This file defines the staff authentication service: online/offline login,
// register, liveness probe, and housekeeping of local (offline) auth metadata.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/doorkeeper/internal/client/client"
	"github.com/dmitrijs2005/doorkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/cryptox"
	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
)

// AuthService defines authentication operations for the scanner.
//
// Contract:
//   - OnlineLogin: authenticate against the server and persist offline auth data.
//   - OfflineLogin: derive and verify credentials against locally cached data.
//   - Register: create a new staff account on the server.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
//   - ClearOfflineData: wipe locally cached auth metadata.
//
// The master key returned by a login seals the cached QR tokens.
type AuthService interface {
	OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, error)
	OnlineLogin(ctx context.Context, username string, password []byte) ([]byte, error)
	Register(ctx context.Context, username string, password []byte) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
}

func NewAuthService(client client.Client, db *sql.DB) AuthService {
	return &authService{client: client, db: db}
}

func (a *authService) getMetadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

// OfflineLogin derives a master key from (password,salt) stored locally
// and verifies it against the locally cached verifier. Missing local data
// yields client.ErrLocalDataNotAvailable, a wrong user or password
// client.ErrUnauthorized.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, error) {
	repo := a.getMetadataRepo(a.db)

	vals := make(map[string][]byte, 3)
	for _, k := range []string{metadata.KeyUsername, metadata.KeySalt, metadata.KeyVerifier} {
		v, err := repo.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, client.ErrLocalDataNotAvailable
		}
		vals[k] = v
	}

	if string(vals[metadata.KeyUsername]) != username {
		return nil, client.ErrUnauthorized
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, vals[metadata.KeySalt])
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	if subtle.ConstantTimeCompare(vals[metadata.KeyVerifier], verifierCandidate) == 0 {
		return nil, client.ErrUnauthorized
	}
	return masterKeyCandidate, nil
}

// OnlineLogin authenticates against the server, saves offline metadata
// (username, salt, verifier), and returns the derived master key.
func (a *authService) OnlineLogin(ctx context.Context, userName string, password []byte) ([]byte, error) {
	salt, err := a.client.GetSalt(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("get salt error: %w", err)
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, salt)
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	if err := a.client.Login(ctx, userName, verifierCandidate); err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	if err := a.saveOfflineData(ctx, userName, salt, verifierCandidate); err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}
	return masterKeyCandidate, nil
}

func (a *authService) saveOfflineData(ctx context.Context, userName string, salt []byte, verifier []byte) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.getMetadataRepo(tx)
		if err := repo.Set(ctx, metadata.KeyUsername, []byte(userName)); err != nil {
			return err
		}
		if err := repo.Set(ctx, metadata.KeySalt, salt); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyVerifier, verifier)
	})
}

// Register creates a new staff account on the server. It generates a random
// salt, derives a master key from the password, and sends salt and verifier.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := common.GenerateRandByteArray(32)
	key := cryptox.DeriveMasterKey(password, salt)
	verifier := cryptox.MakeVerifier(key)

	return a.client.Register(ctx, username, salt, verifier)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

// ClearOfflineData forgets the cached staff credentials. The guest list
// cache and the outbox are left alone.
func (a *authService) ClearOfflineData(ctx context.Context) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.getMetadataRepo(tx)
		for _, k := range []string{metadata.KeyUsername, metadata.KeySalt, metadata.KeyVerifier} {
			if err := repo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
