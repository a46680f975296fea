package cli

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/doorkeeper/internal/client/client"
	"github.com/dmitrijs2005/doorkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password and creates a staff account.
//
// On success it prints "Success!" and returns nil. The password byte slice
// is securely wiped before returning. Any I/O or service error is returned
// unchanged.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, userName, password); err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	printlnFn("Success!")
	return nil
}

// Login prompts the user for credentials and tries to authenticate.
//
// The method first attempts an online login. If the server is unavailable
// (errors.Is(err, client.ErrUnavailable)), it falls back to offline login
// against the credentials cached by the last online login.
// On success it sets a.masterKey and updates connectivity Mode:
//   - ModeOnline if online login succeeds,
//   - ModeOffline if offline login succeeds,
//   - ModeDisabled if both fail.
//
// An online login also drains the outbox and refreshes the guest list.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	var (
		masterKey []byte
		mode      Mode
		online    bool
	)

	masterKey, err = a.authService.OnlineLogin(ctx, userName, password)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			log.Printf("Server unavailable, trying offline login...")
			masterKey, err = a.authService.OfflineLogin(ctx, userName, password)
			if err != nil {
				log.Printf("Offline login unsuccessful: %s", err.Error())
				mode = ModeDisabled
			} else {
				log.Printf("Offline login successful")
				mode = ModeOffline
			}
		} else {
			log.Printf("Login unsuccessful: %s", err.Error())
			mode = ModeDisabled
		}
	} else {
		log.Printf("Login successful")
		mode = ModeOnline
		online = true
	}

	if masterKey != nil {
		a.setSession(masterKey, userName, online)
	}
	a.setMode(mode)

	if online {
		a.autoSync(ctx)
		if err := a.refreshCache(ctx, ""); err != nil {
			log.Printf("Guest list not refreshed: %s", err.Error())
		}
	}
	return nil
}

// Logout forgets the cached credentials and guest list and removes the
// in-memory masterKey. Queued check-ins survive for the next staff member.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.ClearOfflineData(ctx); err != nil {
		return err
	}
	if err := a.offlineService.ClearCache(ctx); err != nil {
		return err
	}
	a.setSession(nil, "", false)
	printlnFn("Logged out")
	return nil
}
