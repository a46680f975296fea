package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
)

var errOffline = errors.New("server unreachable")

// Scan redeems a QR payload given as the first argument, or prompts for it.
func (a *App) Scan(ctx context.Context, args []string) error {
	qrData, err := a.argOrPrompt(args, "Scan or paste QR payload")
	if err != nil {
		return err
	}

	res, err := a.scanService.Scan(ctx, a.masterKey, qrData, a.online())
	if err != nil {
		printlnFn("[ERROR]", err.Error())
		return err
	}
	printResult(res)
	return nil
}

// CheckIn is the manual override by attendee id.
func (a *App) CheckIn(ctx context.Context, args []string) error {
	attendeeID, err := a.argOrPrompt(args, "Enter attendee id")
	if err != nil {
		return err
	}

	res, err := a.scanService.CheckIn(ctx, attendeeID, a.online())
	if err != nil {
		printlnFn("[ERROR]", err.Error())
		return err
	}
	printResult(res)
	return nil
}

// Cache downloads the guest list, optionally for a single event.
func (a *App) Cache(ctx context.Context, args []string) error {
	eventID := ""
	if len(args) > 0 {
		eventID = args[0]
	}
	if err := a.refreshCache(ctx, eventID); err != nil {
		printlnFn("Guest list not refreshed:", err.Error())
		return err
	}
	return nil
}

func (a *App) refreshCache(ctx context.Context, eventID string) error {
	if !a.online() {
		return errOffline
	}
	info, err := a.offlineService.RefreshCache(ctx, a.masterKey, eventID)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Guest list cached: %d attendees in %d events (%d checked in)", info.Attendees, info.Events, info.CheckedIn))
	return nil
}

// Sync replays queued offline check-ins.
func (a *App) Sync(ctx context.Context) error {
	if !a.online() {
		printlnFn("Cannot sync while offline")
		return errOffline
	}
	if !a.hasServerSession() {
		printlnFn("Login while online to sync queued check-ins")
		return errOffline
	}
	res, err := a.offlineService.SyncQueue(ctx)
	if err != nil {
		printlnFn("Sync failed:", err.Error())
		return err
	}
	printlnFn(fmt.Sprintf("Synced: %d, failed: %d, remaining: %d", res.Synced, res.Failed, res.Remaining))
	return nil
}

// Pending lists queued check-ins.
func (a *App) Pending(ctx context.Context) error {
	entries, err := a.offlineService.Pending(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if len(entries) == 0 {
		printlnFn("No queued check-ins")
		return nil
	}
	for _, e := range entries {
		payload := "qr " + e.QRData
		if e.Manual() {
			payload = "attendee " + e.AttendeeID
		}
		line := fmt.Sprintf("%s  %s  %s", e.ID, e.QueuedAt.Local().Format(time.DateTime), payload)
		if e.Attempts > 0 {
			line += fmt.Sprintf("  (attempts: %d, last error: %s)", e.Attempts, e.LastError)
		}
		printlnFn(line)
	}
	return nil
}

// Discard drops a queued check-in after confirmation.
func (a *App) Discard(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: discard <id>")
		return nil
	}
	ok, err := getConfirmation(a.reader, fmt.Sprintf("Discard queued check-in %s?", args[0]), os.Stdout)
	if err != nil || !ok {
		return err
	}
	if err := a.offlineService.Discard(ctx, args[0]); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Discarded")
	return nil
}

// Status shows the connection mode and the local guest list.
func (a *App) Status(ctx context.Context) error {
	printlnFn(fmt.Sprintf("Mode: %s, device: %s", a.mode(), a.config.DeviceID))

	info, err := a.offlineService.CacheInfo(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if info.CachedAt.IsZero() {
		printlnFn("Guest list: not cached")
	} else {
		printlnFn(fmt.Sprintf("Guest list: %d attendees in %d events, %d checked in, cached %s",
			info.Attendees, info.Events, info.CheckedIn, info.CachedAt.Local().Format(time.DateTime)))
	}
	printlnFn(fmt.Sprintf("Queued check-ins: %d", info.Pending))
	return nil
}

func (a *App) argOrPrompt(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return getSimpleText(a.reader, prompt, os.Stdout)
}

// printResult keeps duplicates visibly apart from failures.
func printResult(res *models.CheckInResult) {
	var tag string
	switch res.Outcome {
	case models.OutcomeSuccess:
		tag = "[OK]"
	case models.OutcomeAlreadyCheckedIn:
		tag = "[ALREADY IN]"
	case models.OutcomeRateLimited:
		tag = "[WAIT]"
	case models.OutcomeError:
		tag = "[ERROR]"
	default:
		tag = "[DENIED]"
	}

	line := tag + " " + res.Message
	if res.Outcome == models.OutcomeRateLimited && res.RetryAfter > 0 {
		line += fmt.Sprintf(" (retry in %s)", res.RetryAfter)
	}
	if res.Event != nil && res.Event.Name != "" && res.Attendee != nil {
		line += " - " + res.Event.Name
	}
	if res.Offline && res.Success() {
		line += " (offline, will sync)"
	}
	printlnFn(line)
}
