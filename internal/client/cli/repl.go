package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Scan(ctx context.Context, args []string) error
	CheckIn(ctx context.Context, args []string) error
	Cache(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Pending(ctx context.Context) error
	Discard(ctx context.Context, args []string) error
	Status(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the scanner.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Prompts issued by handlers read from the
// same reader. The loop exits on EOF or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help              show available commands
//	  - register          create a staff account
//	  - login             authenticate
//	  - status            show mode and cache state
//	  - exit | quit       leave the program
//
//	Logged in:
//	  - scan [payload]    check in by QR payload
//	  - checkin [id]      manual check-in by attendee id
//	  - cache [eventId]   download the guest list
//	  - sync              replay queued offline check-ins
//	  - pending           list queued check-ins
//	  - discard <id>      drop a queued check-in
//	  - status, logout, exit
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("scan> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: scan, checkin, cache, sync, pending, discard, status, logout, exit")
			} else {
				printlnFn("Available commands: register, login, status, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "status":
			_ = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "scan", "s", "checkin", "cache", "sync", "pending", "discard", "logout":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			switch cmd {
			case "scan", "s":
				_ = a.Scan(ctx, args)
			case "checkin":
				_ = a.CheckIn(ctx, args)
			case "cache":
				_ = a.Cache(ctx, args)
			case "sync":
				_ = a.Sync(ctx)
			case "pending":
				_ = a.Pending(ctx)
			case "discard":
				_ = a.Discard(ctx, args)
			case "logout":
				_ = a.Logout(ctx)
			}

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
