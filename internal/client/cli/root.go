package cli

import (
	"context"
	"fmt"
	"log"
)

func (a *App) getStatus() string {
	a.mu.Lock()
	userName := a.userName
	a.mu.Unlock()

	s := ""
	if userName != "" {
		s = userName + " "
	}
	if m := a.mode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root logs in, starts the connectivity watcher and runs the REPL until the
// user exits or ctx is cancelled.
func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to the doorkeeper scanner (type 'help' for commands)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_ = a.Login(ctx)

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}
