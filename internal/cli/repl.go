package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isAuthenticated() bool
	Configure(ctx context.Context) error
	Ranges(ctx context.Context) error
	Login(ctx context.Context) error
	Status(ctx context.Context) error
	Current(ctx context.Context) error
	History(ctx context.Context, args []string) error
	Trends(ctx context.Context) error
	Sensor(ctx context.Context) error
	Connections(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the glucolink CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not signed in:
//	  - help             show available commands
//	  - configure        store credentials and region
//	  - ranges           set the target glucose range
//	  - login            sign in now instead of on first use
//	  - status           session, region and key custody overview
//	  - exit | quit      leave the program
//
//	Signed in, additionally:
//	  - current | c      latest glucose reading
//	  - history [hours]  readings over the last hours (default 12)
//	  - trends           statistics over the last two weeks
//	  - sensor           sensor identity and remaining lifetime
//	  - connections      accounts sharing data with this follower
//	  - logout           drop the session, keep credentials
//
// Any errors returned by command handlers are ignored here; handlers print
// their own remediation hints. This keeps the REPL loop resilient and
// focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("glucolink %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isAuthenticated() {
				printlnFn("Available commands: (c)urrent, history [hours], trends, sensor, connections, status, ranges, logout, exit")
			} else {
				printlnFn("Available commands: configure, ranges, login, status, exit")
			}

		case "configure":
			_ = a.Configure(ctx)

		case "ranges":
			_ = a.Ranges(ctx)

		case "login":
			_ = a.Login(ctx)

		case "status":
			_ = a.Status(ctx)

		case "c", "current":
			_ = a.Current(ctx)

		case "history":
			_ = a.History(ctx, args)

		case "trends":
			_ = a.Trends(ctx)

		case "sensor":
			_ = a.Sensor(ctx)

		case "connections":
			_ = a.Connections(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
