package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

var errUsage = errors.New("usage")

func usage(s string) error {
	return fmt.Errorf("%w: %s", errUsage, s)
}

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Add(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	Format(ctx context.Context, args []string) error
	Options(ctx context.Context, args []string) error
	Clear(ctx context.Context, args []string) error
	Convert(ctx context.Context, args []string) error
	Retry(ctx context.Context, args []string) error

	Watch(ctx context.Context, args []string) error
	Watches(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Jobs(ctx context.Context, args []string) error

	Signup(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	WhoAmI(ctx context.Context, args []string) error
	Verify(ctx context.Context, args []string) error
	Resend(ctx context.Context, args []string) error
	Forgot(ctx context.Context, args []string) error
	Reset(ctx context.Context, args []string) error
}

const (
	helpQueue = "Queue: add <paths...>, (l)ist, remove <id>, move <id> <overId>, format <id> <fmt>, " +
		"options <id> [format=..] [ocr=on|off] [quality=1-100] [pages=1-3,5], clear, convert [ids...], retry <id>"
	helpJobs    = "Jobs: watch <jobId>, watches, download <jobId>, jobs"
	helpGuest   = "Account: signup, login, verify [code], resend [email], forgot [email], reset [token]"
	helpAccount = "Account: whoami, verify [code], resend [email], logout"
)

// runREPL starts a read-eval-print loop for the pdfconv CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and passes the remaining tokens to the matching method on a.
// Handler errors are printed and the loop continues. The loop exits on
// scanner EOF or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("pdf> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpQueue)
			printlnFn(helpJobs)
			if a.isLoggedIn() {
				printlnFn(helpAccount)
			} else {
				printlnFn(helpGuest)
			}

		case "add":
			err = a.Add(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "rm", "remove":
			err = a.Remove(ctx, args)
		case "move":
			err = a.Move(ctx, args)
		case "format":
			err = a.Format(ctx, args)
		case "options":
			err = a.Options(ctx, args)
		case "clear":
			err = a.Clear(ctx, args)
		case "convert":
			err = a.Convert(ctx, args)
		case "retry":
			err = a.Retry(ctx, args)

		case "watch":
			err = a.Watch(ctx, args)
		case "watches":
			err = a.Watches(ctx, args)
		case "download":
			err = a.Download(ctx, args)
		case "jobs":
			err = a.Jobs(ctx, args)

		case "signup":
			err = a.Signup(ctx, args)
		case "login":
			err = a.Login(ctx, args)
		case "logout":
			err = a.Logout(ctx, args)
		case "whoami":
			err = a.WhoAmI(ctx, args)
		case "verify":
			err = a.Verify(ctx, args)
		case "resend":
			err = a.Resend(ctx, args)
		case "forgot":
			err = a.Forgot(ctx, args)
		case "reset":
			err = a.Reset(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			if errors.Is(err, errUsage) {
				printlnFn("Usage:", strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
			} else {
				printlnFn("Error:", err)
			}
		}
	}
}
