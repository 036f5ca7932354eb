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
	isLoggedIn(ctx context.Context) bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Progress(ctx context.Context) error
	SetProgress(ctx context.Context, args []string) error
	Components(ctx context.Context) error
	Add(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Layout(ctx context.Context) error
	Save(ctx context.Context) error
	Clear(ctx context.Context) error
	Accounts(ctx context.Context) error
}

func prompt(status string) string {
	if status == "" {
		return "mira> "
	}
	return fmt.Sprintf("mira %s> ", status)
}

// runREPL reads commands line by line and dispatches them to a. The loop
// exits on EOF or when the user types "exit" or "quit". Command prompts read
// from the same reader, so answers to them are never taken as commands.
//
//	Guest:
//	  register, login, components, add, remove, layout, save, clear,
//	  accounts, help, exit | quit
//
//	Signed in:
//	  logout, whoami, progress, setprogress <module> <value>,
//	  components, add <id>, remove <n>, layout, save, clear,
//	  accounts, help, exit | quit
//
// Handler errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(prompt(statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		err = nil
		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn("Available commands: logout, whoami, progress, setprogress <module> <value>, components, add <id>, remove <n>, layout, save, clear, accounts, exit")
			} else {
				printlnFn("Available commands: register, login, components, add <id>, remove <n>, layout, save, clear, accounts, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "whoami":
			err = a.WhoAmI(ctx)

		case "progress":
			err = a.Progress(ctx)

		case "setprogress":
			err = a.SetProgress(ctx, args)

		case "components":
			err = a.Components(ctx)

		case "add":
			err = a.Add(ctx, args)

		case "remove":
			err = a.Remove(ctx, args)

		case "layout":
			err = a.Layout(ctx)

		case "save":
			err = a.Save(ctx)

		case "clear":
			err = a.Clear(ctx)

		case "accounts":
			err = a.Accounts(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn(describe(err))
		}
	}
}
