package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/digitalmira/internal/common"
)

// getSimpleText, getPassword and getYesNo are indirections used to
// facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getYesNo      = GetYesNo
)

// Register prompts for name, email and password and creates an account.
// The new account is signed in for this window only.
func (a *App) Register(ctx context.Context) error {
	if err := a.store.RequireGuest(ctx); err != nil {
		return err
	}

	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	acc, err := a.store.Register(ctx, name, email, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Account created. Welcome, %s!\n", acc.Name)
	return nil
}

// Login prompts for credentials and a "remember me" choice. Remembered
// sessions are visible to every client on the same database.
func (a *App) Login(ctx context.Context) error {
	if err := a.store.RequireGuest(ctx); err != nil {
		return err
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	remember, err := getYesNo(a.reader, "Remember me", a.out)
	if err != nil {
		return err
	}

	acc, err := a.store.Authenticate(ctx, email, string(password), remember)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Login successful. Hello, %s!\n", acc.Name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.store.EndSession(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// WhoAmI prints the session and the account it resolves to.
func (a *App) WhoAmI(ctx context.Context) error {
	sess, err := a.store.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}

	acc, err := a.store.CurrentAccount(ctx)
	if err != nil {
		return err
	}
	if acc == nil {
		fmt.Fprintln(a.out, "Session refers to an account that no longer exists.")
		return nil
	}

	scope := "this window"
	if sess.Persistent {
		scope = "remembered"
	}

	fmt.Fprintf(a.out, "%s <%s>\n", acc.Name, acc.Email)
	fmt.Fprintf(a.out, "Member since %s\n", acc.CreatedAt.Local().Format(time.DateOnly))
	fmt.Fprintf(a.out, "Session %s (%s), started %s\n", sess.ID, scope, sess.CreatedAt.Local().Format(time.DateTime))
	return nil
}

// Accounts lists the registered accounts.
func (a *App) Accounts(ctx context.Context) error {
	accounts, err := a.store.Accounts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%d registered account(s)\n", len(accounts))
	for _, acc := range accounts {
		fmt.Fprintf(a.out, "  %-20s %s\n", acc.Name, acc.Email)
	}
	return nil
}
