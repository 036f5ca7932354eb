package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/digitalmira/internal/common"
	"github.com/dmitrijs2005/digitalmira/internal/identity"
	"github.com/dmitrijs2005/digitalmira/internal/progress"
)

const barWidth = 20

// Progress prints the dashboard: one bar per module and the overall figure.
func (a *App) Progress(ctx context.Context) error {
	if err := a.store.RequireAuthenticated(ctx); err != nil {
		return err
	}

	acc, err := a.store.CurrentAccount(ctx)
	if err != nil {
		return err
	}
	if acc == nil {
		return common.ErrNotAuthenticated
	}

	sum := progress.Summarize(acc.Progress)
	for _, r := range sum.Rows {
		fmt.Fprintf(a.out, "%-8s %s %s\n", r.Module, bar(r.Percent), r.Label)
	}
	fmt.Fprintf(a.out, "%-8s %s %d%%\n", "overall", bar(sum.Total), sum.Total)
	return nil
}

// SetProgress handles "setprogress <module> <value>".
func (a *App) SetProgress(ctx context.Context, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(a.out, "Usage: setprogress <transit|shield|udyam> <0-100>")
		return nil
	}

	value, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(a.out, "Not a number: %s\n", args[1])
		return nil
	}

	if err := a.store.RequireAuthenticated(ctx); err != nil {
		return err
	}

	module := identity.Module(args[0])
	if err := a.store.UpdateProgress(ctx, module, value); err != nil {
		return err
	}

	acc, err := a.store.CurrentAccount(ctx)
	if err != nil {
		return err
	}
	if acc != nil {
		fmt.Fprintf(a.out, "%s: %d%% Complete\n", module, acc.Progress.Get(module))
	}
	return nil
}

func bar(percent int) string {
	filled := percent * barWidth / 100
	b := make([]byte, 0, barWidth+2)
	b = append(b, '[')
	for i := 0; i < barWidth; i++ {
		if i < filled {
			b = append(b, '#')
		} else {
			b = append(b, '.')
		}
	}
	return string(append(b, ']'))
}
