package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/digitalmira/internal/storebuilder"
)

func (a *App) Components(_ context.Context) error {
	for _, c := range a.builder.Catalog().Components() {
		fmt.Fprintf(a.out, "  %-14s %-18s %s\n", c.ID, c.Name, c.Type)
	}
	return nil
}

// Add handles "add <componentId>".
func (a *App) Add(_ context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: add <componentId>")
		return nil
	}

	p, err := a.builder.Add(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s (%d on canvas)\n", p.Name, len(a.builder.Layout()))
	return nil
}

// Remove handles "remove <n>", where n is the position shown by "layout".
func (a *App) Remove(_ context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: remove <n>")
		return nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(a.out, "Not a number: %s\n", args[0])
		return nil
	}

	if err := a.builder.Remove(n - 1); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Removed.")
	return nil
}

func (a *App) Layout(_ context.Context) error {
	layout := a.builder.Layout()
	if len(layout) == 0 {
		fmt.Fprintln(a.out, "Canvas is empty. Add components to build your store.")
		return nil
	}
	for i, p := range layout {
		fmt.Fprintf(a.out, "%3d. %s\n", i+1, p.Name)
	}
	return nil
}

// Save stores the canvas. Signed-in users also get udyam progress for it.
func (a *App) Save(ctx context.Context) error {
	if err := a.builder.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Layout saved successfully!")

	if a.isLoggedIn(ctx) {
		fmt.Fprintf(a.out, "udyam: %d%% Complete\n", storebuilder.LayoutProgress(len(a.builder.Layout())))
	}
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	if err := a.builder.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Canvas cleared.")
	return nil
}
