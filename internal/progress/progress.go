// Package progress summarizes per-module completion into the numbers the
// dashboard shows.
package progress

import (
	"fmt"
	"math"

	"github.com/dmitrijs2005/digitalmira/internal/identity"
)

// Aggregate returns the mean of the three module percentages, rounded half
// away from zero.
func Aggregate(p identity.Progress) int {
	sum := p.Transit + p.Shield + p.Udyam
	return int(math.Round(float64(sum) / float64(len(identity.Modules))))
}

// Row is one module line of a Summary.
type Row struct {
	Module  identity.Module
	Percent int
	Label   string
}

type Summary struct {
	Rows  []Row
	Total int
}

func Summarize(p identity.Progress) Summary {
	rows := make([]Row, 0, len(identity.Modules))
	for _, m := range identity.Modules {
		v := p.Get(m)
		rows = append(rows, Row{Module: m, Percent: v, Label: label(v)})
	}
	return Summary{Rows: rows, Total: Aggregate(p)}
}

func label(v int) string {
	return fmt.Sprintf("%d%% Complete", v)
}
