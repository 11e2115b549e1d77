package query

import (
	"context"

	"github.com/JonMunkholm/sheetq/internal/metrics"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// ContextCheckInterval is how often (in point reads) Scan checks for
// cancellation.
var ContextCheckInterval = 100

// FirstDataRow is the row immediately below the header.
const FirstDataRow = 2

// Scan returns the rows in [first, last] whose cells satisfy every group.
//
// Candidates are narrowed one group at a time: a row eliminated by an earlier
// column is never read for a later one. Each surviving row costs one
// ReadCell per group, so the worst case is len(groups) x (last-first+1)
// point reads. With no groups every row in range matches. The result is
// ascending and never nil.
func Scan(ctx context.Context, store sheet.Store, h sheet.Handle, groups []Group, first, last int) ([]int, error) {
	if last < first {
		return []int{}, nil
	}

	candidates := make([]int, 0, last-first+1)
	for r := first; r <= last; r++ {
		candidates = append(candidates, r)
	}

	reads := 0
	for _, g := range groups {
		kept := candidates[:0]
		for _, r := range candidates {
			if reads%ContextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			reads++

			v, err := store.ReadCell(ctx, h, r, g.Column)
			if err != nil {
				return nil, err
			}
			metrics.CellReads.Inc()
			if Evaluate(v, g.Pairs) {
				kept = append(kept, r)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			break
		}
	}
	return candidates, nil
}
