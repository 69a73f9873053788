package application

import (
	"errors"

	"compass/contexts/work-tracking/ordering-service/domain/entities"
	"compass/contexts/work-tracking/ordering-service/domain/rank"
	"compass/contexts/work-tracking/ordering-service/ports"
)

// positionPlan is the outcome of a position calculation: the rank reserved
// for the new or moved row, plus reassignments for every pre-existing row
// when the partition had to be rebalanced.
type positionPlan struct {
	Position string
	Moves    []ports.PositionChange
}

func (p positionPlan) rebalanced() bool {
	return len(p.Moves) > 0
}

// planPosition computes where a row lands inside a partition. The partition
// slice is sorted by position ascending and never contains the moving row
// itself. after/before are optional neighbor references; a reference with no
// row in the partition is treated as absent, since callers may pass stale
// ids.
func planPosition(partition []entities.Ordering, after, before *entities.EntityRef) (positionPlan, error) {
	if len(partition) == 0 {
		return positionPlan{Position: rank.Middle()}, nil
	}

	if after == nil && before == nil {
		pos, err := rank.Next(partition[len(partition)-1].Position)
		if errors.Is(err, rank.ErrOverflow) {
			return rebalanceAt(partition, len(partition)), nil
		}
		if err != nil {
			return positionPlan{}, err
		}
		return positionPlan{Position: pos}, nil
	}

	afterPos, afterIdx := neighborPosition(partition, after)
	beforePos, beforeIdx := neighborPosition(partition, before)

	pos, err := rank.Between(afterPos, beforePos, len(partition)+1)
	if errors.Is(err, rank.ErrRebalanceRequired) {
		return rebalanceAt(partition, rebalanceSlot(partition, afterIdx, beforeIdx)), nil
	}
	if err != nil {
		return positionPlan{}, err
	}

	// A computed position can collide with a row outside the given bounds
	// (stale neighbors, or bounds that are not adjacent). Renumber instead of
	// letting the write fail and sending the caller into a retry loop that
	// recomputes the same rank.
	for i, row := range partition {
		if row.Position == pos {
			return rebalanceAt(partition, i), nil
		}
	}
	return positionPlan{Position: pos}, nil
}

// rebalanceSlot picks the index the new row occupies after renumbering: right
// after the resolved after-neighbor, at the resolved before-neighbor, or the
// middle of the partition when neither resolved.
func rebalanceSlot(partition []entities.Ordering, afterIdx, beforeIdx int) int {
	switch {
	case afterIdx >= 0:
		return afterIdx + 1
	case beforeIdx >= 0:
		return beforeIdx
	default:
		return len(partition) / 2
	}
}

// rebalanceAt renumbers the whole partition with evenly spaced ranks,
// reserving the insertIdx-th rank for the new row. Relative order of existing
// rows is preserved. O(n) over the partition; acceptable while lists stay at
// task-board sizes.
func rebalanceAt(partition []entities.Ordering, insertIdx int) positionPlan {
	ranks := rank.Spread(len(partition) + 1)
	moves := make([]ports.PositionChange, 0, len(partition))
	for i, row := range partition {
		target := i
		if i >= insertIdx {
			target = i + 1
		}
		moves = append(moves, ports.PositionChange{
			OrderingID: row.OrderingID,
			Position:   ranks[target],
		})
	}
	return positionPlan{Position: ranks[insertIdx], Moves: moves}
}

func neighborPosition(partition []entities.Ordering, ref *entities.EntityRef) (string, int) {
	if ref == nil {
		return "", -1
	}
	for i, row := range partition {
		if row.Entity == *ref {
			return row.Position, i
		}
	}
	return "", -1
}
