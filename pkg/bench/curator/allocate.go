package curator

import "sort"

// GreedyEvenFill splits a target total N evenly across len(available)
// buckets, respecting each bucket's availability ceiling: shortfalls
// in one bucket spill over to others until the target (or the global
// ceiling, sum(available)) is met. Used both to split the LLM target
// across sources and to split a dataset source's target across
// categories.
func GreedyEvenFill(target int, available []int) []int {
	n := len(available)
	allocated := make([]int, n)
	if n == 0 || target <= 0 {
		return allocated
	}

	globalCeiling := 0
	for _, a := range available {
		globalCeiling += a
	}
	if target > globalCeiling {
		target = globalCeiling
	}

	remaining := target
	open := make([]int, 0, n)
	for i := range available {
		open = append(open, i)
	}

	for remaining > 0 && len(open) > 0 {
		before := remaining
		share := remaining / len(open)
		if share == 0 {
			share = 1
		}
		nextOpen := open[:0:0]
		for _, i := range open {
			room := available[i] - allocated[i]
			if room <= 0 {
				continue
			}
			take := share
			if take > room {
				take = room
			}
			if take > remaining {
				take = remaining
			}
			allocated[i] += take
			remaining -= take
			if allocated[i] < available[i] {
				nextOpen = append(nextOpen, i)
			}
			if remaining == 0 {
				break
			}
		}
		if remaining == before {
			// No bucket could absorb another unit; stop to avoid
			// spinning.
			break
		}
		open = nextOpen
	}
	return allocated
}

// DistributeRoundingResidual adjusts integer targets so they sum to
// exactly total, after independent per-bin rounding produced a sum
// that drifted from total. Residual units are added to the
// highest-weight bins (to fill) or removed from the lowest-weight
// bins (to trim), and are never pushed onto a bin whose target would
// then exceed its availability.
func DistributeRoundingResidual(targets []int, weights []float64, availability []int, total int) []int {
	sum := 0
	for _, t := range targets {
		sum += t
	}
	residual := total - sum
	if residual == 0 {
		return targets
	}

	order := make([]int, len(targets))
	for i := range order {
		order[i] = i
	}

	out := append([]int(nil), targets...)

	if residual > 0 {
		// Fill: highest-weight bins first.
		sort.Slice(order, func(i, j int) bool { return weights[order[i]] > weights[order[j]] })
		for residual > 0 {
			progressed := false
			for _, i := range order {
				if residual == 0 {
					break
				}
				if out[i] < availability[i] {
					out[i]++
					residual--
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}
		return out
	}

	// Trim: lowest-weight bins first.
	sort.Slice(order, func(i, j int) bool { return weights[order[i]] < weights[order[j]] })
	for residual < 0 {
		progressed := false
		for _, i := range order {
			if residual == 0 {
				break
			}
			if out[i] > 0 {
				out[i]--
				residual++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}
