package giveaway

import "math/rand"

// RollWinners draws min(maxWinners, len(pool)) distinct entrants uniformly at random.
// An empty pool yields no winners.
func RollWinners(pool []string, maxWinners int) []string {
	return rollWith(pool, maxWinners, rand.Shuffle)
}

func rollWith(pool []string, maxWinners int, shuffle func(n int, swap func(i, j int))) []string {
	candidates := unique(pool)
	if maxWinners <= 0 || len(candidates) == 0 {
		return []string{}
	}
	shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates[:min(maxWinners, len(candidates))]
}

func unique(pool []string) []string {
	seen := make(map[string]struct{}, len(pool))
	out := make([]string, 0, len(pool))
	for _, id := range pool {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
