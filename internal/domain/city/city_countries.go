package city

import "github.com/FACorreiaa/loci-cities/internal/types"

// Countries folds cities into the distinct countries they belong to, in
// first-seen order. The first city of a country supplies its emoji.
func Countries(cities []types.City) []types.Country {
	countries := make([]types.Country, 0)
	seen := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		if _, ok := seen[c.Country]; ok {
			continue
		}
		seen[c.Country] = struct{}{}
		countries = append(countries, types.Country{Country: c.Country, Emoji: c.Emoji})
	}
	return countries
}
