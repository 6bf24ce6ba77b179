package main

// EditDistance computes the Levenshtein distance between s1 and s2. When
// maxEditDistance is non-zero, the computation stops early and returns
// maxEditDistance+1 once every prefix is already farther away than that.
func EditDistance(s1, s2 string, allowReplacements bool, maxEditDistance int) int {
	m := len(s1)
	n := len(s2)

	row := make([]int, n+1)
	for i := 1; i <= n; i++ {
		row[i] = i
	}

	for y := 1; y <= m; y++ {
		row[0] = y
		bestThisRow := row[0]

		previous := y - 1
		for x := 1; x <= n; x++ {
			oldRow := row[x]
			switch {
			case s1[y-1] == s2[x-1]:
				row[x] = previous
			case allowReplacements:
				row[x] = min(previous, row[x-1], row[x]) + 1
			default:
				row[x] = min(row[x-1], row[x]) + 1
			}
			previous = oldRow
			bestThisRow = min(bestThisRow, row[x])
		}

		if maxEditDistance != 0 && bestThisRow > maxEditDistance {
			return maxEditDistance + 1
		}
	}
	return row[n]
}

// / Given a misspelled string and a list of correct spellings, returns
// / the closest match or "" if there is no close enough match.
func SpellcheckString(text string, words ...string) string {
	const kAllowReplacements = true
	const kMaxValidEditDistance = 3

	minDistance := kMaxValidEditDistance + 1
	result := ""
	for _, word := range words {
		distance := EditDistance(word, text, kAllowReplacements, kMaxValidEditDistance)
		if distance < minDistance {
			minDistance = distance
			result = word
		}
	}
	return result
}
