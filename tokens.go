package chatcore

// EstimateTokens approximates the token count of text. ASCII runes weigh
// a quarter token each, everything else (CJK, Cyrillic, Vietnamese
// diacritics, emoji) a full token.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
