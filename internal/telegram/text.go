package telegram

// Telegram allows 1024 characters in a caption and 4096 in a message; both
// limits keep a margin.
const (
	CaptionLimit = 900
	MessageLimit = 3900
)

// Clip shortens s to at most limit runes, ending with an ellipsis when cut.
func Clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// Chunk splits s into consecutive pieces of at most limit runes.
func Chunk(s string, limit int) []string {
	r := []rune(s)
	if len(r) == 0 {
		return []string{""}
	}
	chunks := make([]string, 0, len(r)/limit+1)
	for i := 0; i < len(r); i += limit {
		end := min(i+limit, len(r))
		chunks = append(chunks, string(r[i:end]))
	}
	return chunks
}
