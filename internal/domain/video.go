package domain

// ParseResult is the normalized description of a resolved share link.
type ParseResult struct {
	Title    string `json:"title"`
	CoverURL string `json:"coverUrl"`
	VideoURL string `json:"videoUrl"`
}
