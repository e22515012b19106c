package shortener

// Request is one shorten call. CustomCode is optional; when empty it is
// left out of the outbound payload entirely.
type Request struct {
	URL         string
	RequesterID string
	CustomCode  string
}

// Result is the parsed success response.
type Result struct {
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	TotalClicks int    `json:"total_clicks"`
}

// shortenPayload is the wire body of POST {base}{shortenPath}.
type shortenPayload struct {
	URL           string `json:"url"`
	DiscordUserID string `json:"discordUserId"`
	Custom        string `json:"custom,omitempty"`
}

type fieldErrorWire struct {
	Path  string      `json:"path"`
	Msg   string      `json:"msg"`
	Value interface{} `json:"value"`
}
