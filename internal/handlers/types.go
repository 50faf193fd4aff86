package handlers

import "time"

// CreateShortURLRequest is the request body for creating a short URL.
type CreateShortURLRequest struct {
	Body struct {
		URL        string `doc:"The URL to shorten"                              example:"https://example.com/very/long/path" json:"url"                  maxLength:"2048"`
		Alias      string `doc:"Custom code of 6 to 8 letters and digits"        example:"spring26"                           json:"alias,omitempty"      required:"false"`
		TTLSeconds int64  `doc:"Seconds until the link expires; 0 never expires" example:"86400"                              json:"ttlSeconds,omitempty" minimum:"0"      required:"false"`
		Owner      string `doc:"Free-form owner tag"                             example:"marketing"                          json:"owner,omitempty"      required:"false"`
	}
}

// CreateShortURLResponse is the response for a successfully created short URL.
type CreateShortURLResponse struct {
	Status  int
	Headers struct {
		Location string `doc:"The short URL location" header:"Location"`
	}
	Body struct {
		Code        string     `doc:"The short code"               example:"0Bf3kPq1xA"                          json:"code"`
		ShortURL    string     `doc:"The full short URL"           example:"http://localhost:8888/0Bf3kPq1xA"    json:"shortUrl"`
		OriginalURL string     `doc:"The original URL"             example:"https://example.com/very/long/path" json:"originalUrl"`
		ExpiresAt   *time.Time `doc:"When the link stops resolving"                                               json:"expiresAt,omitempty"`
	}
}

// CodeRequest addresses a mapping by its code.
type CodeRequest struct {
	Code string `doc:"The short code" example:"0Bf3kPq1xA" maxLength:"32" path:"code"`
}

// RedirectResponse sends the client to the target URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}

// GeneratedID is the decomposed snowflake behind a generated code.
type GeneratedID struct {
	IssuedAt time.Time `json:"issuedAt"`
	Instance int64     `json:"instance"`
	Sequence int64     `json:"sequence"`
}

// StatsResponse describes a live mapping.
type StatsResponse struct {
	Body struct {
		Code        string       `json:"code"`
		OriginalURL string       `json:"originalUrl"`
		Owner       string       `json:"owner,omitempty"`
		CreatedAt   time.Time    `json:"createdAt"`
		ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
		Clicks      int64        `json:"clicks"`
		Generated   *GeneratedID `json:"generated,omitempty"`
	}
}
