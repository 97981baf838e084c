package objects

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`

	// Detail carries structured context, e.g. the offending bypass pattern.
	Detail any `json:"detail,omitempty"`
}
