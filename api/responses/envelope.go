package responses

// Body is the envelope of every 2xx JSON response. NextCursor is only set
// on paginated lists.
type Body struct {
	Data       any    `json:"data"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ErrorBody is the envelope of every non-2xx JSON response.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
