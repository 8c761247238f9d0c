package apperr

// Response is the uniform error payload written for every failure.
type Response struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	Messages   []string `json:"messages,omitempty"`
	StatusCode int      `json:"statusCode"`
}

// Response renders the payload for e.
func (e *Error) Response() Response {
	r := Response{
		Error:      string(e.Kind),
		Message:    e.Message,
		StatusCode: e.Status(),
	}
	if e.Kind == KindValidation {
		r.Messages = e.Messages
	}
	return r
}

// Translate classifies err and returns the status code and payload to write.
func Translate(err error) (int, Response) {
	ae := From(err)
	return ae.Status(), ae.Response()
}
