package api

// Response is the envelope returned by every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}
