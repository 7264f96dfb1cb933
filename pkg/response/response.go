package response

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope every JSON endpoint returns
type Response struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"` // HTTP status code, repeated in the body
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success wraps data in a success envelope
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     StatusSuccess,
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error wraps an error message in an error envelope
func Error(statusCode int, err string) Response {
	return Response{
		Status:     StatusError,
		StatusCode: statusCode,
		Error:      err,
	}
}
