package httpdto

// Response is the uniform envelope for every endpoint. Data is populated on
// success; Error pairs the stable machine code with the human message.
type Response[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(message string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	}
}
