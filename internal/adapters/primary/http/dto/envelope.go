package dto

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// PredictionResponse wraps the result of any prediction task
type PredictionResponse struct {
	Success bool   `json:"success"`
	Task    string `json:"task"`
	Result  any    `json:"result"`
}

func NewError(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}
