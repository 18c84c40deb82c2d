package dto

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Degraded  bool   `json:"degraded"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
