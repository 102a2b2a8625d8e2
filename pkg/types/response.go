package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ListEnvelope wraps collection responses with the item count alongside the data.
type ListEnvelope struct {
	Count int `json:"count"`
	Data  any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
