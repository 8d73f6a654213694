package model

// Websocket message types pushed on /ws/jobs/:jobId
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage mirrors a status poll response so that subscribers and
// pollers observe the same fields.
type WSProgressMessage struct {
	Type string `json:"type"`
	StatusResponse
}

type WSCompleteMessage struct {
	Type   string            `json:"type"`
	JobID  string            `json:"jobId"`
	Result *ProcessingResult `json:"result"`
}

type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
