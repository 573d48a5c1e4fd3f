package api

// API response types for REST endpoints and WebSocket messages

// StatusResponse is the run snapshot served at /api/v1/status
type StatusResponse struct {
	RunID     string  `json:"runId"`
	Target    string  `json:"target"`
	Mode      string  `json:"mode"`
	Cursor    int     `json:"cursor"`    // requests sent so far
	Total     int     `json:"total"`     // orders generated for this run
	Ticks     int     `json:"ticks"`     // dispatching ticks so far
	InFlight  int     `json:"inFlight"`  // initiated but not settled
	Succeeded int     `json:"succeeded"` // settled without transport error
	Failed    int     `json:"failed"`    // settled with transport error
	ElapsedMs float64 `json:"elapsedMs"` // first tick to now (or to last initiation)
	Done      bool    `json:"done"`
	WSClients int     `json:"wsClients"` // connected progress subscribers
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSMessage is the base structure for all WebSocket messages
type WSMessage struct {
	Type string      `json:"type"` // "progress"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["progress"]
}

// ProgressUpdate is broadcast after every dispatching tick
type ProgressUpdate struct {
	RunID     string `json:"runId"`
	Tick      int    `json:"tick"`
	From      int    `json:"from"`
	To        int    `json:"to"`
	Cursor    int    `json:"cursor"`
	Total     int    `json:"total"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// ChannelProgress is the only channel the hub serves today.
const ChannelProgress = "progress"
