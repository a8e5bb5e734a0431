package ipc

// Request is one newline-delimited JSON command sent to the daemon socket.
// RequestID carries the pending permission id for grant/deny commands.
type Request struct {
	Command   string `json:"command"`
	RequestID int64  `json:"requestId,omitempty"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
