package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer  Action = "answer"
	ActionSubmit  Action = "submit"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionPing    Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records a single option selection.
type AnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id"`
	Option     string `json:"option"`
}

// SubmitRequest asks for the submit confirmation prompt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ConfirmRequest finalizes a pending submit.
type ConfirmRequest struct {
	Action Action `json:"action"`
}

// CancelRequest dismisses a pending submit confirmation.
type CancelRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventHydrated Event = "hydrated"
	EventTick     Event = "tick"
	EventSaved    Event = "saved"
	EventConfirm  Event = "confirm"
	EventResult   Event = "result"
	EventNotice   Event = "notice"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// EventResponse wraps any controller payload with its event tag.
type EventResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
	Option     string `json:"option"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
