package ws

import "encoding/json"

// Inbound control message types.
const (
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgPing        = "ping"
)

// Outbound message types.
const (
	msgConnectionEstablished = "connection_established"
	msgSubscribeResponse     = "subscribe_response"
	msgUnsubscribeResponse   = "unsubscribe_response"
	msgPong                  = "pong"
	msgError                 = "error"
)

// Ack statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// inboundMessage is the envelope for all client → server control messages.
type inboundMessage struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
}

// connectionEstablished is sent once after a successful handshake.
type connectionEstablished struct {
	Type            string `json:"type"`
	ClientID        string `json:"client_id"`
	IsAuthenticated bool   `json:"is_authenticated"`
	UserID          string `json:"user_id"`
}

// ackMessage acknowledges a subscribe or unsubscribe request.
type ackMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// pongMessage answers a ping.
type pongMessage struct {
	Type string `json:"type"`
}

// errorMessage reports a malformed inbound message. The connection stays open.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EventMessage is the broadcast envelope delivered to subscribers:
// {type: <topic>, data: <payload>}.
type EventMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// All outbound message types above marshal unconditionally.
		panic(err)
	}
	return data
}
