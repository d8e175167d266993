package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"marketplace/models"
)

// FlexID accepts an id sent either as a JSON number or as a string.
type FlexID int64

func (id *FlexID) UnmarshalJSON(data []byte) error {
	var num int64
	if err := json.Unmarshal(data, &num); err != nil {
		var str string
		if json.Unmarshal(data, &str) != nil {
			return err
		}
		var err2 error
		num, err2 = strconv.ParseInt(strings.TrimSpace(str), 10, 64)
		if err2 != nil {
			return fmt.Errorf("%q is not an integer id", str)
		}
	}
	*id = FlexID(num)
	return nil
}

func (id FlexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(id))
}

// ProtocolError rejects one inbound frame. The connection stays open and
// the sender gets an error frame.
type ProtocolError struct {
	Code   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

func protocolError(code, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// inboundFrame is what a client sends. Every field is required.
type inboundFrame struct {
	Text        *string             `json:"text"`
	ChatID      *FlexID             `json:"chat_id"`
	SenderID    *int64              `json:"sender_id"`
	MessageType *models.MessageType `json:"message_type"`
}

// ChatMessage is a validated inbound frame.
type ChatMessage struct {
	Text        string
	ChatID      int64
	SenderID    int64
	MessageType models.MessageType
}

func parseFrame(data []byte) (ChatMessage, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ChatMessage{}, protocolError("decode", "invalid frame: %v", err)
	}
	var missing []string
	if frame.Text == nil {
		missing = append(missing, "text")
	}
	if frame.ChatID == nil {
		missing = append(missing, "chat_id")
	}
	if frame.SenderID == nil {
		missing = append(missing, "sender_id")
	}
	if frame.MessageType == nil {
		missing = append(missing, "message_type")
	}
	if len(missing) > 0 {
		return ChatMessage{}, protocolError("missing_field", "missing fields: %s", strings.Join(missing, ", "))
	}
	if !frame.MessageType.Valid() {
		return ChatMessage{}, protocolError("message_type", "unknown message_type %d", *frame.MessageType)
	}
	return ChatMessage{
		Text:        *frame.Text,
		ChatID:      int64(*frame.ChatID),
		SenderID:    *frame.SenderID,
		MessageType: *frame.MessageType,
	}, nil
}

type errorFrame struct {
	Error string `json:"error"`
}

func encodeError(reason string) []byte {
	data, _ := json.Marshal(errorFrame{Error: reason})
	return data
}
