package types

import (
	"encoding/json"
	"regexp"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxContentBytes bounds the marshalled size of an inbound message body.
const maxContentBytes = 4096

// Validate checks the message type and the fields that type requires.
func (m *Message) Validate() error {
	if !IsValidMessageType(m.Type) {
		return ErrInvalidMessageType
	}

	contentBytes, err := json.Marshal(m.Content)
	if err != nil {
		return ErrInvalidContent
	}
	if len(contentBytes) > maxContentBytes {
		return ErrContentTooLarge
	}

	switch m.Type {
	case MessageTypeSubmitClue, MessageTypeDiscussionMessage:
		if _, ok := m.Content["text"].(string); !ok {
			return ErrMissingText
		}
	case MessageTypeCastVote:
		if target, ok := m.Content["target"].(string); !ok || target == "" {
			return ErrMissingTarget
		}
	}

	return nil
}

// Text returns the text field of the message content, if any.
func (m *Message) Text() string {
	text, _ := m.Content["text"].(string)
	return text
}

// Target returns the target field of the message content, if any.
func (m *Message) Target() string {
	target, _ := m.Content["target"].(string)
	return target
}

// IsValidParticipantID checks if a participant ID meets format requirements.
func IsValidParticipantID(id string) bool {
	return isValidIdentifier(id)
}

// IsValidRoomID checks if a room ID meets format requirements.
func IsValidRoomID(id string) bool {
	return isValidIdentifier(id)
}

func isValidIdentifier(id string) bool {
	if len(id) < 1 || len(id) > 50 {
		return false
	}
	return identifierRegex.MatchString(id)
}

// IsValidMessageType reports whether clients may send this message type.
func IsValidMessageType(msgType string) bool {
	switch msgType {
	case MessageTypeSubmitClue,
		MessageTypeCastVote,
		MessageTypeDiscussionMessage,
		MessageTypeSkipDiscussion:
		return true
	default:
		return false
	}
}
