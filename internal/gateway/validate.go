package gateway

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

// ValidationError is a malformed client payload. It maps to 400 and is never
// retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var allowedRoles = map[string]bool{
	openai.ChatMessageRoleSystem:    true,
	openai.ChatMessageRoleUser:      true,
	openai.ChatMessageRoleAssistant: true,
}

// chatRequest is a validated POST /chat payload.
type chatRequest struct {
	Messages []openai.ChatCompletionMessage
	ModelID  string
}

// validate checks the inbound payload shape without binding it to a struct,
// so a wrong type is reported rather than silently zeroed.
func validate(body []byte) (*chatRequest, *ValidationError) {
	if !gjson.ValidBytes(body) {
		return nil, invalid("Request body must be valid JSON.")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, invalid("Request body must be a JSON object.")
	}

	messages := root.Get("messages")
	if !messages.Exists() {
		return nil, invalid("Request must include a messages array.")
	}
	if !messages.IsArray() {
		return nil, invalid("messages must be an array.")
	}
	items := messages.Array()
	if len(items) == 0 {
		return nil, invalid("messages must not be empty.")
	}

	req := &chatRequest{Messages: make([]openai.ChatCompletionMessage, 0, len(items))}
	for i, m := range items {
		if !m.IsObject() {
			return nil, invalid("messages[%d] must be an object.", i)
		}
		role, content := m.Get("role"), m.Get("content")
		if role.Type != gjson.String || content.Type != gjson.String {
			return nil, invalid("messages[%d] must have string role and content.", i)
		}
		if !allowedRoles[role.Str] {
			return nil, invalid("messages[%d] has invalid role %q; expected system, user or assistant.", i, role.Str)
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role.Str, Content: content.Str})
	}

	if model := root.Get("modelId"); model.Exists() && model.Type != gjson.Null {
		if model.Type != gjson.String {
			return nil, invalid("modelId must be a string.")
		}
		req.ModelID = model.Str
	}
	return req, nil
}
