package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/jarvis-chat/internal/llm"
)

const networkErrorMessage = "A network error occurred while contacting the AI provider."

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeError
)

// outcome is either the raw upstream success body or an error envelope.
type outcome struct {
	kind        outcomeKind
	status      int
	contentType string
	raw         []byte
	envelope    errorBody
}

// normalize maps an upstream result onto what the gateway returns. Success
// bodies pass through byte-for-byte; failures keep the upstream status and
// surface error.message, or the reason phrase when there is none.
func normalize(resp *llm.Response, err error) outcome {
	if err != nil || resp == nil {
		return outcome{
			kind:     outcomeError,
			status:   http.StatusInternalServerError,
			envelope: errorBody{Message: networkErrorMessage, Code: http.StatusInternalServerError},
		}
	}
	if resp.OK() {
		return outcome{kind: outcomeSuccess, status: resp.StatusCode, contentType: resp.ContentType, raw: resp.Body}
	}

	body := errorBody{Message: reasonPhrase(resp.StatusCode), Code: resp.StatusCode}
	var upstream openai.ErrorResponse
	if json.Unmarshal(resp.Body, &upstream) == nil && upstream.Error != nil {
		if msg := strings.TrimSpace(upstream.Error.Message); msg != "" {
			body.Message = msg
		}
		if upstream.Error.Code != nil {
			body.Code = upstream.Error.Code
		}
	}
	return outcome{kind: outcomeError, status: resp.StatusCode, envelope: body}
}

func reasonPhrase(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Upstream request failed"
}
