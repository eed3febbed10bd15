// Package summary reconstructs a workflow engine's reply into an ordered
// sequence of chat messages and delivers them to the requesting channel.
package summary

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Chunk is one ordered unit of the summary, rendered as one chat message.
type Chunk struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	IsFirst bool   `json:"isFirst"`
	IsLast  bool   `json:"isLast"`
	Content string `json:"content"`
}

// result mirrors the engine's reply object. The engine sometimes wraps
// the object in a single-element array; both shapes are tolerated, with
// "first element wins, empty array is an error". That tolerance is
// undocumented legacy behavior, preserved as observed.
type result struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
	Summary *resultSummary  `json:"summary"`
	UserID  string          `json:"userId"`
}

type resultSummary struct {
	Chunks json.RawMessage `json:"chunks"`
}

// parseKind identifies which validation step rejected the reply.
type parseKind int

const (
	parseEmptyResult parseKind = iota
	parseEmptyArray
	parseNullElement
	parseWorkflowError
	parseBadStructure
)

// parseError is a rejected reply; detail is only set for workflow-reported
// errors and carries the engine's own message.
type parseError struct {
	kind   parseKind
	detail string
}

func (e *parseError) Error() string { return e.detail }

// parse validates the reply shape and extracts the raw chunk sequence
// plus the userID override the engine may include. The pipeline
// short-circuits at the first failing check.
func parse(body []byte) (chunks []json.RawMessage, userID string, perr *parseError) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, "", &parseError{kind: parseEmptyResult}
	}

	if body[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(body, &elems); err != nil {
			return nil, "", &parseError{kind: parseBadStructure}
		}
		if len(elems) == 0 {
			return nil, "", &parseError{kind: parseEmptyArray}
		}
		first := bytes.TrimSpace(elems[0])
		if len(first) == 0 || bytes.Equal(first, []byte("null")) {
			return nil, "", &parseError{kind: parseNullElement}
		}
		body = first
	}

	var res result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, "", &parseError{kind: parseBadStructure}
	}

	if (res.Success != nil && !*res.Success) || hasErrorField(res.Error) {
		return nil, "", &parseError{kind: parseWorkflowError, detail: workflowErrorMessage(res.Error)}
	}

	if res.Summary == nil {
		return nil, "", &parseError{kind: parseBadStructure}
	}
	rawChunks := bytes.TrimSpace(res.Summary.Chunks)
	if len(rawChunks) == 0 || rawChunks[0] != '[' {
		return nil, "", &parseError{kind: parseBadStructure}
	}
	if err := json.Unmarshal(rawChunks, &chunks); err != nil {
		return nil, "", &parseError{kind: parseBadStructure}
	}

	return chunks, res.UserID, nil
}

// hasErrorField treats any non-empty, truthy error value as a reported
// error, mirroring the engine's loose truthiness on this field: null,
// false, 0 and the empty string all mean "no error".
func hasErrorField(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 ||
		bytes.Equal(raw, []byte("null")) ||
		bytes.Equal(raw, []byte("false")) ||
		bytes.Equal(raw, []byte("0")) ||
		bytes.Equal(raw, []byte(`""`)) {
		return false
	}
	return true
}

// workflowErrorMessage extracts an engine-reported error message: an
// {message} object, a plain string, or a fallback.
func workflowErrorMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("true")) {
		return "unknown error from the workflow engine"
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return s
	}

	return "unknown error from the workflow engine"
}

// decodeChunk parses one element of the chunk array. ok is false when the
// element is not a usable chunk (wrong type or blank content); such
// elements are skipped, never fatal.
func decodeChunk(raw json.RawMessage) (Chunk, bool) {
	var c Chunk
	if err := json.Unmarshal(raw, &c); err != nil {
		return Chunk{}, false
	}
	if strings.TrimSpace(c.Content) == "" {
		return Chunk{}, false
	}
	return c, true
}
