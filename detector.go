package autocompact

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// tokenLimitMarkers are lowercase fragments of host and provider messages
// reporting an oversized conversation.
var tokenLimitMarkers = []string{
	"prompt is too long",
	"input is too long",
	"context_length_exceeded",
	"maximum context length",
	"context length",
	"context window",
	"too many tokens",
	"token limit",
	"tokens > ",
	"request too large",
}

var (
	tokensOverMaxPattern = regexp.MustCompile(`(\d+)\s*tokens?\s*>\s*(\d+)`)
	maxThenActualPattern = regexp.MustCompile(`(?i)maximum context length is (\d+) tokens.*?(\d+) tokens`)
	requestIDPattern     = regexp.MustCompile(`\breq_[A-Za-z0-9]+\b`)
	messagePaths         = []string{"data.message", "message", "error.message", "data.error.message"}
	responseBodyPaths    = []string{"data.responseBody", "responseBody"}
	nestedMessagePaths   = []string{"error.message", "message"}
	nestedRequestIDPaths = []string{"request_id", "requestID", "error.request_id"}
	providerIDPaths      = []string{"data.providerID", "providerID"}
	modelIDPaths         = []string{"data.modelID", "modelID"}
)

// ParseTokenLimitError inspects an error payload from the chat host and
// reports whether it is a token-limit failure. The payload may be a JSON
// object in any of the host's error shapes or a bare JSON string.
func ParseTokenLimitError(raw []byte) (*ParsedTokenLimitError, bool) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil, false
	}
	root := gjson.ParseBytes(raw)

	var texts []string
	var requestID string
	if root.Type == gjson.String {
		texts = append(texts, root.String())
	} else {
		for _, path := range messagePaths {
			if v := root.Get(path); v.Type == gjson.String {
				texts = append(texts, v.String())
			}
		}
		for _, path := range responseBodyPaths {
			body := root.Get(path)
			if body.Type != gjson.String {
				continue
			}
			texts = append(texts, body.String())
			if !gjson.Valid(body.String()) {
				continue
			}
			nested := gjson.Parse(body.String())
			for _, p := range nestedMessagePaths {
				if v := nested.Get(p); v.Type == gjson.String {
					texts = append(texts, v.String())
				}
			}
			for _, p := range nestedRequestIDPaths {
				if v := nested.Get(p); v.Type == gjson.String && requestID == "" {
					requestID = v.String()
				}
			}
		}
	}

	var matched string
	for _, text := range texts {
		if isTokenLimitText(text) {
			matched = text
			break
		}
	}
	if matched == "" {
		return nil, false
	}

	parsed := &ParsedTokenLimitError{
		ErrorType:  ErrorTypeTokenLimit,
		RequestID:  requestID,
		ProviderID: firstString(root, providerIDPaths),
		ModelID:    firstString(root, modelIDPaths),
	}
	parsed.CurrentTokens, parsed.MaxTokens = extractTokenCounts(texts)
	if parsed.RequestID == "" {
		for _, text := range texts {
			if id := requestIDPattern.FindString(text); id != "" {
				parsed.RequestID = id
				break
			}
		}
	}
	return parsed, true
}

func isTokenLimitText(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range tokenLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func extractTokenCounts(texts []string) (current, maximum int) {
	for _, text := range texts {
		if m := tokensOverMaxPattern.FindStringSubmatch(text); m != nil {
			return atoi(m[1]), atoi(m[2])
		}
		if m := maxThenActualPattern.FindStringSubmatch(text); m != nil {
			return atoi(m[2]), atoi(m[1])
		}
	}
	return 0, 0
}

func firstString(root gjson.Result, paths []string) string {
	for _, path := range paths {
		if v := root.Get(path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
