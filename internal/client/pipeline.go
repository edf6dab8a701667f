// ABOUTME: The two pure stages every API call passes through
// ABOUTME: Outbound attaches credential and request id; Classify maps failures onto the taxonomy

package client

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultLoginRejectPattern matches the server's wording for a bad
// username/password pair, in English and Chinese
const DefaultLoginRejectPattern = `(?i)(credential|username|password|用户名|密码)`

var defaultLoginReject = regexp.MustCompile(DefaultLoginRejectPattern)

// RequestIDHeader carries a per-call id the server can log
const RequestIDHeader = "X-Request-ID"

// Outbound prepares req for sending. An empty credential sends the request
// unauthenticated. It never fails.
func Outbound(req *http.Request, credential string) {
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

// Classify maps a failed response onto exactly one Class. status 0 means
// no response was received. A nil pattern uses DefaultLoginRejectPattern.
func Classify(status int, message string, loginReject *regexp.Regexp) Class {
	if loginReject == nil {
		loginReject = defaultLoginReject
	}
	switch {
	case status == 0:
		return ClassNetworkError
	case status == http.StatusUnauthorized:
		if message != "" && loginReject.MatchString(message) {
			return ClassLoginRejected
		}
		return ClassSessionExpired
	case status == http.StatusForbidden:
		return ClassForbidden
	case status == http.StatusNotFound:
		return ClassNotFound
	case status >= 500:
		return ClassServerError
	default:
		return ClassClientError
	}
}

// errorBody covers the error shapes the server and its proxies produce
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// validationIssue is one entry of a request validation failure list
type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// ExtractMessage pulls the server-supplied message out of an error body.
// detail wins, then message, then error. A non-JSON body yields "".
func ExtractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if msg := detailMessage(eb.Detail); msg != "" {
		return msg
	}
	if eb.Message != "" {
		return eb.Message
	}
	return eb.Error
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var issues []validationIssue
	if err := json.Unmarshal(raw, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if issue.Msg != "" {
				msgs = append(msgs, issue.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
