// Package response builds the lifecycle response payload sent to the
// orchestration system's callback URL.
package response

import (
	"unicode/utf8"

	"github.com/gurre/sitedeploy-go/logic/lifecycle"
)

// reasonPrefix points operators at the invocation's own log stream.
const reasonPrefix = "See the details in CloudWatch Log Stream: "

// maxErrorLen bounds the error text embedded in a FAILED reason. The
// orchestration system truncates long reasons and the log stream has the rest.
const maxErrorLen = 256

// Build creates the Response for an event.
//
// The physical resource id is the first non-empty of: physicalResourceID
// (the build's content hash), the id already on the event, the log stream
// name, and the logical resource id. Keeping it stable across Create and
// Update stops the orchestration system from treating an update as a
// replacement. A nil data map is sent as an empty object.
//
//	resp := response.Build(ev, lifecycle.Success, map[string]string{"Message": "Deploy successful"}, hash, stream, nil)
func Build(ev lifecycle.Event, status lifecycle.Status, data map[string]string, physicalResourceID, logStream string, cause error) lifecycle.Response {
	if data == nil {
		data = map[string]string{}
	}
	return lifecycle.Response{
		Status:             status,
		Reason:             reason(status, logStream, cause),
		PhysicalResourceID: firstNonEmpty(physicalResourceID, ev.PhysicalResourceID, logStream, ev.LogicalResourceID),
		StackID:            ev.StackID,
		RequestID:          ev.RequestID,
		LogicalResourceID:  ev.LogicalResourceID,
		NoEcho:             false,
		Data:               data,
	}
}

// Success creates a SUCCESS response.
//
//	resp := response.Success(ev, data, hash, stream)
func Success(ev lifecycle.Event, data map[string]string, physicalResourceID, logStream string) lifecycle.Response {
	return Build(ev, lifecycle.Success, data, physicalResourceID, logStream, nil)
}

// Failure creates a FAILED response whose reason carries a short form of cause.
//
//	resp := response.Failure(ev, err, hash, stream)
func Failure(ev lifecycle.Event, cause error, physicalResourceID, logStream string) lifecycle.Response {
	return Build(ev, lifecycle.Failed, nil, physicalResourceID, logStream, cause)
}

func reason(status lifecycle.Status, logStream string, cause error) string {
	r := reasonPrefix + logStream
	if status != lifecycle.Failed || cause == nil {
		return r
	}
	return truncate(cause.Error(), maxErrorLen) + ". " + r
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence,
// marking the cut with "...".
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
