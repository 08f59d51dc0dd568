// Package lifecycle models custom-resource lifecycle events and responses,
// and validates the event's property bag into a typed deploy target.
package lifecycle

import (
	"fmt"
	"sort"

	"github.com/aws/aws-lambda-go/cfn"
)

// RequestType is the lifecycle operation requested by the orchestration system.
type RequestType string

const (
	Create RequestType = "Create"
	Update RequestType = "Update"
	Delete RequestType = "Delete"
)

// Deploys reports whether the request type runs a deploy.
func (r RequestType) Deploys() bool {
	return r == Create || r == Update
}

// Known reports whether the request type is one the handler recognizes.
func (r RequestType) Known() bool {
	return r == Create || r == Update || r == Delete
}

// Status is the terminal state reported back to the orchestration system.
type Status string

const (
	Success Status = "SUCCESS"
	Failed  Status = "FAILED"
)

// Property names accepted in ResourceProperties. Older templates use
// S3Bucket and CloudfrontDistribution; both spellings are honored.
const (
	PropObjectStoreID          = "ObjectStoreId"
	PropCDNDistributionID      = "CdnDistributionId"
	PropLegacyS3Bucket         = "S3Bucket"
	PropLegacyCloudfrontDistro = "CloudfrontDistribution"
)

// Target identifies where a deploy goes. An empty field means absent and the
// corresponding step is skipped.
type Target struct {
	ObjectStoreID     string
	CDNDistributionID string
}

// HasObjectStore reports whether assets should be uploaded.
func (t Target) HasObjectStore() bool { return t.ObjectStoreID != "" }

// HasCDN reports whether a CDN invalidation should follow the upload.
// A distribution id is only meaningful together with an object store.
func (t Target) HasCDN() bool { return t.HasObjectStore() && t.CDNDistributionID != "" }

// Event is a validated lifecycle event. Produced once per infrastructure
// change and consumed exactly once.
type Event struct {
	RequestType        RequestType
	RequestID          string
	StackID            string
	LogicalResourceID  string
	PhysicalResourceID string
	ResponseURL        string
	Target             Target
}

// FromCFN converts the wire event into a validated Event. Malformed
// properties never fail conversion: they are dropped and described in the
// returned problems so the caller can log them. Missing identifiers mean
// "nothing to deploy".
//
//	ev, problems := lifecycle.FromCFN(raw)
//	for _, p := range problems { logger.Warn("ignoring property", "problem", p) }
func FromCFN(raw cfn.Event) (Event, []string) {
	target, problems := ParseTarget(raw.ResourceProperties)
	return Event{
		RequestType:        RequestType(raw.RequestType),
		RequestID:          raw.RequestID,
		StackID:            raw.StackID,
		LogicalResourceID:  raw.LogicalResourceID,
		PhysicalResourceID: raw.PhysicalResourceID,
		ResponseURL:        raw.ResponseURL,
		Target:             target,
	}, problems
}

// ParseTarget extracts the deploy target from an untyped property bag.
// Current property names win over legacy ones when both are set.
// Non-string values are treated as absent and reported as problems.
//
//	t, _ := lifecycle.ParseTarget(map[string]interface{}{"ObjectStoreId": "site-bucket"})
//	// t.ObjectStoreID == "site-bucket"
func ParseTarget(props map[string]interface{}) (Target, []string) {
	var problems []string
	pick := func(names ...string) string {
		for _, name := range names {
			v, ok := props[name]
			if !ok || v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: expected string, got %T", name, v))
				continue
			}
			if s != "" {
				return s
			}
		}
		return ""
	}

	t := Target{
		ObjectStoreID:     pick(PropObjectStoreID, PropLegacyS3Bucket),
		CDNDistributionID: pick(PropCDNDistributionID, PropLegacyCloudfrontDistro),
	}
	sort.Strings(problems)
	return t, problems
}
