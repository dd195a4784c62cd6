package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// OpStatusLive is the operational status of appliances expected to be responsive.
const OpStatusLive = "LIVE"

// Appliance is a snapshot of one managed appliance as reported by the inventory API
type Appliance struct {
	ID              string  `json:"id"`
	OpStatus        string  `json:"opStatus"`
	LastHeardFromOn *string `json:"lastHeardFromOn,omitempty"` // ISO-8601 instant
}

// OperationType identifies which remediation step produced an Operation
type OperationType string

const (
	OperationTypeDrain     OperationType = "DRAIN"
	OperationTypeRemediate OperationType = "REMEDIATE"
)

// Operation records one successfully completed remote step
type Operation struct {
	ID                   uint64        `json:"id"`
	ApplianceID          string        `json:"applianceId"`
	OperationType        OperationType `json:"operationType"`
	ProcessedAt          time.Time     `json:"processedAt"`
	DrainID              string        `json:"drainId,omitempty"`
	EstimatedTimeToDrain string        `json:"estimatedTimeToDrain,omitempty"`
	RemediationID        string        `json:"remediationId,omitempty"`
	RemediationResult    string        `json:"remediationResult,omitempty"`
}

// AppliancePage is one page of the inventory listing
type AppliancePage struct {
	Data     []Appliance `json:"data"`
	PageInfo *PageInfo   `json:"pageInfo"`
}

// PageInfo carries the pagination cursor for the next page
type PageInfo struct {
	TotalCount  *int    `json:"totalCount,omitempty"`
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor,omitempty"`
}

// NextCursor returns the cursor for the following page, or "" when there is none
func (p *PageInfo) NextCursor() string {
	if p == nil || p.EndCursor == nil {
		return ""
	}
	return *p.EndCursor
}

// ActionRequest is the body sent with drain and remediate calls
type ActionRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// DrainResult is the response of a successful drain call
type DrainResult struct {
	DrainID              FlexibleID `json:"drainId"`
	EstimatedTimeToDrain string     `json:"estimatedTimeToDrain"` // ISO-8601 duration
}

// RemediateResult is the response of a successful remediate call
type RemediateResult struct {
	RemediationID     FlexibleID `json:"remediationId"`
	RemediationResult string     `json:"remediationResult"`
}

// FlexibleID is an identifier the API may encode as a JSON number or string.
type FlexibleID string

// UnmarshalJSON accepts numbers, strings and null.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid identifier %s: %w", data, err)
	}
	*f = FlexibleID(n.String())
	return nil
}

// String returns the identifier text
func (f FlexibleID) String() string {
	return string(f)
}
