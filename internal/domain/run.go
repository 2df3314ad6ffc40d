package domain

import "time"

// RunRecord journal entry describing one rebalancing run.
// Decimal values are kept as strings to avoid float precision loss.
type RunRecord struct {
	Timestamp      time.Time         `json:"ts"`
	Platform       string            `json:"platform"`
	Quote          string            `json:"quote"`
	Mode           string            `json:"mode"`
	TotalValue     string            `json:"total_value"`
	MaxError       string            `json:"max_error"`
	RMSError       string            `json:"rms_error"`
	NeedsBalancing bool              `json:"needs_balancing"`
	Allocation     map[string]string `json:"allocation,omitempty"`
	Untradeable    string            `json:"untradeable,omitempty"`
	Unroutable     []string          `json:"unroutable,omitempty"`
	Orders         []string          `json:"orders,omitempty"`
	Submitted      []string          `json:"submitted,omitempty"`
	Failed         []string          `json:"failed,omitempty"`
	TotalFee       string            `json:"total_fee,omitempty"`
	Executed       bool              `json:"executed"`
	Interrupted    bool              `json:"interrupted,omitempty"`
}

// RunRecordEntry bundles a run record with its journal index.
type RunRecordEntry struct {
	Index  uint64
	Record RunRecord
}
