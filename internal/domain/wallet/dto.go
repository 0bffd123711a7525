// internal/domain/wallet/dto.go
package wallet

import "time"

// RegisterDeviceRequest is the body Apple devices POST when registering a pass.
type RegisterDeviceRequest struct {
	PushToken string `json:"pushToken" binding:"required"`
}

// SerialNumbersResponse follows the PassKit web service "changed passes" shape.
type SerialNumbersResponse struct {
	SerialNumbers []string `json:"serialNumbers"`
	LastUpdated   string   `json:"lastUpdated"`
}

type LogRequest struct {
	Logs []string `json:"logs"`
}

// ChangedSerials is the result of a "changes since tag" query.
type ChangedSerials struct {
	SerialNumbers []string
	LastUpdated   int64
}

type QueueListFilters struct {
	Status   *QueueStatus `form:"status"`
	Platform *Platform    `form:"platform"`
	PassID   string       `form:"pass_id"`
	Page     int          `form:"page"`
	PageSize int          `form:"page_size"`
}

type QueueListResponse struct {
	Items      []QueueItem `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// BatchResult summarises one processor invocation.
type BatchResult struct {
	Claimed   int           `json:"claimed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Dead      int           `json:"dead"`
	Retried   int           `json:"retried"`
	Coalesced int           `json:"coalesced"`
	Requeued  int64         `json:"requeued_stale"`
	Duration  time.Duration `json:"duration"`
}

// IssuedPass is returned when a pass is issued for a customer card.
type IssuedPass struct {
	Pass        *Pass       `json:"pass"`
	SaveURL     string      `json:"save_url,omitempty"`
	ManifestURL string      `json:"manifest_url,omitempty"`
	Document    interface{} `json:"document,omitempty"`

	// AuthenticationToken lets PWA clients subscribe to live updates.
	AuthenticationToken string `json:"authentication_token,omitempty"`
}
