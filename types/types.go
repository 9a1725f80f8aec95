package types

import (
	"encoding/json"
	"time"
)

// Source tags carried on every envelope crossing the page boundary.
const (
	SourcePage  = "page-origin"
	SourceRelay = "relay-origin"
)

// Envelope types for the page <-> relay hop.
const (
	MsgWalletRequest      = "WALLET_REQUEST"
	MsgWalletResponse     = "WALLET_RESPONSE"
	MsgReadinessCheck     = "READINESS_CHECK"
	MsgReadinessConfirmed = "READINESS_CONFIRMED"
	MsgAnnounceProvider   = "ANNOUNCE_PROVIDER"
	MsgRequestProvider    = "REQUEST_PROVIDER"
)

// Envelope is the message exchanged between the page-side provider and the
// relay. Responses are matched to requests by RequestID only, delivery order
// carries no meaning.
type Envelope struct {
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	RequestID   int64           `json:"requestId"`
	RequestInfo *RequestInfo    `json:"requestInfo,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *Error          `json:"error,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
}

// RequestInfo describes one wallet request together with the metadata the
// approval surface shows to the user.
type RequestInfo struct {
	ID           string            `json:"id"`
	Method       string            `json:"method"`
	Params       []json.RawMessage `json:"params"`
	Chain        string            `json:"chain"`
	NetworkID    string            `json:"networkId,omitempty"`
	SiteURL      string            `json:"siteUrl,omitempty"`
	ScriptSource string            `json:"scriptSource,omitempty"`
	Version      string            `json:"version,omitempty"`
	RequestTime  time.Time         `json:"requestTime,omitempty"`
	Referrer     string            `json:"referrer,omitempty"`
	Href         string            `json:"href,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty"`
	Platform     string            `json:"platform,omitempty"`
	Language     string            `json:"language,omitempty"`
}

// ProviderInfo identifies this provider to pages enumerating installed
// wallets via discovery events.
type ProviderInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	RDNS string `json:"rdns"`
}
