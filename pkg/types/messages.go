// Package types defines the wire contract between the server and
// subscribed clients, plus the client-side token format.
package types

import "github.com/guildops/rosterlive/pkg/roster"

// Client -> Server command frames. Type mirrors roster.CommandType.
type ClientMessage struct {
	Type       string   `json:"type"`
	Member     string   `json:"member,omitempty"`
	Weapons    []string `json:"weapons,omitempty"`
	EntryIndex int      `json:"entry_index,omitempty"`
	Field      string   `json:"field,omitempty"`
	Value      string   `json:"value,omitempty"`
	Name       string   `json:"name,omitempty"`
}

const (
	MsgSnapshot = "Snapshot"
	MsgError    = "Error"
)

// Server -> Client frames. A Snapshot replaces the client's view state
// wholesale; an Error is addressed to the issuing connection only.
type ServerMessage struct {
	Type     string           `json:"type"`
	Version  uint64           `json:"version"`
	Document *roster.Document `json:"document,omitempty"`
	Members  []roster.Member  `json:"members,omitempty"`
	Code     string           `json:"code,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// SharedRosterResponse is the HTTP point-read shape: the normalized
// document plus the derived fields a UI needs without recomputing them.
type SharedRosterResponse struct {
	Document      roster.Document  `json:"document"`
	Members       []roster.Member  `json:"members"`
	Locked        bool             `json:"locked"`
	LockState     roster.LockState `json:"lockState"`
	DisarrayLevel int              `json:"disarrayLevel"`
	PartyCount    int              `json:"partyCount"`
	CellStates    []string         `json:"cellStates"`
	Stale         []bool           `json:"stale"`
}
