// Package control is the daemon's local HTTP surface. Producers such as a
// browser extension and the mirrorme CLI post action messages to
// /v1/messages and read /status.
package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/runnerr0/mirrorme/internal/background"
	"github.com/runnerr0/mirrorme/internal/behavior"
)

// Actions accepted by /v1/messages.
const (
	ActionStoreBehaviorData = "storeBehaviorData"
	ActionGetBehaviorData   = "getBehaviorData"
	ActionClearData         = "clearData"
	ActionToggleTracking    = "toggleTracking"
	ActionSetAuthToken      = "setAuthToken"
	ActionTabActivated      = "tabActivated"
	ActionTabUpdated        = "tabUpdated"
	ActionSyncNow           = "syncNow"
	ActionGetState          = "getState"
)

var ErrUnknownAction = errors.New("unknown action")

// Request is the wire form of a control message. Fields beyond Action are
// read according to the action.
type Request struct {
	Action  string          `json:"action"`
	Data    *behavior.Event `json:"data,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
	Token   *string         `json:"token,omitempty"`
	TabID   *int            `json:"tabId,omitempty"`
	URL     string          `json:"url,omitempty"`
}

// Reply is the wire form of a background.Response as seen by clients.
type Reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Message converts r into the coordinator message it names.
func (r Request) Message() (background.Message, error) {
	switch r.Action {
	case ActionStoreBehaviorData:
		if r.Data == nil {
			return nil, fmt.Errorf("%s: missing data", r.Action)
		}
		return background.StoreBehaviorData{Event: *r.Data}, nil
	case ActionGetBehaviorData:
		return background.GetBehaviorData{}, nil
	case ActionClearData:
		return background.ClearData{}, nil
	case ActionToggleTracking:
		if r.Enabled == nil {
			return nil, fmt.Errorf("%s: missing enabled", r.Action)
		}
		return background.ToggleTracking{Enabled: *r.Enabled}, nil
	case ActionSetAuthToken:
		return background.SetAuthToken{Token: r.Token}, nil
	case ActionTabActivated:
		if r.TabID == nil {
			return nil, fmt.Errorf("%s: missing tabId", r.Action)
		}
		return background.TabActivated{TabID: *r.TabID}, nil
	case ActionTabUpdated:
		if r.TabID == nil || r.URL == "" {
			return nil, fmt.Errorf("%s: missing tabId or url", r.Action)
		}
		return background.TabLoaded{TabID: *r.TabID, URL: r.URL}, nil
	case ActionSyncNow:
		return background.SyncNow{}, nil
	case ActionGetState:
		return background.GetState{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
}
