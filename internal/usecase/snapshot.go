package usecase

import (
	"github.com/pars5555/tailbridge/internal/domain"
)

// UnknownExitNodeName is used when the selected exit node has no
// corresponding peer in the network map (e.g., map not loaded yet).
const UnknownExitNodeName = "unknown"

// SnapshotReader projects the engine's current preferences and network map
// into exit-node descriptors. The two cells are read independently, so a
// descriptor may join values observed at slightly different instants.
type SnapshotReader struct {
	state domain.EngineState
}

// NewSnapshotReader creates a reader over the engine's state cells.
func NewSnapshotReader(state domain.EngineState) *SnapshotReader {
	return &SnapshotReader{state: state}
}

// CurrentExitNode returns the selected exit node, or ok=false when no node
// is selected. Absence is a normal outcome, not an error.
func (r *SnapshotReader) CurrentExitNode() (*domain.ExitNodeDescriptor, bool) {
	prefs := r.state.Prefs()
	if prefs == nil || prefs.ExitNodeID == "" {
		return nil, false
	}

	desc := &domain.ExitNodeDescriptor{
		ID:             prefs.ExitNodeID,
		DisplayName:    UnknownExitNodeName,
		AllowLANAccess: prefs.ExitNodeAllowLANAccess,
	}

	if nm := r.state.NetMap(); nm != nil {
		for _, peer := range nm.Peers {
			if peer.ID == prefs.ExitNodeID {
				desc.DisplayName = peer.HostName
				break
			}
		}
	}

	return desc, true
}
