// Package engine is the glue to the external VPN engine: the controller
// hooks that mutate it and the observable state cells it publishes.
package engine

import (
	"sync/atomic"

	"github.com/pars5555/tailbridge/internal/domain"
)

// State holds the engine's two independently-updated observable cells.
// The engine side stores; everyone else only loads. There is no cross-cell
// lock: readers of both cells may observe them at slightly different
// instants, which is the documented consistency model.
type State struct {
	prefs  atomic.Pointer[domain.Prefs]
	netmap atomic.Pointer[domain.NetMap]
}

// NewState creates empty state cells; both reads return nil until the
// engine publishes a value.
func NewState() *State {
	return &State{}
}

// SetPrefs publishes a new preferences snapshot.
func (s *State) SetPrefs(p *domain.Prefs) {
	s.prefs.Store(p)
}

// SetNetMap publishes a new network map snapshot.
func (s *State) SetNetMap(nm *domain.NetMap) {
	s.netmap.Store(nm)
}

// Prefs returns the last published preferences, or nil.
func (s *State) Prefs() *domain.Prefs {
	return s.prefs.Load()
}

// NetMap returns the last published network map, or nil.
func (s *State) NetMap() *domain.NetMap {
	return s.netmap.Load()
}

// Ensure State implements domain.EngineState.
var _ domain.EngineState = (*State)(nil)
