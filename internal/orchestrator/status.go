package orchestrator

import (
	"sort"

	"github.com/GriffinCanCode/subtrans/internal/keyring"
	"github.com/GriffinCanCode/subtrans/internal/screen"
)

// Status is a point-in-time view of the controller.
type Status struct {
	Provider  string               `json:"provider"`
	Chain     string               `json:"chain,omitempty"`
	Available bool                 `json:"available"`
	Monitors  []MonitorStatus      `json:"monitors"`
	Pending   int                  `json:"pending"`
	Queued    int                  `json:"queued"`
	Workers   int                  `json:"workers"`
	LastText  string               `json:"last_text,omitempty"`
	Keys      map[string]KeyStatus `json:"keys"`
	Breakers  map[string]string    `json:"breakers,omitempty"`
}

// MonitorStatus describes one monitor session.
type MonitorStatus struct {
	Handle string        `json:"handle"`
	Region screen.Region `json:"region"`
	State  string        `json:"state"`
	Paused bool          `json:"paused"`
}

// KeyStatus summarises a provider's key pool. Keys are masked.
type KeyStatus struct {
	Total       int    `json:"total"`
	CoolingDown int    `json:"cooling_down"`
	Current     string `json:"current,omitempty"`
}

// Status reports the active provider, key pools and monitor sessions.
func (m *Manager) Status() Status {
	cfg := m.store.Snapshot()
	st := Status{
		Provider: cfg.Provider,
		Pending:  m.presenter.Pending(),
		Queued:   m.dispatcher.Queued(),
		Workers:  m.dispatcher.Workers(),
		LastText: m.presenter.LastText(),
		Keys:     make(map[string]KeyStatus),
		Monitors: []MonitorStatus{},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chain != nil {
		st.Chain = m.chain.Name()
		st.Available = true
		st.Breakers = make(map[string]string)
		for name, state := range m.chain.Breakers() {
			st.Breakers[name] = state.String()
		}
	}
	for name, km := range m.keyrings {
		pool := km.Pool()
		st.Keys[name] = KeyStatus{
			Total:       pool.Len(),
			CoolingDown: pool.CoolingDown(),
			Current:     keyring.Mask(pool.Current()),
		}
	}
	for handle, mon := range m.monitors {
		st.Monitors = append(st.Monitors, MonitorStatus{
			Handle: handle,
			Region: mon.Region(),
			State:  mon.State().String(),
			Paused: mon.Paused(),
		})
	}
	sort.Slice(st.Monitors, func(i, j int) bool { return st.Monitors[i].Handle < st.Monitors[j].Handle })
	return st
}
