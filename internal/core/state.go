package core

import (
	"maps"

	"github.com/nerrad567/scopelink-core/internal/notice"
	"github.com/nerrad567/scopelink-core/internal/observation"
	"github.com/nerrad567/scopelink-core/internal/session"
	"github.com/nerrad567/scopelink-core/internal/store"
)

// SetUIValue stores one control value in a UI scope and persists the scope.
func (m *Manager) SetUIValue(scope, key string, value any) {
	m.uiMu.Lock()
	bag := m.ui[scope].Clone()
	bag[key] = value
	m.ui[scope] = bag
	m.uiMu.Unlock()

	m.persist(store.NamespaceUI, scope, bag)
	m.publish(ChannelControls, m.Controls())
}

// UIState returns a copy of a UI scope. Unknown scopes are empty.
func (m *Manager) UIState(scope string) store.UIState {
	m.uiMu.Lock()
	defer m.uiMu.Unlock()
	return m.ui[scope].Clone()
}

// Controls returns the scenery flag and every UI scope.
func (m *Manager) Controls() Controls {
	m.uiMu.Lock()
	defer m.uiMu.Unlock()
	ui := make(map[string]store.UIState, len(m.ui))
	for scope, bag := range m.ui {
		ui[scope] = bag.Clone()
	}
	return Controls{SceneryMode: m.scenery, UI: ui}
}

func (m *Manager) cameraSettings() map[string]any {
	return maps.Clone(map[string]any(m.UIState(ScopeCamera)))
}

// StartSession begins an observing session.
func (m *Manager) StartSession(loc session.Location, equipment []string) (session.Session, error) {
	return m.sessions.Start(loc, equipment)
}

// PauseSession stops the session timer.
func (m *Manager) PauseSession() error { return m.sessions.Pause() }

// ResumeSession restarts the session timer.
func (m *Manager) ResumeSession() error { return m.sessions.Resume() }

// EndSession ends the active session.
func (m *Manager) EndSession() (session.Session, error) {
	s, err := m.sessions.End()
	if err == nil {
		m.notices.Push(notice.KindInfo, notice.LevelInfo, "Session saved")
	}
	return s, err
}

// SaveObservation records the draft observation. ok is false when no
// target is set.
func (m *Manager) SaveObservation() (observation.Entry, bool) {
	return m.recorder.Save()
}

// DeleteObservation removes an observation by id.
func (m *Manager) DeleteObservation(id string) error {
	return m.recorder.Delete(id)
}

// persist queues a write. Only encoding and closed-queue errors surface
// here; write failures arrive through onPersistError.
func (m *Manager) persist(namespace, key string, v any) {
	if err := m.mirror.Put(namespace, key, v); err != nil {
		m.logger.Warn("state not persisted", "namespace", namespace, "key", key, "error", err)
	}
}

func (m *Manager) onPersistError(namespace, key string, err error) {
	m.logger.Error("persisting state failed", "namespace", namespace, "key", key, "error", err)
	m.notices.Push(notice.KindPersistence, notice.LevelWarning, "Changes could not be saved; they are kept for this session")
}

func (m *Manager) validationNotice(err error) {
	m.logger.Warn("discarding invalid persisted data", "error", err)
	m.notices.Push(notice.KindValidation, notice.LevelWarning, "Some saved data was invalid and has been reset")
}
