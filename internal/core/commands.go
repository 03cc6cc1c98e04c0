package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/scopelink-core/internal/command"
	"github.com/nerrad567/scopelink-core/internal/notice"
)

// Move nudges the mount in dir; command.Stop halts it.
func (m *Manager) Move(ctx context.Context, dir command.Direction) (*command.Result, error) {
	res, err := m.disp.Move(ctx, dir)
	m.commandNotice(command.KindMove, err)
	return res, err
}

// AdjustFocus steps the focuser.
func (m *Manager) AdjustFocus(ctx context.Context, dir command.FocusDirection) (*command.Result, error) {
	res, err := m.disp.AdjustFocus(ctx, dir)
	m.commandNotice(command.KindFocus, err)
	return res, err
}

// Park sends the mount home.
func (m *Manager) Park(ctx context.Context) (*command.Result, error) {
	res, err := m.disp.Park(ctx)
	m.commandNotice(command.KindPark, err)
	return res, err
}

// GotoTarget slews to a target. Leaving scenery mode is implied.
func (m *Manager) GotoTarget(ctx context.Context, req command.GotoRequest) (*command.Result, error) {
	res, err := m.disp.GotoTarget(ctx, req)
	m.commandNotice(command.KindGoto, err)
	if err == nil || command.IsInconclusive(err) {
		m.setScenery(false)
	}
	return res, err
}

// SetSceneryMode switches scenery mode. Enabling is optimistic: the flag
// flips before the device answers and flips back if it refuses or the
// command fails. It stays set when the outcome is unknown, including a
// caller that stopped waiting after the command went out. The device has no command to leave scenery mode, so
// disabling only clears the flag.
func (m *Manager) SetSceneryMode(ctx context.Context, enabled bool) error {
	if !enabled {
		m.setScenery(false)
		return nil
	}

	m.uiMu.Lock()
	prev := m.scenery
	m.uiMu.Unlock()

	err := command.Optimistic(ctx,
		func() { m.setScenery(true) },
		func() { m.setScenery(prev) },
		func(ctx context.Context) error {
			_, err := m.disp.EnableSceneryMode(ctx)
			return err
		},
	)
	m.commandNotice(command.KindScenery, err)
	return err
}

// SceneryMode reports the scenery mode flag.
func (m *Manager) SceneryMode() bool {
	m.uiMu.Lock()
	defer m.uiMu.Unlock()
	return m.scenery
}

func (m *Manager) setScenery(on bool) {
	m.uiMu.Lock()
	changed := m.scenery != on
	m.scenery = on
	m.uiMu.Unlock()
	if changed {
		m.publish(ChannelControls, m.Controls())
	}
}

// commandNotice raises the notice a failed command deserves. Precondition
// and argument errors are left to the caller.
func (m *Manager) commandNotice(kind string, err error) {
	var rejected *command.RejectedError
	switch {
	case err == nil:
	case errors.Is(err, command.ErrAbandoned):
		// The caller went away; nobody is left to tell.
	case command.IsInconclusive(err):
		m.notices.Push(notice.KindTimeout, notice.LevelWarning,
			fmt.Sprintf("No response to %s in time; it may still complete", kind))
	case errors.As(err, &rejected):
		m.notices.Push(notice.KindRejection, notice.LevelError, rejected.Message)
	case errors.Is(err, command.ErrConnectionLost), errors.Is(err, command.ErrSendFailed):
		m.notices.Push(notice.KindConnection, notice.LevelError,
			fmt.Sprintf("%s was not delivered: %v", kind, err))
	}
}
