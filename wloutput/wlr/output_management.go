// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

const managerInterface = "zwlr_output_manager_v1"

// zwlr_output_manager_v1
const (
	managerCreateConfiguration = 0
	managerStop                = 1

	managerEventHead     = 0
	managerEventDone     = 1
	managerEventFinished = 2
)

// zwlr_output_head_v1
const (
	headRelease = 0

	headEventName         = 0
	headEventDescription  = 1
	headEventPhysicalSize = 2
	headEventMode         = 3
	headEventEnabled      = 4
	headEventCurrentMode  = 5
	headEventPosition     = 6
	headEventTransform    = 7
	headEventScale        = 8
	headEventFinished     = 9
	headEventMake         = 10
	headEventModel        = 11
	headEventSerialNumber = 12
	headEventAdaptiveSync = 13
)

const adaptiveSyncStateEnabled = 1

// zwlr_output_mode_v1
const (
	modeRelease = 0

	modeEventSize      = 0
	modeEventRefresh   = 1
	modeEventPreferred = 2
	modeEventFinished  = 3
)

// zwlr_output_configuration_v1
const (
	configurationEnableHead  = 0
	configurationDisableHead = 1
	configurationApply       = 2
	configurationTest        = 3
	configurationDestroy     = 4

	configurationEventSucceeded = 0
	configurationEventFailed    = 1
	configurationEventCancelled = 2
)

// zwlr_output_configuration_head_v1
const (
	configurationHeadSetMode         = 0
	configurationHeadSetCustomMode   = 1
	configurationHeadSetPosition     = 2
	configurationHeadSetTransform    = 3
	configurationHeadSetScale        = 4
	configurationHeadSetAdaptiveSync = 5
)

type OutputManagerListener interface {
	HandleHead(head *OutputHead)
	HandleDone(serial uint32)
	HandleFinished()
}

type OutputHeadListener interface {
	HandleHeadName(head *OutputHead, name string)
	HandleHeadDescription(head *OutputHead, description string)
	HandleHeadPhysicalSize(head *OutputHead, width, height int32)
	HandleHeadMode(head *OutputHead, mode *OutputMode)
	HandleHeadEnabled(head *OutputHead, enabled int32)
	HandleHeadCurrentMode(head *OutputHead, mode uint32)
	HandleHeadPosition(head *OutputHead, x, y int32)
	HandleHeadTransform(head *OutputHead, transform int32)
	HandleHeadScale(head *OutputHead, scale Fixed)
	HandleHeadMake(head *OutputHead, manufacturer string)
	HandleHeadModel(head *OutputHead, model string)
	HandleHeadSerialNumber(head *OutputHead, serial string)
	HandleHeadAdaptiveSync(head *OutputHead, state uint32)
	HandleHeadFinished(head *OutputHead)
}

type OutputModeListener interface {
	HandleModeSize(mode *OutputMode, width, height int32)
	HandleModeRefresh(mode *OutputMode, refresh int32)
	HandleModePreferred(mode *OutputMode)
	HandleModeFinished(mode *OutputMode)
}

type OutputConfigurationListener interface {
	HandleConfigurationSucceeded(cfg *OutputConfiguration)
	HandleConfigurationFailed(cfg *OutputConfiguration)
	HandleConfigurationCancelled(cfg *OutputConfiguration)
}

// OutputListener receives the events of the manager and of every object it
// creates.
type OutputListener interface {
	OutputManagerListener
	OutputHeadListener
	OutputModeListener
	OutputConfigurationListener
}

// OutputManager is a bound zwlr_output_manager_v1.
type OutputManager struct {
	BaseProxy
	version  uint32
	listener OutputListener
}

func NewOutputManager(version uint32, listener OutputListener) *OutputManager {
	return &OutputManager{version: version, listener: listener}
}

func (m *OutputManager) Version() uint32 {
	return m.version
}

func (m *OutputManager) CreateConfiguration(serial uint32) (*OutputConfiguration, error) {
	cfg := &OutputConfiguration{manager: m}
	m.Context().Register(cfg)
	if err := m.Context().SendRequest(m, managerCreateConfiguration, cfg, serial); err != nil {
		m.Context().Unregister(cfg)
		return nil, err
	}
	return cfg, nil
}

func (m *OutputManager) Stop() error {
	return m.Context().SendRequest(m, managerStop)
}

func (m *OutputManager) Dispatch(ev *Event) {
	switch ev.Opcode {
	case managerEventHead:
		if id := ev.Uint32(); ev.ok() {
			head := &OutputHead{manager: m}
			head.SetID(id)
			m.Context().Register(head)
			m.listener.HandleHead(head)
		}
	case managerEventDone:
		if serial := ev.Uint32(); ev.ok() {
			m.listener.HandleDone(serial)
		}
	case managerEventFinished:
		m.Context().Unregister(m)
		m.listener.HandleFinished()
	default:
		ev.unknown()
	}
}

// OutputHead is a zwlr_output_head_v1 announced by the manager.
type OutputHead struct {
	BaseProxy
	manager *OutputManager
}

// Release destroys the head once it is finished. Before version 3 there is
// no request for it and the head is only forgotten.
func (h *OutputHead) Release() error {
	defer h.Context().Unregister(h)
	if h.manager.version < 3 {
		return nil
	}
	return h.Context().SendRequest(h, headRelease)
}

func (h *OutputHead) Dispatch(ev *Event) {
	l := h.manager.listener
	switch ev.Opcode {
	case headEventName:
		if name := ev.String(); ev.ok() {
			l.HandleHeadName(h, name)
		}
	case headEventDescription:
		if description := ev.String(); ev.ok() {
			l.HandleHeadDescription(h, description)
		}
	case headEventPhysicalSize:
		if width, height := ev.Int32(), ev.Int32(); ev.ok() {
			l.HandleHeadPhysicalSize(h, width, height)
		}
	case headEventMode:
		if id := ev.Uint32(); ev.ok() {
			mode := &OutputMode{manager: h.manager}
			mode.SetID(id)
			h.Context().Register(mode)
			l.HandleHeadMode(h, mode)
		}
	case headEventEnabled:
		if enabled := ev.Int32(); ev.ok() {
			l.HandleHeadEnabled(h, enabled)
		}
	case headEventCurrentMode:
		if mode := ev.Uint32(); ev.ok() {
			l.HandleHeadCurrentMode(h, mode)
		}
	case headEventPosition:
		if x, y := ev.Int32(), ev.Int32(); ev.ok() {
			l.HandleHeadPosition(h, x, y)
		}
	case headEventTransform:
		if transform := ev.Int32(); ev.ok() {
			l.HandleHeadTransform(h, transform)
		}
	case headEventScale:
		if scale := ev.Fixed(); ev.ok() {
			l.HandleHeadScale(h, scale)
		}
	case headEventFinished:
		l.HandleHeadFinished(h)
	case headEventMake:
		if manufacturer := ev.String(); ev.ok() {
			l.HandleHeadMake(h, manufacturer)
		}
	case headEventModel:
		if model := ev.String(); ev.ok() {
			l.HandleHeadModel(h, model)
		}
	case headEventSerialNumber:
		if serial := ev.String(); ev.ok() {
			l.HandleHeadSerialNumber(h, serial)
		}
	case headEventAdaptiveSync:
		if state := ev.Uint32(); ev.ok() {
			l.HandleHeadAdaptiveSync(h, state)
		}
	default:
		ev.unknown()
	}
}

// OutputMode is a zwlr_output_mode_v1 announced by a head.
type OutputMode struct {
	BaseProxy
	manager *OutputManager
}

func (m *OutputMode) Release() error {
	defer m.Context().Unregister(m)
	if m.manager.version < 3 {
		return nil
	}
	return m.Context().SendRequest(m, modeRelease)
}

func (m *OutputMode) Dispatch(ev *Event) {
	l := m.manager.listener
	switch ev.Opcode {
	case modeEventSize:
		if width, height := ev.Int32(), ev.Int32(); ev.ok() {
			l.HandleModeSize(m, width, height)
		}
	case modeEventRefresh:
		if refresh := ev.Int32(); ev.ok() {
			l.HandleModeRefresh(m, refresh)
		}
	case modeEventPreferred:
		l.HandleModePreferred(m)
	case modeEventFinished:
		l.HandleModeFinished(m)
	default:
		ev.unknown()
	}
}

// OutputConfiguration is a pending zwlr_output_configuration_v1.
type OutputConfiguration struct {
	BaseProxy
	manager *OutputManager
}

func (c *OutputConfiguration) EnableHead(head *OutputHead) (*OutputConfigurationHead, error) {
	ch := &OutputConfigurationHead{manager: c.manager}
	c.Context().Register(ch)
	if err := c.Context().SendRequest(c, configurationEnableHead, ch, head); err != nil {
		c.Context().Unregister(ch)
		return nil, err
	}
	return ch, nil
}

func (c *OutputConfiguration) DisableHead(head *OutputHead) error {
	return c.Context().SendRequest(c, configurationDisableHead, head)
}

func (c *OutputConfiguration) Apply() error {
	return c.Context().SendRequest(c, configurationApply)
}

func (c *OutputConfiguration) Test() error {
	return c.Context().SendRequest(c, configurationTest)
}

func (c *OutputConfiguration) Destroy() error {
	defer c.Context().Unregister(c)
	return c.Context().SendRequest(c, configurationDestroy)
}

func (c *OutputConfiguration) Dispatch(ev *Event) {
	l := c.manager.listener
	switch ev.Opcode {
	case configurationEventSucceeded:
		l.HandleConfigurationSucceeded(c)
	case configurationEventFailed:
		l.HandleConfigurationFailed(c)
	case configurationEventCancelled:
		l.HandleConfigurationCancelled(c)
	default:
		ev.unknown()
	}
}

// OutputConfigurationHead carries the settings of one enabled head. It has
// no events.
type OutputConfigurationHead struct {
	BaseProxy
	manager *OutputManager
}

func (h *OutputConfigurationHead) SetMode(mode *OutputMode) error {
	return h.Context().SendRequest(h, configurationHeadSetMode, mode)
}

func (h *OutputConfigurationHead) SetCustomMode(width, height, refresh int32) error {
	return h.Context().SendRequest(h, configurationHeadSetCustomMode, width, height, refresh)
}

func (h *OutputConfigurationHead) SetPosition(x, y int32) error {
	return h.Context().SendRequest(h, configurationHeadSetPosition, x, y)
}

func (h *OutputConfigurationHead) SetTransform(transform int32) error {
	return h.Context().SendRequest(h, configurationHeadSetTransform, transform)
}

func (h *OutputConfigurationHead) SetScale(scale Fixed) error {
	return h.Context().SendRequest(h, configurationHeadSetScale, scale)
}

// SetAdaptiveSync needs version 4.
func (h *OutputConfigurationHead) SetAdaptiveSync(state uint32) error {
	return h.Context().SendRequest(h, configurationHeadSetAdaptiveSync, state)
}
