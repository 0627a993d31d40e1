package grid

import "sections.ai/internal/sim/host"

type Kind string

const (
	KindArmor Kind = "ARMOR"

	KindRotorBase  Kind = "ROTOR_BASE"
	KindRotorTop   Kind = "ROTOR_TOP"
	KindHingeBase  Kind = "HINGE_BASE"
	KindHingeTop   Kind = "HINGE_TOP"
	KindPistonBase Kind = "PISTON_BASE"
	KindPistonTop  Kind = "PISTON_TOP"

	KindLight  Kind = "LIGHT"
	KindDoor   Kind = "DOOR"
	KindCamera Kind = "CAMERA"
	KindGun    Kind = "GUN"

	KindTimer            Kind = "TIMER"
	KindSensor           Kind = "SENSOR"
	KindButtonPanel      Kind = "BUTTON_PANEL"
	KindCockpit          Kind = "COCKPIT"
	KindFlightMovement   Kind = "FLIGHT_MOVEMENT"
	KindRemoteControl    Kind = "REMOTE_CONTROL"
	KindEventController  Kind = "EVENT_CONTROLLER"
	KindTurretController Kind = "TURRET_CONTROLLER"
	KindAIRecorder       Kind = "AI_RECORDER"
)

// Toolbar geometry: 9 slots per page, 9 pages.
const (
	ToolbarSlotsPerPage = 9
	ToolbarPages        = 9
	ToolbarSlots        = ToolbarSlotsPerPage * ToolbarPages
)

const (
	BindingCamera    = "Camera"
	BindingAzimuth   = "Azimuth"
	BindingElevation = "Elevation"
)

// KindInfo describes what a block kind carries.
type KindInfo struct {
	Terminal  bool
	Role      host.Role
	Toolbar   bool
	Bindings  []string
	Selection bool
	Tools     bool
	Waypoints bool
	Buttons   int
}

var kinds = map[Kind]KindInfo{
	KindArmor: {},

	KindRotorBase:  {Terminal: true, Role: host.RoleBase},
	KindRotorTop:   {Role: host.RoleTop},
	KindHingeBase:  {Terminal: true, Role: host.RoleBase},
	KindHingeTop:   {Role: host.RoleTop},
	KindPistonBase: {Terminal: true, Role: host.RoleBase},
	KindPistonTop:  {Role: host.RoleTop},

	KindLight:  {Terminal: true},
	KindDoor:   {Terminal: true},
	KindCamera: {Terminal: true},
	KindGun:    {Terminal: true},

	KindTimer:            {Terminal: true, Toolbar: true},
	KindSensor:           {Terminal: true, Toolbar: true},
	KindButtonPanel:      {Terminal: true, Toolbar: true, Buttons: 4},
	KindCockpit:          {Terminal: true, Toolbar: true},
	KindFlightMovement:   {Terminal: true, Toolbar: true},
	KindRemoteControl:    {Terminal: true, Toolbar: true, Bindings: []string{BindingCamera}},
	KindEventController:  {Terminal: true, Toolbar: true, Selection: true},
	KindTurretController: {Terminal: true, Toolbar: true, Bindings: []string{BindingAzimuth, BindingElevation, BindingCamera}, Tools: true},
	KindAIRecorder:       {Terminal: true, Waypoints: true},
}

func Info(k Kind) (KindInfo, bool) {
	info, ok := kinds[k]
	return info, ok
}
