package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
	PlayerName        string   `json:"player_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	SelectedVersion string        `json:"selected_version,omitempty"`
	SessionID       string        `json:"session_id"`
	PlayerID        string        `json:"player_id"`
	WorldID         string        `json:"world_id"`
	TickRateHz      int           `json:"tick_rate_hz"`
	TuningDigest    string        `json:"tuning_digest,omitempty"`
	Options         PlayerOptions `json:"options"`
}

// PlayerOptions mirrors the settings a client needs to render prompts.
type PlayerOptions struct {
	DeleteConfirmation   bool `json:"delete_confirmation"`
	CutConfirmation      bool `json:"cut_confirmation"`
	RenameBlueprint      bool `json:"rename_blueprint"`
	HandleSubgrids       bool `json:"handle_subgrids"`
	DisablePlacementTest bool `json:"disable_placement_test"`
	ShowHints            bool `json:"show_hints"`
	ShowSize             bool `json:"show_size"`
}

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

type AimRef struct {
	GridID int64 `json:"grid_id"`
	Cell   Vec3i `json:"cell"`
}

// ViewRef is the camera frame: forward and up vectors in grid space.
type ViewRef struct {
	Forward [3]float64 `json:"forward"`
	Up      [3]float64 `json:"up"`
}

// INPUT (client -> server)
type InputMsg struct {
	Type      string   `json:"type"`
	Seq       uint64   `json:"seq"`
	Action    string   `json:"action"`
	Aim       *AimRef  `json:"aim,omitempty"`
	View      *ViewRef `json:"view,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Shrink    bool     `json:"shrink,omitempty"`
	Intersect bool     `json:"intersect,omitempty"`
	Force     bool     `json:"force,omitempty"`
	Name      string   `json:"name,omitempty"`
	Onto      bool     `json:"onto,omitempty"`
	Offset    *Vec3i   `json:"offset,omitempty"`
}

type BoxRef struct {
	Min Vec3i `json:"min"`
	Max Vec3i `json:"max"`
}

type OpRef struct {
	Kind       string `json:"kind"`
	GridID     int64  `json:"grid_id,omitempty"`
	Blocks     int    `json:"blocks"`
	Grids      int    `json:"grids"`
	References int    `json:"references,omitempty"`
	Repaired   int    `json:"repaired,omitempty"`
	Blueprint  string `json:"blueprint,omitempty"`
}

// STATE (server -> client), one per INPUT.
type StateMsg struct {
	Type    string   `json:"type"`
	Seq     uint64   `json:"seq"`
	State   string   `json:"state"`
	Handled bool     `json:"handled"`
	Notice  string   `json:"notice,omitempty"`
	Prompt  string   `json:"prompt,omitempty"`
	Box     *BoxRef  `json:"box,omitempty"`
	Size    string   `json:"size,omitempty"`
	Hints   []string `json:"hints,omitempty"`
	Op      *OpRef   `json:"op,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
