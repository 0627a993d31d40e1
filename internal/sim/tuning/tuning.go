package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	// RestoreBatchLimit caps grids restored per tick; 0 means no cap.
	RestoreBatchLimit  int `yaml:"restore_batch_limit"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Sections Sections `yaml:"sections"`
}

// Sections are the player-facing options of the box selector.
type Sections struct {
	Subdirectory         string `yaml:"sections_subdirectory"`
	DeleteConfirmation   bool   `yaml:"delete_confirmation"`
	CutConfirmation      bool   `yaml:"cut_confirmation"`
	RenameBlueprint      bool   `yaml:"rename_blueprint"`
	HandleSubgrids       bool   `yaml:"handle_subgrids"`
	DisablePlacementTest bool   `yaml:"disable_placement_test"`
	ShowHints            bool   `yaml:"show_hints"`
	ShowSize             bool   `yaml:"show_size"`
	// FixPastePosition anchors new-grid pastes at the origin block, the
	// first block of the main grid, instead of at the grid's own origin.
	FixPastePosition bool `yaml:"fix_paste_position"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         60,
		SnapshotEveryTicks: 60 * 60 * 5,
		Sections: Sections{
			Subdirectory:       "Sections",
			DeleteConfirmation: true,
			CutConfirmation:    false,
			RenameBlueprint:    true,
			HandleSubgrids:     true,
			ShowHints:          true,
			ShowSize:           true,
			FixPastePosition:   true,
		},
	}
}

// Load reads path over Defaults, so a partial file only overrides the keys
// it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.RestoreBatchLimit < 0 {
		return fmt.Errorf("restore_batch_limit must be >= 0: %d", t.RestoreBatchLimit)
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0: %d", t.SnapshotEveryTicks)
	}
	return nil
}

// Digest identifies the applied settings; clients compare it across
// reconnects.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
