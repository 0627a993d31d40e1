package main

import (
	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
)

// seedDemo builds a small ship with a rotor-mounted arm and a few toolbar
// references, so a fresh server has something to select.
func seedDemo(w *grid.World) error {
	ship := w.NewGrid("demo ship")
	for x := 0; x < 6; x++ {
		if _, err := ship.PlaceAt(grid.KindArmor, host.Vec3i{X: x}); err != nil {
			return err
		}
	}
	timer, err := ship.PlaceAt(grid.KindTimer, host.Vec3i{Y: 1})
	if err != nil {
		return err
	}
	sensor, err := ship.PlaceAt(grid.KindSensor, host.Vec3i{X: 1, Y: 1})
	if err != nil {
		return err
	}
	base, err := ship.PlaceAt(grid.KindRotorBase, host.Vec3i{X: 4, Y: 1})
	if err != nil {
		return err
	}

	arm := w.NewGrid("demo arm")
	arm.Position = [3]float64{4, 2, 0}
	top, err := arm.PlaceAt(grid.KindRotorTop, host.Vec3i{X: 4, Y: 2})
	if err != nil {
		return err
	}
	light, err := arm.PlaceAt(grid.KindLight, host.Vec3i{X: 4, Y: 3})
	if err != nil {
		return err
	}
	if err := w.Attach(base, top); err != nil {
		return err
	}

	timer.Toolbar().Set(0, grid.Slot{Kind: grid.SlotBlock, Block: sensor.ID(), Action: "OnOff"})
	sensor.Toolbar().Set(0, grid.Slot{Kind: grid.SlotBlock, Block: light.ID(), Action: "Toggle"})
	return nil
}
