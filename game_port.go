// game_port.go - Game control adapter at port 201
//
// Four resistive axis timers and four button bits. Writing the port
// fires the one-shots; each axis bit then reads high until its timer,
// proportional to the stick position, runs down.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const gamePort = 0x201

// Cycle count per axis unit; position 0-255 maps onto the RC
// discharge range of roughly 24-1124 microseconds.
const gameCyclesPerUnit = 20

type GamePort struct {
	// Stick positions, 0-255 per axis, centered at 128.
	axes    [4]uint8
	buttons [4]bool

	// Remaining cycles until each axis one-shot clears.
	timers [4]uint32
}

func NewGamePort() *GamePort {
	g := &GamePort{}
	for i := range g.axes {
		g.axes[i] = 128
	}
	return g
}

func (g *GamePort) Ports() []uint16 {
	return []uint16{gamePort}
}

// SetAxis positions one axis (0-3), 0-255.
func (g *GamePort) SetAxis(axis int, value uint8) {
	g.axes[axis&3] = value
}

// SetButton presses or releases one button (0-3).
func (g *GamePort) SetButton(button int, down bool) {
	g.buttons[button&3] = down
}

func (g *GamePort) ReadU8(_ uint16, _ uint32) uint8 {
	var v uint8
	for i := 0; i < 4; i++ {
		if g.timers[i] > 0 {
			v |= 1 << i
		}
		if !g.buttons[i] { // buttons read active low
			v |= 1 << (4 + i)
		}
	}
	return v
}

func (g *GamePort) WriteU8(_ uint16, _ uint8, _ *SystemBus, _ uint32) {
	for i := range g.timers {
		g.timers[i] = (uint32(g.axes[i]) + 1) * gameCyclesPerUnit
	}
}

// Run discharges the axis one-shots.
func (g *GamePort) Run(sysTicks uint32, _ *SystemBus) {
	for i := range g.timers {
		if g.timers[i] > sysTicks {
			g.timers[i] -= sysTicks
		} else {
			g.timers[i] = 0
		}
	}
}
