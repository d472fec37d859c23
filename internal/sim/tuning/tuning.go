// Package tuning holds every knob the simulation and the session layer read.
// A loaded Tuning is immutable for the lifetime of one World or session.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TPS int `yaml:"tps"`

	World      World      `yaml:"world"`
	Camera     Camera     `yaml:"camera"`
	Difficulty Difficulty `yaml:"difficulty"`
	Player     Player     `yaml:"player"`
	Powerups   Powerups   `yaml:"powerups"`
	Input      Input      `yaml:"input"`
	Net        Net        `yaml:"net"`
}

type World struct {
	Width          float64 `yaml:"width"`
	PlatformWidth  float64 `yaml:"platform_width"`
	PlatformHeight float64 `yaml:"platform_height"`
	Gravity        float64 `yaml:"gravity"`
	JumpVy         float64 `yaml:"jump_vy"`
	SpringVy       float64 `yaml:"spring_vy"`
	JetpackVy      float64 `yaml:"jetpack_vy"`
	MaxVx          float64 `yaml:"max_vx"`
	Accel          float64 `yaml:"accel"`
	Friction       float64 `yaml:"friction"`
}

type Camera struct {
	VerticalOffset float64 `yaml:"vertical_offset"`
	CullMargin     float64 `yaml:"cull_margin"`
	SpawnAhead     float64 `yaml:"spawn_ahead"`
}

type Difficulty struct {
	// Gap sizes and spawn chances are lerped between the Start and End
	// values as the difficulty factor rises from 0 to 1.
	GapMinStart       float64 `yaml:"gap_min_start"`
	GapMinEnd         float64 `yaml:"gap_min_end"`
	GapMaxStart       float64 `yaml:"gap_max_start"`
	GapMaxEnd         float64 `yaml:"gap_max_end"`
	SpringChanceStart float64 `yaml:"spring_chance_start"`
	SpringChanceEnd   float64 `yaml:"spring_chance_end"`
	JetpackChance     float64 `yaml:"jetpack_chance"`
	// CeilingHeight is where the difficulty factor saturates at 1.
	CeilingHeight float64 `yaml:"ceiling_height"`
}

type Player struct {
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	FootOffset float64 `yaml:"foot_offset"`
	BounceDamp float64 `yaml:"bounce_damp"`
}

type Powerups struct {
	JetpackDurationTicks int `yaml:"jetpack_duration_ticks"`
}

type Input struct {
	Deadzone float64 `yaml:"deadzone"`
}

type Net struct {
	FlushIntervalMs int `yaml:"flush_interval_ms"`
	PingIntervalMs  int `yaml:"ping_interval_ms"`
	SnapshotRateHz  int `yaml:"snapshot_rate_hz"`
	MaxPlayers      int `yaml:"max_players"`
}

// Default returns the shipped tuning, matching the reference balance.
func Default() Tuning {
	return Tuning{
		TPS: 60,
		World: World{
			Width:          720,
			PlatformWidth:  120,
			PlatformHeight: 18,
			Gravity:        -2200,
			JumpVy:         1200,
			SpringVy:       1800,
			JetpackVy:      2200,
			MaxVx:          900,
			Accel:          2400,
			Friction:       0.92,
		},
		Camera: Camera{
			VerticalOffset: 240,
			CullMargin:     720,
			SpawnAhead:     1800,
		},
		Difficulty: Difficulty{
			GapMinStart:       120,
			GapMinEnd:         180,
			GapMaxStart:       240,
			GapMaxEnd:         320,
			SpringChanceStart: 0.1,
			SpringChanceEnd:   0.03,
			JetpackChance:     0.005,
			CeilingHeight:     50000,
		},
		Player: Player{
			Width:      64,
			Height:     72,
			FootOffset: 6,
			BounceDamp: 1.0,
		},
		Powerups: Powerups{
			JetpackDurationTicks: 120,
		},
		Input: Input{
			Deadzone: 0.1,
		},
		Net: Net{
			FlushIntervalMs: 50,
			PingIntervalMs:  5000,
			SnapshotRateHz:  10,
			MaxPlayers:      4,
		},
	}
}

// Load reads a tuning file, applying defaults for any omitted section.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TPS <= 0 {
		return fmt.Errorf("tuning: tps must be positive, got %d", t.TPS)
	}
	if t.World.Width <= 0 {
		return fmt.Errorf("tuning: world.width must be positive, got %v", t.World.Width)
	}
	if t.World.PlatformWidth <= 0 || t.World.PlatformWidth > t.World.Width {
		return fmt.Errorf("tuning: platform_width %v out of range", t.World.PlatformWidth)
	}
	if t.Difficulty.CeilingHeight <= 0 {
		return fmt.Errorf("tuning: difficulty.ceiling_height must be positive")
	}
	if t.Net.FlushIntervalMs < 16 {
		return fmt.Errorf("tuning: net.flush_interval_ms must be >= 16, got %d", t.Net.FlushIntervalMs)
	}
	if t.Net.PingIntervalMs < 1000 {
		return fmt.Errorf("tuning: net.ping_interval_ms must be >= 1000, got %d", t.Net.PingIntervalMs)
	}
	return nil
}
