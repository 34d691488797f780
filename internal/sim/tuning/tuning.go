// Package tuning loads gameplay knobs from yaml.
package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz     int     `yaml:"tick_rate_hz"`
	MoveSpeed      float64 `yaml:"move_speed"`
	PickupRange    float64 `yaml:"pickup_range"`
	RespawnSeconds int     `yaml:"respawn_seconds"`

	ItemSpawns []ItemSpawn `yaml:"item_spawns"`
}

// ItemSpawn is a baseline catalog item with its fixed world spawn point. The
// world keeps at most one live instance of each.
type ItemSpawn struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	ItemType    string  `yaml:"item_type"`
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:     20,
		MoveSpeed:      70,
		PickupRange:    50,
		RespawnSeconds: 20,
		ItemSpawns: []ItemSpawn{
			{Name: "Iron Sword", Description: "A sturdy iron sword", ItemType: "weapon", X: 100, Y: 150},
			{Name: "Health Potion", Description: "Restores health", ItemType: "potion", X: 150, Y: 100},
		},
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	if t.MoveSpeed <= 0 {
		return t, fmt.Errorf("tuning.yaml: move_speed must be positive")
	}
	return t, nil
}

func (t Tuning) TickInterval() time.Duration {
	return time.Second / time.Duration(t.TickRateHz)
}

func (t Tuning) RespawnInterval() time.Duration {
	return time.Duration(t.RespawnSeconds) * time.Second
}
