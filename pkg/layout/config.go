// Package layout relaxes node positions of a synthesized graph with a
// force-directed simulation that runs one step per display frame.
//
// Repulsion is an all-pairs O(n²) pass. The simulator is sized for graphs of
// up to a few hundred nodes; larger graphs still work but each frame blocks
// for proportionally longer.
package layout

import (
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

// Config holds the tunable constants of the simulation
type Config struct {
	// RepulsionConstant scales the inverse-square push between every pair of nodes
	RepulsionConstant float64 `yaml:"repulsion_constant" json:"repulsionConstant"`
	// IdealLength is the rest length of every edge spring
	IdealLength float64 `yaml:"ideal_length" json:"idealLength"`
	// SpringConstant scales how hard an edge pulls towards IdealLength
	SpringConstant float64 `yaml:"spring_constant" json:"springConstant"`
	// GravityConstant pulls every node towards the origin
	GravityConstant float64 `yaml:"gravity_constant" json:"gravityConstant"`
	// VelocityClamp caps the per-axis move of a node in one frame
	VelocityClamp float64 `yaml:"velocity_clamp" json:"velocityClamp"`
	// ConvergenceThreshold ends the session once no node moves further than this
	ConvergenceThreshold float64 `yaml:"convergence_threshold" json:"convergenceThreshold"`
	// MaxIterations stops a session that has not settled; 0 means unbounded
	MaxIterations int `yaml:"max_iterations" json:"maxIterations"`
	// FrameRate is the frames per second of the timer scheduler
	FrameRate int `yaml:"frame_rate" json:"frameRate"`
}

// DefaultConfig returns the standard simulation constants
func DefaultConfig() Config {
	return Config{
		RepulsionConstant:    5000,
		IdealLength:          150,
		SpringConstant:       0.05,
		GravityConstant:      0.01,
		VelocityClamp:        5,
		ConvergenceThreshold: 0.1,
		MaxIterations:        0,
		FrameRate:            60,
	}
}

// Validate checks every constant is usable
func (c Config) Validate() error {
	return validation.NewConfigValidator("LayoutConfig").
		PositiveFloat("RepulsionConstant", c.RepulsionConstant).
		PositiveFloat("IdealLength", c.IdealLength).
		PositiveFloat("SpringConstant", c.SpringConstant).
		NonNegativeFloat("GravityConstant", c.GravityConstant).
		PositiveFloat("VelocityClamp", c.VelocityClamp).
		NonNegativeFloat("ConvergenceThreshold", c.ConvergenceThreshold).
		NonNegative("MaxIterations", c.MaxIterations).
		RangeInt("FrameRate", c.FrameRate, 1, 240).
		Validate()
}
