// scheduler.go - FlowMatch-Euler-Scheduler für Z-Image
//
// Enthält:
// - SchedulerConfig: num_train_timesteps und shift
// - FlowMatchEulerScheduler: Sigma- und Timestep-Plan, Euler-Schritt

package zimage

import (
	"fmt"

	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// SchedulerConfig mirrors scheduler/scheduler_config.json.
type SchedulerConfig struct {
	ClassName         string  `json:"_class_name,omitempty"`
	NumTrainTimesteps int     `json:"num_train_timesteps"`
	Shift             float32 `json:"shift"`
}

// DefaultSchedulerConfig returns the Z-Image Turbo schedule.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ClassName:         "FlowMatchEulerDiscreteScheduler",
		NumTrainTimesteps: 1000,
		Shift:             3.0,
	}
}

// FlowMatchEulerScheduler holds a fixed sigma schedule. Sigmas has one more
// entry than Timesteps and ends in an exact zero.
type FlowMatchEulerScheduler struct {
	Config    SchedulerConfig
	Timesteps []float32
	Sigmas    []float32
}

// NewFlowMatchEulerScheduler computes the schedule for steps inference
// steps. Zero config fields take their defaults. It panics if steps <= 0.
func NewFlowMatchEulerScheduler(cfg SchedulerConfig, steps int) *FlowMatchEulerScheduler {
	if steps <= 0 {
		panic(fmt.Sprintf("zimage: inference steps must be positive, got %d", steps))
	}
	def := DefaultSchedulerConfig()
	if cfg.NumTrainTimesteps <= 0 {
		cfg.NumTrainTimesteps = def.NumTrainTimesteps
	}
	if cfg.Shift == 0 {
		cfg.Shift = def.Shift
	}

	T := float32(cfg.NumTrainTimesteps)
	shift := cfg.Shift
	shifted := func(s float32) float32 {
		return float32(shift * s / (1 + (shift-1)*s))
	}

	sigmaMax := shifted(1)
	sigmaMin := shifted(1 / T)
	tStart, tEnd := sigmaMax*T, sigmaMin*T

	s := &FlowMatchEulerScheduler{
		Config:    cfg,
		Timesteps: make([]float32, steps),
		Sigmas:    make([]float32, steps+1),
	}
	for i := range steps {
		t := tEnd
		if steps > 1 {
			t = float32(tStart + (tEnd-tStart)*(float32(i)/float32(steps-1)))
		}
		sigma := shifted(t / T)
		s.Sigmas[i] = sigma
		s.Timesteps[i] = float32(sigma * T)
	}
	s.Sigmas[steps] = 0
	return s
}

// Steps returns the number of inference steps.
func (s *FlowMatchEulerScheduler) Steps() int { return len(s.Timesteps) }

// Step advances sample by one Euler step: sample + modelOutput*(nextSigma-sigma).
func (s *FlowMatchEulerScheduler) Step(modelOutput, sample *tensor.Array, sigma, nextSigma float32) *tensor.Array {
	return tensor.Add(sample, tensor.MulScalar(modelOutput, nextSigma-sigma))
}

// StepAt is Step using the sigmas of step i.
func (s *FlowMatchEulerScheduler) StepAt(modelOutput, sample *tensor.Array, i int) *tensor.Array {
	return s.Step(modelOutput, sample, s.Sigmas[i], s.Sigmas[i+1])
}
