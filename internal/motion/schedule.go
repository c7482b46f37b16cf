package motion

import (
	"log/slog"
	"math"

	"framectl/internal/host"
	"framectl/internal/logging"
)

const (
	betaStart    = 0.00085
	betaEnd      = 0.012
	betaEndXL    = 0.020
	xlTimesteps  = 1000
	defaultSteps = 1000
)

// Config describes the motion module and base model a schedule is built for.
type Config struct {
	// XL selects the sqrt-linear schedule of XL motion modules.
	XL bool `toml:"xl"`
	// SDXL base models always use 1000 timesteps.
	SDXL      bool `toml:"sdxl"`
	Timesteps int  `toml:"timesteps"`
}

// Schedule returns alphas_cumprod for cfg: the cumulative product of 1-beta
// over linearly spaced betas, or squared linearly spaced sqrt-betas for XL.
func Schedule(cfg Config) []float64 {
	steps := cfg.Timesteps
	if cfg.XL || cfg.SDXL || steps <= 0 {
		steps = defaultSteps
	}
	var betas []float64
	if cfg.XL {
		betas = linspace(math.Sqrt(betaStart), math.Sqrt(betaEndXL), xlTimesteps)
		for i, b := range betas {
			betas[i] = b * b
		}
	} else {
		betas = linspace(betaStart, betaEnd, steps)
	}
	out := make([]float64, len(betas))
	prod := 1.0
	for i, b := range betas {
		prod *= 1 - b
		out[i] = prod
	}
	return out
}

func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[n-1] = end
	return out
}

// Injector swaps a schedule into a holder and puts the previous one back.
type Injector struct {
	holder   host.ScheduleHolder
	logger   *slog.Logger
	previous []float64
	applied  bool
}

// NewInjector binds an injector to holder.
func NewInjector(holder host.ScheduleHolder, logger *slog.Logger) *Injector {
	return &Injector{holder: holder, logger: logging.NewComponentLogger(logger, "motion")}
}

// Applied reports whether an override is active.
func (i *Injector) Applied() bool { return i.applied }

// Apply installs the schedule for cfg. An active override is restored first,
// so the remembered schedule is always the holder's original.
func (i *Injector) Apply(cfg Config) {
	if i.applied {
		i.Restore()
	}
	i.previous = i.holder.AlphasCumprod()
	i.holder.SetAlphasCumprod(Schedule(cfg))
	i.applied = true
	i.logger.Info("motion noise schedule applied", logging.Bool("xl", cfg.XL), logging.Int("timesteps", cfg.Timesteps))
}

// Restore puts back the schedule seen by Apply.
func (i *Injector) Restore() {
	if !i.applied {
		i.logger.Debug("motion schedule restore skipped, nothing applied")
		return
	}
	i.holder.SetAlphasCumprod(i.previous)
	i.previous = nil
	i.applied = false
	i.logger.Info("motion noise schedule restored")
}
