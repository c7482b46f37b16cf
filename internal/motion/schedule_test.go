package motion

import (
	"math"
	"testing"

	"framectl/internal/logging"
)

type holder struct{ schedule []float64 }

func (h *holder) AlphasCumprod() []float64     { return h.schedule }
func (h *holder) SetAlphasCumprod(s []float64) { h.schedule = s }

func TestScheduleLinear(t *testing.T) {
	s := Schedule(Config{Timesteps: 500})
	if len(s) != 500 {
		t.Fatalf("expected 500 steps, got %d", len(s))
	}
	if math.Abs(s[0]-(1-betaStart)) > 1e-12 {
		t.Fatalf("unexpected first value %v", s[0])
	}
	if math.Abs(s[499]/s[498]-(1-betaEnd)) > 1e-9 {
		t.Fatalf("last beta should be %v", betaEnd)
	}
	for i := 1; i < len(s); i++ {
		if s[i] >= s[i-1] {
			t.Fatalf("schedule not decreasing at %d", i)
		}
	}
}

func TestScheduleSDXLAndXL(t *testing.T) {
	if n := len(Schedule(Config{SDXL: true, Timesteps: 200})); n != 1000 {
		t.Fatalf("sdxl should use 1000 steps, got %d", n)
	}
	if n := len(Schedule(Config{})); n != 1000 {
		t.Fatalf("unset timesteps should default to 1000, got %d", n)
	}
	s := Schedule(Config{XL: true, Timesteps: 10})
	if len(s) != 1000 {
		t.Fatalf("xl should use 1000 steps, got %d", len(s))
	}
	if math.Abs(s[999]/s[998]-(1-betaEndXL)) > 1e-9 {
		t.Fatalf("xl last beta should be %v", betaEndXL)
	}
}

func TestInjectorApplyRestore(t *testing.T) {
	original := []float64{0.9, 0.8}
	h := &holder{schedule: original}
	inj := NewInjector(h, logging.NewNop())

	inj.Restore()
	if &h.schedule[0] != &original[0] {
		t.Fatal("restore without apply must not touch the holder")
	}

	inj.Apply(Config{Timesteps: 10})
	if len(h.schedule) != 10 || !inj.Applied() {
		t.Fatalf("expected override, got %d entries", len(h.schedule))
	}
	inj.Apply(Config{XL: true})
	if len(h.schedule) != 1000 {
		t.Fatalf("expected xl override, got %d entries", len(h.schedule))
	}

	inj.Restore()
	if inj.Applied() || &h.schedule[0] != &original[0] {
		t.Fatal("restore must return the original schedule slice")
	}
	inj.Restore()
	if &h.schedule[0] != &original[0] {
		t.Fatal("second restore changed the holder")
	}
}
