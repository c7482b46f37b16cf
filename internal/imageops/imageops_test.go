package imageops_test

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/pdevine/tensor"

	"framectl/internal/control"
	"framectl/internal/imageops"
	"framectl/internal/testsupport"
)

func near(got, want uint8) bool {
	diff := int(got) - int(want)
	return diff >= -1 && diff <= 1
}

func TestPixelPerfectResolution(t *testing.T) {
	raw := image.Rect(0, 0, 1024, 512)
	tests := []struct {
		name string
		mode control.ResizeMode
		want int
	}{
		// k0 = 768/512 = 1.5, k1 = 512/1024 = 0.5
		{"just resize uses max", control.ResizeJust, 768},
		{"inner fit uses max", control.ResizeInnerFit, 768},
		{"outer fit uses min", control.ResizeOuterFit, 256},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := imageops.PixelPerfect(raw, 768, 512, tc.mode); got != tc.want {
				t.Fatalf("PixelPerfect = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFitProducesCanvasSizeForEveryMode(t *testing.T) {
	src := testsupport.GradientImage(40, 20)
	for _, mode := range []control.ResizeMode{control.ResizeJust, control.ResizeInnerFit, control.ResizeOuterFit} {
		out := imageops.Fit(src, mode, 32, 24)
		if out.Bounds().Dx() != 24 || out.Bounds().Dy() != 32 {
			t.Fatalf("%s: got %v", mode, out.Bounds())
		}
	}
}

func TestOuterFitPadsWithOpaqueBlack(t *testing.T) {
	src := testsupport.SolidImage(20, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
	out := imageops.Fit(src, control.ResizeOuterFit, 20, 20)
	top := out.NRGBAAt(10, 0)
	if top != (color.NRGBA{A: 255}) {
		t.Fatalf("expected opaque black padding, got %+v", top)
	}
	centre := out.NRGBAAt(10, 10)
	if !near(centre.R, 255) || centre.A != 0 {
		t.Fatalf("expected transparent white content, got %+v", centre)
	}
}

func TestResizeKeepsColorUnderTransparentPixels(t *testing.T) {
	src := testsupport.SolidImage(8, 8, color.NRGBA{R: 90, G: 120, B: 30, A: 0})
	out := imageops.Resize(src, 16, 4)
	px := out.NRGBAAt(5, 2)
	if !near(px.R, 90) || !near(px.G, 120) || !near(px.B, 30) || px.A != 0 {
		t.Fatalf("unexpected pixel %+v", px)
	}
}

func TestDetectMapperHonoursKeepAlpha(t *testing.T) {
	mapper := imageops.DetectMapper{KeepAlpha: func(module string) bool { return module == "inpaint_only" }}
	src := testsupport.GradientImage(16, 16)
	withAlpha, _ := mapper.DetectMap(src, "inpaint_only", control.ResizeJust, 8, 8)
	if shape := withAlpha.Shape(); shape[1] != 4 {
		t.Fatalf("expected 4 channels, got %v", shape)
	}
	plain, display := mapper.DetectMap(src, "canny", control.ResizeJust, 8, 12)
	shape := plain.Shape()
	if shape[0] != 1 || shape[1] != 3 || shape[2] != 8 || shape[3] != 12 {
		t.Fatalf("unexpected shape %v", shape)
	}
	if display.Bounds().Dx() != 12 || display.Bounds().Dy() != 8 {
		t.Fatalf("unexpected display bounds %v", display.Bounds())
	}
}

func TestStackDoublesMultiFrameBatches(t *testing.T) {
	frame := func(v float32) *tensor.Dense {
		return tensor.New(tensor.WithShape(1, 1, 1, 2), tensor.WithBacking([]float32{v, v}))
	}

	single, err := imageops.Stack([]*tensor.Dense{frame(1)})
	if err != nil {
		t.Fatalf("Stack single: %v", err)
	}
	if single.Shape()[0] != 1 {
		t.Fatalf("single frame should not be doubled, got %v", single.Shape())
	}

	multi, err := imageops.Stack([]*tensor.Dense{frame(1), frame(2), frame(3)})
	if err != nil {
		t.Fatalf("Stack multi: %v", err)
	}
	if multi.Shape()[0] != 6 {
		t.Fatalf("expected 6 entries, got %v", multi.Shape())
	}
	want := []float32{1, 1, 2, 2, 3, 3, 1, 1, 2, 2, 3, 3}
	got := imageops.Float32s(multi)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("data[%d] = %v, want %v (all %v)", i, got[i], want[i], got)
		}
	}

	data, c, h, w, err := imageops.FrameAt(multi, 4)
	if err != nil {
		t.Fatalf("FrameAt: %v", err)
	}
	if c != 1 || h != 1 || w != 2 || data[0] != 2 {
		t.Fatalf("unexpected frame %v (%d,%d,%d)", data, c, h, w)
	}
}

func TestMorphologyPreservesConstantPlanes(t *testing.T) {
	for _, value := range []float32{0, 1} {
		plane := make([]float32, 5*4)
		for i := range plane {
			plane[i] = value
		}
		dilated, err := imageops.Dilate(plane, 5, 4, 7)
		if err != nil {
			t.Fatalf("Dilate: %v", err)
		}
		blurred, err := imageops.BoxBlur(plane, 5, 4, 7)
		if err != nil {
			t.Fatalf("BoxBlur: %v", err)
		}
		for _, out := range [][]float32{dilated, blurred} {
			for i, v := range out {
				if math.Abs(float64(v-value)) > 1e-6 {
					t.Fatalf("value %v: out[%d] = %v", value, i, v)
				}
			}
		}
	}
}

func TestDilateGrowsMaskedRegion(t *testing.T) {
	plane := make([]float32, 5*5)
	plane[12] = 1
	out, err := imageops.Dilate(plane, 5, 5, 3)
	if err != nil {
		t.Fatalf("Dilate: %v", err)
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			want := float32(0)
			if x >= 1 && x <= 3 && y >= 1 && y <= 3 {
				want = 1
			}
			if out[y*5+x] != want {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, out[y*5+x], want)
			}
		}
	}
}

func TestBoxBlurReflectsAtBorders(t *testing.T) {
	const w, h = 5, 3
	plane := make([]float32, w*h)
	for y := 0; y < h; y++ {
		plane[y*w] = 1
	}
	out, err := imageops.BoxBlur(plane, w, h, 3)
	if err != nil {
		t.Fatalf("BoxBlur: %v", err)
	}
	want := []float64{1.0 / 3, 1.0 / 3, 0, 0, 0}
	for y := 0; y < h; y++ {
		for x, v := range want {
			if got := float64(out[y*w+x]); math.Abs(got-v) > 1e-6 {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, got, v)
			}
		}
	}
}

func TestMorphologyRejectsShortPlane(t *testing.T) {
	if _, err := imageops.BoxBlur(make([]float32, 3), 2, 2, 3); err == nil {
		t.Fatal("expected an error for a plane smaller than w*h")
	}
}

func TestImageTensorRoundTrip(t *testing.T) {
	src := testsupport.SolidImage(3, 2, color.NRGBA{R: 200, G: 100, B: 7, A: 255})
	frame := imageops.FrameTensor(src)
	if shape := frame.Shape(); len(shape) != 3 || shape[0] != 3 {
		t.Fatalf("unexpected frame shape %v", shape)
	}
	img, err := imageops.ToImage(frame)
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	if px := img.NRGBAAt(2, 1); px != (color.NRGBA{R: 200, G: 100, B: 7, A: 255}) {
		t.Fatalf("round trip pixel = %+v", px)
	}
}
