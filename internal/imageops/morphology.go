package imageops

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Dilate applies a k x k rectangular maximum filter to an h x w plane.
func Dilate(plane []float32, w, h, k int) ([]float32, error) {
	if k <= 1 {
		return append([]float32(nil), plane...), nil
	}
	src, err := planeMat(plane, w, h)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
	defer kernel.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Dilate(src, &dst, kernel); err != nil {
		return nil, fmt.Errorf("dilate: %w", err)
	}
	return matPlane(dst)
}

// BoxBlur applies a normalized k x k mean filter to an h x w plane. Borders
// are reflected without repeating the edge pixel.
func BoxBlur(plane []float32, w, h, k int) ([]float32, error) {
	if k <= 1 {
		return append([]float32(nil), plane...), nil
	}
	src, err := planeMat(plane, w, h)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Blur(src, &dst, image.Pt(k, k)); err != nil {
		return nil, fmt.Errorf("box blur: %w", err)
	}
	return matPlane(dst)
}

func planeMat(plane []float32, w, h int) (gocv.Mat, error) {
	if len(plane) != w*h {
		return gocv.Mat{}, fmt.Errorf("plane has %d values, want %dx%d", len(plane), w, h)
	}
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	data, err := m.DataPtrFloat32()
	if err != nil {
		m.Close()
		return gocv.Mat{}, fmt.Errorf("plane buffer: %w", err)
	}
	copy(data, plane)
	return m, nil
}

func matPlane(m gocv.Mat) ([]float32, error) {
	data, err := m.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read plane: %w", err)
	}
	return append([]float32(nil), data...), nil
}
