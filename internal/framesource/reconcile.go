package framesource

import "framectl/internal/control"

// Reconciliation is the outcome of aligning frame counts across units.
type Reconciliation struct {
	// Applied is false when no unit runs in batch mode and the call is not
	// expanding init images; lengths are then taken as declared.
	Applied bool
	// Length is the smallest frame count seen, capped by the base batch size.
	Length      int
	VideoLength int
	BatchSize   int
}

// Reconcile computes the authoritative sequence length. It takes the minimum
// of every batch unit's frame count, the expansion count (img2img init images,
// 0 when not expanding) and the base batch size, clamps the requested video
// length and batch size down to it (or sets both to it when params.Default is
// set), and truncates every batch unit's frames to the final video length.
func Reconcile(units []*control.Unit, params *control.VideoParams, batchSize, expansion int) Reconciliation {
	counts := make([]int, 0, len(units)+1)
	for _, unit := range units {
		if unit.IsBatch() {
			counts = append(counts, len(unit.Frames))
		}
	}
	if expansion > 0 {
		counts = append(counts, expansion)
	}
	if len(counts) == 0 {
		return Reconciliation{VideoLength: params.VideoLength, BatchSize: batchSize}
	}

	length := counts[0]
	for _, c := range counts[1:] {
		length = min(length, c)
	}
	if batchSize > 0 {
		length = min(length, batchSize)
	}

	videoLength := params.VideoLength
	if videoLength <= 0 || videoLength > length {
		videoLength = length
	}
	if batchSize > length {
		batchSize = length
	}
	if params.Default {
		videoLength = length
		batchSize = length
	}
	params.VideoLength = videoLength

	for _, unit := range units {
		if unit.IsBatch() {
			unit.Truncate(videoLength)
		}
	}
	return Reconciliation{Applied: true, Length: length, VideoLength: videoLength, BatchSize: batchSize}
}
