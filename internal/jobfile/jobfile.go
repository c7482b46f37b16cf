// Package jobfile reads the TOML job descriptions used by the command line:
// the generation call geometry, video settings and the control units.
package jobfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"framectl/internal/control"
	"framectl/internal/host"
	"framectl/internal/motion"
	"framectl/internal/services"
)

// Call is the [call] table of a job.
type Call struct {
	Seed       int64  `toml:"seed"`
	Subseed    int64  `toml:"subseed"`
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	BatchSize  int    `toml:"batch_size"`
	HighRes    bool   `toml:"high_res"`
	HRWidth    int    `toml:"hr_width"`
	HRHeight   int    `toml:"hr_height"`
	Checkpoint string `toml:"checkpoint"`
}

// Job is a parsed job file.
type Job struct {
	Call   Call                `toml:"call"`
	Video  control.VideoParams `toml:"video"`
	Motion *motion.Config      `toml:"motion"`
	Units  []control.Unit      `toml:"units"`

	path string
}

// Path returns the file the job was loaded from.
func (j *Job) Path() string { return j.path }

// Load parses the job at path. Relative paths inside the job resolve against
// the job file's directory. Units are enabled with weight 1 unless the file
// says otherwise.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "jobfile", "read", path, err)
	}
	job, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	job.path = path
	return job, nil
}

// Parse decodes a job from data. baseDir anchors relative paths.
func Parse(data []byte, baseDir string) (*Job, error) {
	job := &Job{Call: Call{Seed: -1, Subseed: -1, Width: 512, Height: 512, BatchSize: 1}}
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(job); err != nil {
		return nil, services.Wrap(services.ErrValidation, "jobfile", "parse", "invalid job file", err)
	}

	var raw struct {
		Units []map[string]any `toml:"units"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, services.Wrap(services.ErrValidation, "jobfile", "parse", "invalid job file", err)
	}
	for i := range job.Units {
		keys := raw.Units[i]
		if _, ok := keys["enabled"]; !ok {
			job.Units[i].Enabled = true
		}
		if _, ok := keys["weight"]; !ok {
			job.Units[i].Weight = 1
		}
		if _, ok := keys["guidance_end"]; !ok {
			job.Units[i].GuidanceEnd = 1
		}
	}

	job.resolvePaths(baseDir)
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func (j *Job) resolvePaths(baseDir string) {
	j.Video.VideoSource = resolve(baseDir, j.Video.VideoSource)
	j.Video.VideoPath = resolve(baseDir, j.Video.VideoPath)
	for i := range j.Units {
		u := &j.Units[i]
		u.Image = resolve(baseDir, u.Image)
		u.Mask = resolve(baseDir, u.Mask)
		u.BatchDir = resolve(baseDir, u.BatchDir)
		for k := range u.Frames {
			u.Frames[k].Image = resolve(baseDir, u.Frames[k].Image)
			u.Frames[k].Mask = resolve(baseDir, u.Frames[k].Mask)
		}
	}
}

func resolve(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Validate checks call geometry and unit settings.
func (j *Job) Validate() error {
	if j.Call.Width <= 0 || j.Call.Height <= 0 {
		return invalid("call width and height must be positive")
	}
	if j.Call.BatchSize <= 0 {
		return invalid("call batch_size must be positive")
	}
	if j.Call.HighRes && (j.Call.HRWidth <= 0 || j.Call.HRHeight <= 0) {
		return invalid("high_res requires hr_width and hr_height")
	}
	if j.Video.VideoSource != "" && j.Video.VideoPath != "" {
		return invalid("video_source and video_path are mutually exclusive")
	}
	for i, u := range j.Units {
		if strings.TrimSpace(u.Module) == "" {
			return invalid(fmt.Sprintf("unit %d: module is required", i))
		}
		if u.Weight < 0 {
			return invalid(fmt.Sprintf("unit %d: weight must not be negative", i))
		}
		if u.GuidanceStart < 0 || u.GuidanceEnd > 1 || u.GuidanceStart > u.GuidanceEnd {
			return invalid(fmt.Sprintf("unit %d: guidance window must satisfy 0 <= start <= end <= 1", i))
		}
	}
	return nil
}

func invalid(msg string) error {
	return services.Wrap(services.ErrValidation, "jobfile", "validate", msg, nil)
}

// HostCall builds the generation call the job describes.
func (j *Job) HostCall() *host.Call {
	return &host.Call{
		Seed:           j.Call.Seed,
		Subseed:        j.Call.Subseed,
		Width:          j.Call.Width,
		Height:         j.Call.Height,
		HighRes:        j.Call.HighRes,
		HRWidth:        j.Call.HRWidth,
		HRHeight:       j.Call.HRHeight,
		BatchSize:      j.Call.BatchSize,
		CheckpointHash: j.Call.Checkpoint,
		Video:          j.Video,
	}
}

// EnabledUnits returns pointers to the enabled units in declaration order.
// It satisfies host.UnitSource, so frame assignment mutates the job's units.
func (j *Job) EnabledUnits(*host.Call) []*control.Unit {
	out := make([]*control.Unit, 0, len(j.Units))
	for i := range j.Units {
		if j.Units[i].Enabled {
			out = append(out, &j.Units[i])
		}
	}
	return out
}
