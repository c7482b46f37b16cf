package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		createdRaw  string
		finishedRaw sql.NullString
		videoSource sql.NullString
		checkpoint  sql.NullString
		unitsJSON   sql.NullString
		errorMsg    sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Status,
		&createdRaw,
		&finishedRaw,
		&run.Seed,
		&run.Subseed,
		&run.BatchSize,
		&run.VideoLength,
		&videoSource,
		&checkpoint,
		&unitsJSON,
		&run.Frames,
		&errorMsg,
	); err != nil {
		return nil, err
	}
	run.CreatedAt = parseTime(createdRaw)
	if finishedRaw.Valid {
		run.FinishedAt = parseTime(finishedRaw.String)
	}
	run.VideoSource = videoSource.String
	run.Checkpoint = checkpoint.String
	run.Error = errorMsg.String
	if unitsJSON.Valid && unitsJSON.String != "" && unitsJSON.String != "null" {
		if err := json.Unmarshal([]byte(unitsJSON.String), &run.Units); err != nil {
			return nil, fmt.Errorf("decode units for run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value <= 0 {
		return nil
	}
	return value
}
