package ledger

import (
	"database/sql"
	"errors"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run                                        Run
		status                                     string
		backend, lang, strategy, output, errorText sql.NullString
		startedRaw                                 string
		finishedRaw                                sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.SourcePath,
		&status,
		&backend,
		&lang,
		&strategy,
		&run.ChunkCount,
		&run.Succeeded,
		&run.Failed,
		&output,
		&errorText,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.Backend = backend.String
	run.Language = lang.String
	run.Strategy = strategy.String
	run.OutputPath = output.String
	run.ErrorMessage = errorText.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
