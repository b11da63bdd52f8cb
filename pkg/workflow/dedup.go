package workflow

import "github.com/crewdesk/automation/pkg/models"

const DuplicateMessage = "Duplicate automation detected and skipped"

// Duplicate is a log dropped in favour of an older log with the same dedup key.
type Duplicate struct {
	Log  *models.ExecutionLog
	Kept *models.ExecutionLog
}

// Deduplicate splits a batch into the logs to process and their duplicates. Within each
// group of pending logs sharing a dedup key only the oldest (by created_at, then id) is kept.
// Waiting logs resume an earlier attempt and always survive. Survivors keep batch order.
func Deduplicate(batch []*models.ExecutionLog) ([]*models.ExecutionLog, []Duplicate) {
	oldest := make(map[string]*models.ExecutionLog)

	for _, log := range batch {
		if log.Status == models.ExecutionStatusWaiting {
			continue
		}

		key := log.DedupKey()

		current, ok := oldest[key]
		if !ok || older(log, current) {
			oldest[key] = log
		}
	}

	survivors := make([]*models.ExecutionLog, 0, len(batch))
	duplicates := make([]Duplicate, 0)

	for _, log := range batch {
		if log.Status == models.ExecutionStatusWaiting {
			survivors = append(survivors, log)

			continue
		}

		kept := oldest[log.DedupKey()]
		if kept == log {
			survivors = append(survivors, log)

			continue
		}

		duplicates = append(duplicates, Duplicate{Log: log, Kept: kept})
	}

	return survivors, duplicates
}

func older(a, b *models.ExecutionLog) bool {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c < 0
	}

	return a.ID < b.ID
}
