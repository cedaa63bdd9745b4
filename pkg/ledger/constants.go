package ledger

import "time"

const (
	operationRecord        = "record"
	operationRecordPending = "record_pending"
	operationComplete      = "complete_entry"
	operationVoid          = "void_entry"
	operationFail          = "fail_entry"
	operationAdjust        = "adjust"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	defaultMaxAttempts    = 3
	defaultRetryBackoff   = 25 * time.Millisecond
	errorCodeRetriesSpent = "retries_exhausted"
)
