package upload

import "errors"

// Sentinel errors for upload outcomes.
var (
	// ErrInProgress indicates Upload was called while another upload is
	// still running.
	ErrInProgress = errors.New("upload: upload already in progress")

	// ErrMissingDatasetID indicates a 2xx response without a dataset
	// identifier. Treated as failure even though the transport succeeded.
	ErrMissingDatasetID = errors.New("upload: response missing dataset id")

	// ErrMissingRecordCounts indicates a 2xx response without record counts.
	// Treated as failure even though the transport succeeded.
	ErrMissingRecordCounts = errors.New("upload: response missing record counts")
)
