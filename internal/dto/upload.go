package dto

import "github.com/neattend/neattend-api/internal/ingest"

// UploadSummary is returned by the bulk upload endpoints. Row errors from
// the sheet pipeline and persistence failures are merged into one list;
// the upload succeeds with HTTP 200 even when every row failed.
type UploadSummary struct {
	TotalRows    int               `json:"totalRows"`
	CreatedCount int               `json:"createdCount"`
	FailedCount  int               `json:"failedCount"`
	DryRun       bool              `json:"dryRun,omitempty"`
	RowErrors    []ingest.RowError `json:"rowErrors"`
}
