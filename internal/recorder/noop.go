package recorder

import (
	"context"

	"StockScope/internal/snapshot"
)

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ context.Context, _ *snapshot.Result, _ string) error { return nil }
func (n *NoopRecorder) RecentRuns(_ context.Context, _ int) ([]RunRecord, error)        { return nil, nil }
func (n *NoopRecorder) SnapshotsForRun(_ context.Context, _ string) ([]SnapshotRow, error) {
	return nil, nil
}
func (n *NoopRecorder) ErrorsForRun(_ context.Context, _ string) ([]ErrorRow, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                                 { return nil }
