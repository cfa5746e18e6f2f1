package metrics

import "time"

// NormalizerBatchMetric records one Normalizer batch run (§4.B).
type NormalizerBatchMetric struct {
	Timestamp time.Time
	BatchID   string
	Total     int
	Processed int
	Filtered  int
	Errors    int
	ElapsedMs int64
}

func (m *NormalizerBatchMetric) TableName() string { return "normalizer_batch_log" }

func (m *NormalizerBatchMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp, m.BatchID, m.Total, m.Processed, m.Filtered, m.Errors, m.ElapsedMs,
	}
}

// DedupCycleMetric records one Deduplicator pass over a batch of normalized
// articles (§4.E).
type DedupCycleMetric struct {
	Timestamp     time.Time
	DocsProcessed int
	Duplicates    int
	StoryMatches  int
	NewClusters   int
	ElapsedMs     int64
}

func (m *DedupCycleMetric) TableName() string { return "dedup_cycle_log" }

func (m *DedupCycleMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp, m.DocsProcessed, m.Duplicates, m.StoryMatches, m.NewClusters, m.ElapsedMs,
	}
}

// EnrichCycleMetric records one LLM Enricher pass over a batch of clusters
// (§4.F).
type EnrichCycleMetric struct {
	Timestamp time.Time
	Processed int
	Skipped   int
	Errors    int
	ElapsedMs int64
}

func (m *EnrichCycleMetric) TableName() string { return "enrich_cycle_log" }

func (m *EnrichCycleMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp, m.Processed, m.Skipped, m.Errors, m.ElapsedMs,
	}
}

// HotnessSnapshotMetric records a cluster's hotness at the moment it was
// recomputed, giving operators a queryable hotness-over-time series beyond
// what Postgres's latest-value-only row shows.
type HotnessSnapshotMetric struct {
	Timestamp time.Time
	ClusterID int64
	Hotness   float64
	DocCount  int
}

func (m *HotnessSnapshotMetric) TableName() string { return "hotness_snapshots" }

func (m *HotnessSnapshotMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp, m.ClusterID, m.Hotness, m.DocCount,
	}
}
