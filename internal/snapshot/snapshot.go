// Package snapshot builds the on-demand cluster snapshot export (§6): a
// JSON file describing the hottest story clusters as of the moment it is
// generated, for operator inspection or external consumption outside the
// bot. Mirrors the teacher's reports.Generator shape — gather, shape,
// marshal — adapted from per-agent trading reports to per-cluster radar
// snapshots.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrov/finradar/pkg/models"
)

// ClusterSource is the subset of internal/store.ClusterStore the exporter
// reads from.
type ClusterSource interface {
	AllClusters(ctx context.Context, limit int) ([]models.StoryCluster, error)
	Members(ctx context.Context, clusterID int64) ([]models.ClusterMember, error)
}

// Meta describes the export run itself.
type Meta struct {
	GeneratedAt time.Time `json:"generated_at"`
	TopK        int       `json:"top_k"`
	WindowHours int       `json:"window_hours"`
}

// SourceRef is one contributing URL to a cluster.
type SourceRef struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// Timeline marks when a cluster first appeared, was last updated, and
// (heuristically) confirmed: Confirm is the cluster's last update time when
// it has members from more than one domain, and is absent otherwise.
type Timeline struct {
	First   time.Time  `json:"first"`
	Update  time.Time  `json:"update"`
	Confirm *time.Time `json:"confirm,omitempty"`
}

// Cluster is one exported story cluster.
type Cluster struct {
	DedupGroup int64              `json:"dedup_group"`
	Headline   string             `json:"headline"`
	Hotness    float64            `json:"hotness"`
	Sources    []SourceRef        `json:"sources"`
	Timeline   Timeline           `json:"timeline"`
	Domains    []string           `json:"domains"`
	DocCount   int                `json:"doc_count"`
	Factors    map[string]float64 `json:"factors"`
}

// Snapshot is the full exported document.
type Snapshot struct {
	Meta     Meta      `json:"meta"`
	Clusters []Cluster `json:"clusters"`
}

// Exporter builds Snapshot documents from the cluster store.
type Exporter struct {
	clusters ClusterSource
}

// New creates an Exporter.
func New(clusters ClusterSource) *Exporter {
	return &Exporter{clusters: clusters}
}

// Build gathers the topK hottest clusters and shapes them into a Snapshot.
// windowHours is recorded in Meta only — it documents, for the consumer,
// the width of the time window the Deduplicator applies to story-level
// matches when it builds these clusters, not a filter applied here.
func (e *Exporter) Build(ctx context.Context, topK, windowHours int) (*Snapshot, error) {
	clusters, err := e.clusters.AllClusters(ctx, topK)
	if err != nil {
		return nil, fmt.Errorf("load clusters: %w", err)
	}

	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		members, err := e.clusters.Members(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load members for cluster %d: %w", c.ID, err)
		}
		out = append(out, shapeCluster(c, members))
	}

	return &Snapshot{
		Meta: Meta{
			GeneratedAt: time.Now().UTC(),
			TopK:        topK,
			WindowHours: windowHours,
		},
		Clusters: out,
	}, nil
}

// Marshal renders a Snapshot as indented JSON, ready to write to a file.
func Marshal(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func shapeCluster(c models.StoryCluster, members []models.ClusterMember) Cluster {
	domains := make([]string, 0, len(c.Domains))
	for d := range c.Domains {
		domains = append(domains, d)
	}

	sources := make([]SourceRef, 0, len(members))
	for _, m := range members {
		sources = append(sources, SourceRef{Kind: m.Site, URL: m.URL})
	}

	var confirm *time.Time
	if len(c.Domains) > 1 {
		t := c.LastTime
		confirm = &t
	}

	return Cluster{
		DedupGroup: c.ID,
		Headline:   c.Headline,
		Hotness:    c.Hotness,
		Sources:    sources,
		Timeline: Timeline{
			First:   c.FirstTime,
			Update:  c.LastTime,
			Confirm: confirm,
		},
		Domains:  domains,
		DocCount: c.DocCount,
		Factors:  c.Factors,
	}
}
