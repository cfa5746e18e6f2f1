package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrov/finradar/pkg/models"
)

type stubClusterSource struct {
	clusters []models.StoryCluster
	members  map[int64][]models.ClusterMember
}

func (s *stubClusterSource) AllClusters(ctx context.Context, limit int) ([]models.StoryCluster, error) {
	if limit < len(s.clusters) {
		return s.clusters[:limit], nil
	}
	return s.clusters, nil
}

func (s *stubClusterSource) Members(ctx context.Context, clusterID int64) ([]models.ClusterMember, error) {
	return s.members[clusterID], nil
}

func TestExporter_BuildShapesClustersAndMembers(t *testing.T) {
	first := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	last := first.Add(2 * time.Hour)

	src := &stubClusterSource{
		clusters: []models.StoryCluster{
			{
				ID: 7, Headline: "Fed holds rates", FirstTime: first, LastTime: last,
				Domains: map[string]int{"reuters.com": 1, "bloomberg.com": 1},
				DocCount: 2, Hotness: 0.82,
				Factors: map[string]float64{"novelty": 0.9},
			},
		},
		members: map[int64][]models.ClusterMember{
			7: {
				{ClusterID: 7, NormalizedID: 1, URL: "https://reuters.com/a", Site: "reuters.com", TimeUTC: first},
				{ClusterID: 7, NormalizedID: 2, URL: "https://bloomberg.com/b", Site: "bloomberg.com", TimeUTC: last},
			},
		},
	}

	e := New(src)
	snap, err := e.Build(context.Background(), 10, 48)
	require.NoError(t, err)
	require.Len(t, snap.Clusters, 1)

	c := snap.Clusters[0]
	assert.Equal(t, int64(7), c.DedupGroup)
	assert.Equal(t, 0.82, c.Hotness)
	assert.Len(t, c.Sources, 2)
	assert.ElementsMatch(t, []string{"reuters.com", "bloomberg.com"}, c.Domains)
	assert.Equal(t, first, c.Timeline.First)
	assert.Equal(t, last, c.Timeline.Update)
	require.NotNil(t, c.Timeline.Confirm)
	assert.Equal(t, 10, snap.Meta.TopK)
	assert.Equal(t, 48, snap.Meta.WindowHours)
}

func TestExporter_SingleDomainClusterHasNoConfirmTime(t *testing.T) {
	src := &stubClusterSource{
		clusters: []models.StoryCluster{
			{ID: 1, Domains: map[string]int{"sec.gov": 1}, Factors: map[string]float64{}},
		},
		members: map[int64][]models.ClusterMember{},
	}

	e := New(src)
	snap, err := e.Build(context.Background(), 5, 48)
	require.NoError(t, err)
	assert.Nil(t, snap.Clusters[0].Timeline.Confirm)
}

func TestMarshal_ProducesIndentedJSON(t *testing.T) {
	snap := &Snapshot{Meta: Meta{TopK: 1}, Clusters: []Cluster{{DedupGroup: 1, Headline: "x"}}}
	data, err := Marshal(snap)
	require.NoError(t, err)

	var roundTrip Snapshot
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	assert.Equal(t, snap.Meta.TopK, roundTrip.Meta.TopK)
	assert.Contains(t, string(data), "\n  ")
}
