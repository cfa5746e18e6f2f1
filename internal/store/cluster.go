package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dmitrov/finradar/pkg/models"
)

// ClusterStore owns StoryCluster and ClusterMember persistence — the
// Deduplicator's primary write target.
type ClusterStore struct {
	db *DB
}

// NewClusterStore creates a ClusterStore.
func NewClusterStore(db *DB) *ClusterStore {
	return &ClusterStore{db: db}
}

// ClusterOf returns the cluster a normalized article already belongs to, if
// any.
func (s *ClusterStore) ClusterOf(ctx context.Context, normalizedID int64) (int64, bool, error) {
	var clusterID int64
	err := s.db.SQLX().QueryRowContext(ctx, `
		SELECT cluster_id FROM cluster_members WHERE normalized_id = $1
	`, normalizedID).Scan(&clusterID)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("cluster of: %w", err)
	}
	return clusterID, true, nil
}

// CreateCluster seeds a brand new story cluster from its first article.
func (s *ClusterStore) CreateCluster(ctx context.Context, headline, lang string, firstTime time.Time, site, url string) (int64, error) {
	return createCluster(ctx, s.db.SQLX(), headline, lang, firstTime, site, url)
}

// CreateClusterTx is CreateCluster run inside a caller-managed transaction,
// so cluster creation commits or rolls back together with the rest of the
// Deduplicator's per-document write sequence.
func (s *ClusterStore) CreateClusterTx(ctx context.Context, tx *sqlx.Tx, headline, lang string, firstTime time.Time, site, url string) (int64, error) {
	return createCluster(ctx, tx, headline, lang, firstTime, site, url)
}

func createCluster(ctx context.Context, ex execer, headline, lang string, firstTime time.Time, site, url string) (int64, error) {
	domains := map[string]int{}
	if site != "" {
		domains[site] = 0
	}
	domainsJSON, err := json.Marshal(domains)
	if err != nil {
		return 0, fmt.Errorf("marshal domains: %w", err)
	}
	factorsJSON, err := json.Marshal(map[string]float64{})
	if err != nil {
		return 0, fmt.Errorf("marshal factors: %w", err)
	}

	var id int64
	err = ex.QueryRowContext(ctx, `
		INSERT INTO story_clusters (
			headline, lang, first_time, last_time, domains, urls,
			doc_count, strongest_domain, earliest_url, latest_url, factors, hotness
		) VALUES ($1,$2,$3,$3,$4,$5,0,'','','',$6,0)
		RETURNING id
	`, headline, lang, firstTime, domainsJSON, pq.Array([]string{}), factorsJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create cluster: %w", err)
	}
	return id, nil
}

// AddMember upserts a cluster membership row; on conflict it replaces
// url/site/time_utc, matching §4.A's contract.
func (s *ClusterStore) AddMember(ctx context.Context, clusterID, normalizedID int64, url, site string, t time.Time) error {
	return addMember(ctx, s.db.SQLX(), clusterID, normalizedID, url, site, t)
}

// AddMemberTx is AddMember run inside a caller-managed transaction.
func (s *ClusterStore) AddMemberTx(ctx context.Context, tx *sqlx.Tx, clusterID, normalizedID int64, url, site string, t time.Time) error {
	return addMember(ctx, tx, clusterID, normalizedID, url, site, t)
}

func addMember(ctx context.Context, ex execer, clusterID, normalizedID int64, url, site string, t time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO cluster_members (cluster_id, normalized_id, url, site, time_utc)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (cluster_id, normalized_id) DO UPDATE SET
			url = EXCLUDED.url,
			site = EXCLUDED.site,
			time_utc = EXCLUDED.time_utc
	`, clusterID, normalizedID, url, site, t)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// Get fetches a story cluster by id.
func (s *ClusterStore) Get(ctx context.Context, clusterID int64) (*models.StoryCluster, error) {
	var c models.StoryCluster
	var domainsJSON, factorsJSON []byte
	var urls pq.StringArray
	err := s.db.SQLX().QueryRowContext(ctx, `
		SELECT id, headline, lang, first_time, last_time, domains, urls,
		       doc_count, strongest_domain, earliest_url, latest_url, factors, hotness, updated_at
		FROM story_clusters WHERE id = $1
	`, clusterID).Scan(
		&c.ID, &c.Headline, &c.Lang, &c.FirstTime, &c.LastTime, &domainsJSON, &urls,
		&c.DocCount, &c.StrongestDomain, &c.EarliestURL, &c.LatestURL, &factorsJSON, &c.Hotness, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	c.URLs = urls
	if err := json.Unmarshal(domainsJSON, &c.Domains); err != nil {
		return nil, fmt.Errorf("unmarshal domains: %w", err)
	}
	if err := json.Unmarshal(factorsJSON, &c.Factors); err != nil {
		return nil, fmt.Errorf("unmarshal factors: %w", err)
	}
	return &c, nil
}

// UpdateAggregates bumps doc_count, widens the time window and merges the
// url/domain bump for a newly added member.
func (s *ClusterStore) UpdateAggregates(ctx context.Context, clusterID int64, domains map[string]int, urls []string, firstTime, lastTime time.Time, docCount int) error {
	return updateAggregates(ctx, s.db.SQLX(), clusterID, domains, urls, firstTime, lastTime, docCount)
}

// UpdateAggregatesTx is UpdateAggregates run inside a caller-managed
// transaction.
func (s *ClusterStore) UpdateAggregatesTx(ctx context.Context, tx *sqlx.Tx, clusterID int64, domains map[string]int, urls []string, firstTime, lastTime time.Time, docCount int) error {
	return updateAggregates(ctx, tx, clusterID, domains, urls, firstTime, lastTime, docCount)
}

func updateAggregates(ctx context.Context, ex execer, clusterID int64, domains map[string]int, urls []string, firstTime, lastTime time.Time, docCount int) error {
	domainsJSON, err := json.Marshal(domains)
	if err != nil {
		return fmt.Errorf("marshal domains: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		UPDATE story_clusters SET
			domains = $2, urls = $3, first_time = $4, last_time = $5,
			doc_count = $6, updated_at = now()
		WHERE id = $1
	`, clusterID, domainsJSON, pq.Array(urls), firstTime, lastTime, docCount)
	if err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}
	return nil
}

// UpdateSummary sets the cluster's recomputed earliest/latest/strongest
// links.
func (s *ClusterStore) UpdateSummary(ctx context.Context, clusterID int64, earliestURL, latestURL, strongestDomain string) error {
	return updateSummary(ctx, s.db.SQLX(), clusterID, earliestURL, latestURL, strongestDomain)
}

// UpdateSummaryTx is UpdateSummary run inside a caller-managed transaction.
func (s *ClusterStore) UpdateSummaryTx(ctx context.Context, tx *sqlx.Tx, clusterID int64, earliestURL, latestURL, strongestDomain string) error {
	return updateSummary(ctx, tx, clusterID, earliestURL, latestURL, strongestDomain)
}

func updateSummary(ctx context.Context, ex execer, clusterID int64, earliestURL, latestURL, strongestDomain string) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE story_clusters SET
			earliest_url = $2, latest_url = $3, strongest_domain = $4, updated_at = now()
		WHERE id = $1
	`, clusterID, earliestURL, latestURL, strongestDomain)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	return nil
}

// UpdateScore persists recomputed hotness factors and the final score.
func (s *ClusterStore) UpdateScore(ctx context.Context, clusterID int64, factors map[string]float64, hotness float64) error {
	return updateScore(ctx, s.db.SQLX(), clusterID, factors, hotness)
}

// UpdateScoreTx is UpdateScore run inside a caller-managed transaction.
func (s *ClusterStore) UpdateScoreTx(ctx context.Context, tx *sqlx.Tx, clusterID int64, factors map[string]float64, hotness float64) error {
	return updateScore(ctx, tx, clusterID, factors, hotness)
}

func updateScore(ctx context.Context, ex execer, clusterID int64, factors map[string]float64, hotness float64) error {
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		UPDATE story_clusters SET factors = $2, hotness = $3, updated_at = now()
		WHERE id = $1
	`, clusterID, factorsJSON, hotness)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}

// UnprocessedClusters returns clusters with no AnalyzedNews row yet,
// ordered by first_time DESC. Uses NOT EXISTS rather than a LEFT JOIN so a
// stale or duplicated analyzed row can never mask a cluster as processed.
func (s *ClusterStore) UnprocessedClusters(ctx context.Context, limit int) ([]models.StoryCluster, error) {
	rows, err := s.db.SQLX().QueryContext(ctx, `
		SELECT sc.id, sc.headline, sc.lang, sc.first_time, sc.last_time, sc.domains, sc.urls,
		       sc.doc_count, sc.strongest_domain, sc.earliest_url, sc.latest_url, sc.factors, sc.hotness, sc.updated_at
		FROM story_clusters sc
		WHERE NOT EXISTS (
			SELECT 1 FROM llm_analyzed_news lan WHERE lan.cluster_id = sc.id
		)
		ORDER BY sc.first_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("unprocessed clusters: %w", err)
	}
	defer rows.Close()

	var out []models.StoryCluster
	for rows.Next() {
		var c models.StoryCluster
		var domainsJSON, factorsJSON []byte
		var urls pq.StringArray
		if err := rows.Scan(
			&c.ID, &c.Headline, &c.Lang, &c.FirstTime, &c.LastTime, &domainsJSON, &urls,
			&c.DocCount, &c.StrongestDomain, &c.EarliestURL, &c.LatestURL, &factorsJSON, &c.Hotness, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		c.URLs = urls
		if err := json.Unmarshal(domainsJSON, &c.Domains); err != nil {
			return nil, fmt.Errorf("unmarshal domains: %w", err)
		}
		if err := json.Unmarshal(factorsJSON, &c.Factors); err != nil {
			return nil, fmt.Errorf("unmarshal factors: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RepresentativeArticle returns the earliest member of a cluster by
// time_utc, used as the LLM's input article.
func (s *ClusterStore) RepresentativeArticle(ctx context.Context, clusterID int64) (int64, error) {
	var normalizedID int64
	err := s.db.SQLX().QueryRowContext(ctx, `
		SELECT normalized_id FROM cluster_members
		WHERE cluster_id = $1
		ORDER BY time_utc ASC
		LIMIT 1
	`, clusterID).Scan(&normalizedID)
	if err != nil {
		return 0, fmt.Errorf("representative article: %w", err)
	}
	return normalizedID, nil
}

// Members returns every member of a cluster ordered by time_utc ascending,
// used by the Deduplicator to recompute summary links (earliest/latest/
// strongest-on-tie all depend on this order) and by the snapshot exporter.
func (s *ClusterStore) Members(ctx context.Context, clusterID int64) ([]models.ClusterMember, error) {
	return members(ctx, s.db.SQLX(), clusterID)
}

// MembersTx is Members run inside a caller-managed transaction, so the
// Deduplicator's recompute step sees its own just-inserted member row.
func (s *ClusterStore) MembersTx(ctx context.Context, tx *sqlx.Tx, clusterID int64) ([]models.ClusterMember, error) {
	return members(ctx, tx, clusterID)
}

func members(ctx context.Context, ex execer, clusterID int64) ([]models.ClusterMember, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT cluster_id, normalized_id, url, site, time_utc
		FROM cluster_members WHERE cluster_id = $1
		ORDER BY time_utc ASC
	`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("cluster members: %w", err)
	}
	defer rows.Close()

	var out []models.ClusterMember
	for rows.Next() {
		var m models.ClusterMember
		if err := rows.Scan(&m.ClusterID, &m.NormalizedID, &m.URL, &m.Site, &m.TimeUTC); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AllClusters returns every story cluster ordered by hotness, used by the
// snapshot exporter.
func (s *ClusterStore) AllClusters(ctx context.Context, limit int) ([]models.StoryCluster, error) {
	rows, err := s.db.SQLX().QueryContext(ctx, `
		SELECT id, headline, lang, first_time, last_time, domains, urls,
		       doc_count, strongest_domain, earliest_url, latest_url, factors, hotness, updated_at
		FROM story_clusters
		ORDER BY hotness DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("all clusters: %w", err)
	}
	defer rows.Close()

	var out []models.StoryCluster
	for rows.Next() {
		var c models.StoryCluster
		var domainsJSON, factorsJSON []byte
		var urls pq.StringArray
		if err := rows.Scan(
			&c.ID, &c.Headline, &c.Lang, &c.FirstTime, &c.LastTime, &domainsJSON, &urls,
			&c.DocCount, &c.StrongestDomain, &c.EarliestURL, &c.LatestURL, &factorsJSON, &c.Hotness, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		c.URLs = urls
		if err := json.Unmarshal(domainsJSON, &c.Domains); err != nil {
			return nil, fmt.Errorf("unmarshal domains: %w", err)
		}
		if err := json.Unmarshal(factorsJSON, &c.Factors); err != nil {
			return nil, fmt.Errorf("unmarshal factors: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
