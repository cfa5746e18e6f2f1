package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomain_PlainHost(t *testing.T) {
	assert.Equal(t, "reuters.com", domain("reuters.com"))
}

func TestDomain_FromFullURL(t *testing.T) {
	assert.Equal(t, "reuters.com", domain("https://www.reuters.com/markets/us/story"))
}

func TestDomain_Subdomain(t *testing.T) {
	assert.Equal(t, "bloomberg.com", domain("news.bloomberg.com"))
}

func TestSourceWeight_KnownDomains(t *testing.T) {
	assert.Equal(t, 1.0, sourceWeight("sec.gov"))
	assert.Equal(t, 0.9, sourceWeight("reuters.com"))
	assert.Equal(t, 0.9, sourceWeight("bloomberg.com"))
	assert.Equal(t, 0.85, sourceWeight("ft.com"))
	assert.Equal(t, 0.85, sourceWeight("wsj.com"))
	assert.Equal(t, 0.8, sourceWeight("cnbc.com"))
}

func TestSourceWeight_UnknownDomainDefaults(t *testing.T) {
	assert.Equal(t, defaultSourceWeight, sourceWeight("some-random-blog.net"))
}

func TestComputeFactors_HotnessWithinBounds(t *testing.T) {
	domains := map[string]int{"reuters.com": 3, "bloomberg.com": 2, "ft.com": 1}
	f := computeFactors(2, domains)
	h := f.hotness()
	assert.GreaterOrEqual(t, h, 0.0)
	assert.LessOrEqual(t, h, 1.0)
}

func TestComputeFactors_NoveltyDecaysAfterSixHours(t *testing.T) {
	fresh := computeFactors(1, map[string]int{"reuters.com": 1})
	stale := computeFactors(7, map[string]int{"reuters.com": 1})
	assert.Equal(t, 1.0, fresh.Novelty)
	assert.Equal(t, 0.3, stale.Novelty)
	assert.Greater(t, fresh.hotness(), stale.hotness())
}

func TestComputeFactors_ConfirmationCapsAtOne(t *testing.T) {
	domains := map[string]int{"a.com": 1, "b.com": 1, "c.com": 1, "d.com": 1, "e.com": 1}
	f := computeFactors(1, domains)
	assert.Equal(t, 1.0, f.Confirmation)
}

func TestComputeFactors_SingleSourceLowConfirmation(t *testing.T) {
	f := computeFactors(1, map[string]int{"reuters.com": 1})
	assert.Equal(t, 0.25, f.Confirmation)
}
