package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrov/finradar/pkg/models"
)

func TestStripHTML_RemovesTagsAndDecodesEntities(t *testing.T) {
	got := stripHTML("<p>Fed &amp; Treasury   meet</p>")
	assert.Equal(t, "Fed & Treasury meet", got)
}

func TestStripHTML_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", stripHTML("a\n\n  b\tc"))
}

func TestIsSpam_ShortContentIsSpam(t *testing.T) {
	assert.True(t, isSpam("too short"))
}

func TestIsSpam_PromoPatternIsSpam(t *testing.T) {
	assert.True(t, isSpam("Click here to claim your prize now, limited stock available today only for you"))
}

func TestIsSpam_OrdinaryArticleIsNotSpam(t *testing.T) {
	content := "The Federal Reserve held interest rates steady on Wednesday, citing persistent inflation concerns across the economy."
	assert.False(t, isSpam(content))
}

func TestDetectLanguage_CyrillicMajority(t *testing.T) {
	assert.Equal(t, "ru", detectLanguage("Центральный банк повысил процентную ставку на фоне роста инфляции в стране сегодня."))
}

func TestDetectLanguage_LatinMajority(t *testing.T) {
	assert.Equal(t, "en", detectLanguage("The central bank raised interest rates amid persistent inflation pressures across the economy."))
}

func TestDetectLanguage_TooLittleSignalIsUnknown(t *testing.T) {
	assert.Equal(t, "unknown", detectLanguage("123 456"))
}

func TestExtractEntities_TickersAndProperNouns(t *testing.T) {
	entities := extractEntities("NVDA surged after Jerome Powell spoke about AAPL and Microsoft Corp earnings")
	assert.Contains(t, entities, "NVDA")
	assert.Contains(t, entities, "AAPL")
	assert.Contains(t, entities, "Jerome Powell")
}

func TestExtractEntities_CapsAtTwenty(t *testing.T) {
	content := ""
	for i := 0; i < 30; i++ {
		content += "Entity Name "
	}
	entities := extractEntities(content)
	assert.LessOrEqual(t, len(entities), 20)
}

func TestQualityScore_LongTitledSourcedArticleScoresHigh(t *testing.T) {
	content := make([]byte, 500)
	for i := range content {
		content[i] = 'x'
	}
	score := qualityScore("A reasonably long headline here", string(content), "https://reuters.com/a", "reuters.com", false)
	assert.InDelta(t, 1.0, score, 0.01)
}

func TestQualityScore_SpamArticlePenalized(t *testing.T) {
	clean := qualityScore("A reasonably long headline here", "some content of decent length padded out", "https://x.com/a", "x.com", false)
	spam := qualityScore("A reasonably long headline here", "some content of decent length padded out", "https://x.com/a", "x.com", true)
	assert.Less(t, spam, clean)
}

func TestRepairTitle_EmptyTitleIsSynthesized(t *testing.T) {
	content := "This is the first sentence of the article. It continues with more detail about the markets today and beyond."
	got := repairTitle("", content)
	assert.NotEmpty(t, got)
	assert.NotEqual(t, content, got)
}

func TestRepairTitle_GoodTitleKeptAsIs(t *testing.T) {
	assert.Equal(t, "Fed holds rates steady", repairTitle("Fed holds rates steady", "Body content unrelated to the title here."))
}

func TestReadingStats_MinimumOneMinute(t *testing.T) {
	words, minutes := readingStats("just a few words here")
	assert.Equal(t, 5, words)
	assert.Equal(t, 1, minutes)
}

func TestReadingStats_ScalesWithWordCount(t *testing.T) {
	content := ""
	for i := 0; i < 400; i++ {
		content += "word "
	}
	_, minutes := readingStats(content)
	assert.Equal(t, 2, minutes)
}

func TestProcess_FiltersLowQualityArticle(t *testing.T) {
	a := &models.RawArticle{Title: "x", Content: "too short"}
	_, ok, err := process(a)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestProcess_KeepsDecentQualityArticle(t *testing.T) {
	a := &models.RawArticle{
		Title:   "Fed holds interest rates steady amid inflation concerns",
		Content: "The Federal Reserve decided on Wednesday to hold interest rates steady, citing ongoing concerns about inflation and its effect on consumer spending across the broader economy this quarter.",
		Link:    "https://reuters.com/a",
		Source:  "reuters.com",
	}
	na, ok, err := process(a)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "en", na.LanguageCode)
	assert.Greater(t, na.WordCount, 0)
}
