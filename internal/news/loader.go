package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/geo"
)

// articleRecord is the on-disk shape of a sample data entry.
type articleRecord struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Desc      string   `json:"description"`
	URL       string   `json:"url"`
	Published string   `json:"publication_date"`
	Source    string   `json:"source_name"`
	Category  []string `json:"category"`
	Relevance float64  `json:"relevance_score"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// LoadSampleData reads the JSON article fixture at path and inserts every
// article that is not already present. Returns the number of articles
// inserted.
func LoadSampleData(ctx context.Context, store ArticleStore, path string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read sample data %s: %w", path, err)
	}

	var records []articleRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("failed to parse sample data %s: %w", path, err)
	}

	inserted := 0
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		if _, err := store.GetByID(ctx, rec.ID); err == nil {
			continue // already loaded
		} else if !errors.Is(err, ErrNotFound) {
			return inserted, err
		}

		published, err := time.Parse(time.RFC3339, rec.Published)
		if err != nil {
			logger.Warn("skipping article with bad publication date",
				"id", rec.ID, "publication_date", rec.Published, "error", err)
			continue
		}

		a := Article{
			ID:          rec.ID,
			Title:       rec.Title,
			Description: rec.Desc,
			URL:         rec.URL,
			PublishedAt: published,
			Source:      rec.Source,
			Categories:  rec.Category,
			Relevance:   rec.Relevance,
		}
		if rec.Latitude != nil && rec.Longitude != nil {
			a.Location = &geo.Point{Lat: *rec.Latitude, Lon: *rec.Longitude}
		}

		if err := store.Insert(ctx, a); err != nil {
			return inserted, fmt.Errorf("failed to insert article %s: %w", a.ID, err)
		}
		inserted++
	}

	logger.Info("loaded sample articles", "inserted", inserted, "total", len(records))
	return inserted, nil
}

// simulation knobs; kinds are drawn with these relative probabilities and
// event ages from the hour buckets below, skewed heavily toward recent hours.
var (
	simKinds       = []InteractionKind{KindView, KindClick, KindShare, KindBookmark, KindComment}
	simKindWeights = []float64{0.30, 0.40, 0.20, 0.08, 0.02}
	simAgeHours    = []float64{1, 2, 4, 8, 12, 24}
	simAgeWeights  = []float64{0.30, 0.25, 0.20, 0.15, 0.08, 0.02}
)

// SimulateInteractions generates a plausible interaction history for every
// article in the store when the interaction store is empty. More relevant
// articles attract more events, and interacting users are placed within
// roughly 50 km of the article's location. A no-op when events already exist.
// Returns the number of events generated.
func SimulateInteractions(ctx context.Context, articles ArticleStore, interactions InteractionStore, rng *rand.Rand, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := interactions.Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		logger.Debug("interaction store not empty, skipping simulation", "events", existing)
		return 0, nil
	}

	candidates, err := articles.Query(ctx, ArticleFilter{Limit: 50})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	generated := 0
	for _, a := range candidates {
		base := int(a.Relevance * 10)
		if base < 1 {
			base = 1
		}
		n := base + rng.Intn(6)

		for i := 0; i < n; i++ {
			ev := InteractionEvent{
				ID:         uuid.NewString(),
				ArticleID:  a.ID,
				UserID:     fmt.Sprintf("user_%d", 1+rng.Intn(100)),
				Kind:       simKinds[weightedIndex(rng, simKindWeights)],
				OccurredAt: now.Add(-time.Duration(simAgeHours[weightedIndex(rng, simAgeWeights)] * float64(time.Hour))),
			}
			if a.Location != nil {
				ev.Location = &geo.Point{
					Lat: a.Location.Lat + (rng.Float64()-0.5),
					Lon: a.Location.Lon + (rng.Float64()-0.5),
				}
			} else {
				ev.Location = &geo.Point{
					Lat: rng.Float64()*180 - 90,
					Lon: rng.Float64()*360 - 180,
				}
			}

			if err := interactions.Append(ctx, ev); err != nil {
				return generated, fmt.Errorf("failed to append simulated event: %w", err)
			}
			generated++
		}
	}

	logger.Info("simulated interaction events", "events", generated, "articles", len(candidates))
	return generated, nil
}

// weightedIndex draws an index from weights proportional to their values.
func weightedIndex(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i
		}
	}
	return len(weights) - 1
}
