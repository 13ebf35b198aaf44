package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fixhub/fixhub-backend/internal/metrics"
	"github.com/fixhub/fixhub-backend/internal/models"
	repo "github.com/fixhub/fixhub-backend/internal/repository"
)

const (
	// DefaultMaxDistanceMeters bounds a search when the caller does not.
	DefaultMaxDistanceMeters = 10000

	maxSearchResults = 10
	verifiedBonus    = 5
)

type SearchQuery struct {
	Keywords          []string
	Origin            models.Point
	MaxDistanceMeters float64
	SortBy            string // "" = composite score, "rating" = rating only
}

type ProviderSummary struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Skills         []string `json:"skills"`
	Rating         float64  `json:"rating"`
	CompletedJobs  int      `json:"completed_jobs"`
	Verified       bool     `json:"verified"`
	DistanceMeters float64  `json:"distance_meters"`
	Score          float64  `json:"score"`
}

// SearchCache is the optional result cache in front of the geospatial
// query. Implementations are best-effort; a miss and a failure look
// the same.
type SearchCache interface {
	Get(ctx context.Context, key string, dest any) bool
	Put(ctx context.Context, key string, v any)
}

type DirectoryService struct {
	users repo.Users
	cache SearchCache // nil disables caching
}

func NewDirectoryService(users repo.Users, cache SearchCache) *DirectoryService {
	return &DirectoryService{users: users, cache: cache}
}

// Search returns ranked providers near the origin. Rank score is
// 3×rating + 2×completedJobs + verified bonus; ties break by ascending
// distance. No matches is an empty result, not an error.
func (s *DirectoryService) Search(ctx context.Context, q SearchQuery) ([]ProviderSummary, error) {
	keywords := normalizeKeywords(q.Keywords)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: keywords required", ErrInvalidQuery)
	}
	if q.Origin.IsZero() || q.Origin.Validate() != nil {
		return nil, fmt.Errorf("%w: location required", ErrInvalidQuery)
	}
	if q.MaxDistanceMeters <= 0 {
		q.MaxDistanceMeters = DefaultMaxDistanceMeters
	}

	key := searchKey(keywords, q)
	if s.cache != nil {
		var cached []ProviderSummary
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	matches, err := s.users.FindProviders(ctx, repo.ProviderQuery{
		Keywords:          keywords,
		Origin:            q.Origin,
		MaxDistanceMeters: q.MaxDistanceMeters,
	})
	if err != nil {
		return nil, err
	}

	out := make([]ProviderSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, ProviderSummary{
			ID:             m.User.ID,
			Username:       m.User.Username,
			Skills:         m.User.Skills,
			Rating:         m.User.Rating,
			CompletedJobs:  m.User.CompletedJobs,
			Verified:       m.User.Verified,
			DistanceMeters: m.DistanceMeters,
			Score:          rankScore(m.User),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.SortBy == "rating" {
			if out[i].Rating != out[j].Rating {
				return out[i].Rating > out[j].Rating
			}
		} else if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DistanceMeters < out[j].DistanceMeters
	})

	if len(out) > maxSearchResults {
		out = out[:maxSearchResults]
	}
	metrics.MatchesServed.Add(float64(len(out)))

	if s.cache != nil {
		s.cache.Put(ctx, key, out)
	}
	return out, nil
}

func rankScore(u models.User) float64 {
	score := 3*u.Rating + 2*float64(u.CompletedJobs)
	if u.Verified {
		score += verifiedBonus
	}
	return score
}

func normalizeKeywords(in []string) []string {
	var out []string
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func searchKey(keywords []string, q SearchQuery) string {
	return fmt.Sprintf("search:%s|%.5f,%.5f|%.0f|%s",
		strings.Join(keywords, ","), q.Origin.Lat, q.Origin.Lng, q.MaxDistanceMeters, q.SortBy)
}
