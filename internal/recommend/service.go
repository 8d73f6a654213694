package recommend

import (
	"fmt"

	"github.com/scoreapp/score/internal/model"
)

const DefaultK = 5

// Service answers similarity queries against a fixed reference library.
// The fitted scaling and the candidate set are computed once in NewService and
// never modified, so a Service is safe for concurrent use.
type Service struct {
	library    *Library
	params     ScalingParams
	candidates []Candidate
	decay      float64
	defaultK   int
}

type Option func(*Service)

// WithDecay overrides the distance-to-score slope.
func WithDecay(decay float64) Option {
	return func(s *Service) {
		s.decay = decay
	}
}

// WithDefaultK sets the result count used by RecommendDefault.
func WithDefaultK(k int) Option {
	return func(s *Service) {
		s.defaultK = k
	}
}

// NewService fits the scaler on the library and pre-scales every track.
func NewService(lib *Library, opts ...Option) (*Service, error) {
	params, err := Fit(lib.Features())
	if err != nil {
		return nil, fmt.Errorf("failed to fit library: %w", err)
	}

	s := &Service{
		library:  lib,
		params:   params,
		decay:    DefaultDecay,
		defaultK: DefaultK,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.candidates = make([]Candidate, lib.Len())
	for i := 0; i < lib.Len(); i++ {
		s.candidates[i] = Candidate{ID: i, Vector: params.Transform(lib.Track(i).Features)}
	}

	return s, nil
}

// Recommend returns the k library tracks most similar to features.
func (s *Service) Recommend(features model.FeatureVector, k int) ([]model.Recommendation, error) {
	if err := validateFeatures(features); err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative, got %d", ErrInvalidInput, k)
	}

	query := s.params.Transform(features)
	neighbors := Rank(query, s.candidates, k)

	recs := make([]model.Recommendation, 0, len(neighbors))
	for _, n := range neighbors {
		track := s.library.Track(n.ID)
		recs = append(recs, model.Recommendation{
			Title:           track.Title,
			Artist:          track.Artist,
			SimilarityScore: Score(n.Distance, s.decay),
		})
	}
	return recs, nil
}

// RecommendDefault is Recommend with the configured default k.
func (s *Service) RecommendDefault(features model.FeatureVector) ([]model.Recommendation, error) {
	return s.Recommend(features, s.defaultK)
}

// Params returns the fitted scaling parameters.
func (s *Service) Params() ScalingParams {
	return s.params
}
