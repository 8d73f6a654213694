package model

// NumFeatures is the dimensionality of a FeatureVector
const NumFeatures = 7

// FeatureNames lists the feature dimensions in vector order. Query vectors and
// library vectors must both be built in this order.
var FeatureNames = [NumFeatures]string{
	"bpm",
	"average_pitch",
	"pitch_range",
	"key_stability",
	"mode_major",
	"note_density",
	"rhythm_variety",
}

// FeatureVector is an ordered tuple of audio descriptors. mode_major is 0 for
// minor and 1 for major; every other dimension is continuous.
type FeatureVector [NumFeatures]float64

// Map returns the vector keyed by feature name.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range FeatureNames {
		m[name] = v[i]
	}
	return m
}

// Recommendation is one similar reference track
type Recommendation struct {
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	SimilarityScore float64 `json:"similarity_score"`
}

// RecommendRequest is the body of POST /api/recommend
type RecommendRequest struct {
	Features map[string]*float64 `json:"features" validate:"required,len=7"`
	K        *int                `json:"k" validate:"omitempty,min=0,max=50"`
}

// RecommendResponse is returned by POST /api/recommend
type RecommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}
