package recommend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/scoreapp/score/internal/model"
)

// ScaledVector is a feature vector in standardized coordinates.
type ScaledVector [model.NumFeatures]float64

// ScalingParams holds per-dimension mean and population standard deviation.
//
// Params fitted on vectors of one dimension order produce meaningless results
// when applied to vectors of another order. Nothing here can detect that, so
// every vector must be built through model.FeatureNames.
type ScalingParams struct {
	Mean [model.NumFeatures]float64
	Std  [model.NumFeatures]float64
}

// Fit computes standardization parameters over vectors. A dimension holding a
// single repeated value gets a standard deviation of exactly 0.
func Fit(vectors []model.FeatureVector) (ScalingParams, error) {
	var p ScalingParams
	if len(vectors) == 0 {
		return p, fmt.Errorf("%w: cannot fit scaler on an empty set", ErrInvalidInput)
	}

	column := make([]float64, len(vectors))
	for dim := 0; dim < model.NumFeatures; dim++ {
		constant := true
		for i, v := range vectors {
			column[i] = v[dim]
			if v[dim] != vectors[0][dim] {
				constant = false
			}
		}

		if constant {
			p.Mean[dim] = vectors[0][dim]
			continue
		}

		mean, variance := stat.PopMeanVariance(column, nil)
		p.Mean[dim] = mean
		p.Std[dim] = math.Sqrt(variance)
	}

	return p, nil
}

// Transform standardizes v. Dimensions with zero spread map to 0.
func (p ScalingParams) Transform(v model.FeatureVector) ScaledVector {
	var out ScaledVector
	for dim := range v {
		if p.Std[dim] == 0 {
			continue
		}
		out[dim] = (v[dim] - p.Mean[dim]) / p.Std[dim]
	}
	return out
}
