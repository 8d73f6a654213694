package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scoreapp/score/internal/model"
	"github.com/scoreapp/score/internal/recommend"
)

func newRecommendCommand(ctx *commandContext) *cobra.Command {
	var k int
	values := make([]float64, model.NumFeatures)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "List reference pieces similar to a feature set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			features := make(map[string]float64, model.NumFeatures)
			for i, name := range model.FeatureNames {
				if !cmd.Flags().Changed(flagName(name)) {
					return fmt.Errorf("--%s is required", flagName(name))
				}
				features[name] = values[i]
			}
			vec, err := recommend.FeatureVectorFromMap(features)
			if err != nil {
				return err
			}

			svc, err := ctx.recommender()
			if err != nil {
				return err
			}
			var recs []model.Recommendation
			if cmd.Flags().Changed("k") {
				recs, err = svc.Recommend(vec, k)
			} else {
				recs, err = svc.RecommendDefault(vec)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No recommendations.")
				return nil
			}
			fmt.Fprintln(out, recommendationTable(recs))
			return nil
		},
	}

	for i, name := range model.FeatureNames {
		cmd.Flags().Float64Var(&values[i], flagName(name), 0, "Feature "+name)
	}
	cmd.Flags().IntVar(&k, "k", 0, "Number of results")

	return cmd
}

// flagName turns average_pitch into average-pitch.
func flagName(feature string) string {
	return strings.ReplaceAll(feature, "_", "-")
}
