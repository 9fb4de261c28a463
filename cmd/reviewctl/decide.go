package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"review-sentiment/internal/decision"
	"review-sentiment/internal/util"
)

type decideOutput struct {
	Label           string             `json:"label"`
	Score           float64            `json:"score"`
	NormalizedScore float64            `json:"normalized_score"`
	Sentiment       decision.Sentiment `json:"sentiment"`
	Decision        decision.Decision  `json:"decision"`
}

func newDecideCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Map a classifier label and score to a business action",
		Example: `  reviewctl decide --label POSITIVE --score 0.93
  reviewctl decide --label NEGATIVE --score 0.81 --locale ru`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("score") && !v.IsSet("decide.score") {
				return fmt.Errorf("--score is required")
			}
			label := strings.TrimSpace(v.GetString("decide.label"))
			score := v.GetFloat64("decide.score")
			if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
				return fmt.Errorf("score must be in [0,1], got %v", score)
			}
			locale := util.FirstNonEmpty(v.GetString("locale"), decision.DefaultLocale)

			result := decision.Result{Label: label, Score: score}
			out := decideOutput{
				Label:           label,
				Score:           score,
				NormalizedScore: decision.Normalize(label, score),
				Sentiment:       decision.Describe(result),
				Decision:        decision.EvaluateResult(result, locale),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().String("label", "", "classifier label (POSITIVE, NEGATIVE, anything else is neutral)")
	cmd.Flags().Float64("score", 0, "classifier confidence in [0,1]")
	_ = v.BindPFlag("decide.label", cmd.Flags().Lookup("label"))
	_ = v.BindPFlag("decide.score", cmd.Flags().Lookup("score"))
	return cmd
}
