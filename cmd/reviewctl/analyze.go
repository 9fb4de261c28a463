package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"review-sentiment/internal/api"
	"review-sentiment/internal/classifier"
	"review-sentiment/internal/config"
	"review-sentiment/internal/decision"
	"review-sentiment/internal/sheets"
	"review-sentiment/internal/util"
)

const excerptWidth = 60

type analyzeOptions struct {
	settings *config.Config
	limit    int
	ship     bool
	output   string
}

type analyzedReview struct {
	Review          string            `json:"review"`
	Label           string            `json:"label,omitempty"`
	Confidence      string            `json:"confidence,omitempty"`
	NormalizedScore float64           `json:"normalized_score"`
	Decision        decision.Decision `json:"decision"`
	Classifier      string            `json:"classifier,omitempty"`
	Error           string            `json:"error,omitempty"`
}

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify a review dataset and print the chosen actions",
		Example: `  reviewctl analyze --reviews reviews_test.tsv --limit 20
  reviewctl analyze --offline --output json
  reviewctl analyze --log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(v)
			if err != nil {
				return err
			}
			if path := strings.TrimSpace(v.GetString("analyze.reviews")); path != "" {
				settings.Reviews.Path = path
				settings.Reviews.S3Bucket = ""
			}
			if column := strings.TrimSpace(v.GetString("analyze.column")); column != "" {
				settings.Reviews.Column = column
			}
			if v.GetBool("analyze.offline") {
				settings.Classifier.Disable = true
			}
			output := strings.ToLower(strings.TrimSpace(v.GetString("analyze.output")))
			if output != "table" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), analyzeOptions{
				settings: settings,
				limit:    v.GetInt("analyze.limit"),
				ship:     v.GetBool("analyze.log"),
				output:   output,
			})
		},
	}
	cmd.Flags().String("reviews", "", "path to a tab-separated review file (overrides config)")
	cmd.Flags().String("column", "", "name of the review text column")
	cmd.Flags().Int("limit", 0, "maximum number of reviews to analyse (0 = all)")
	cmd.Flags().Bool("log", false, "ship every result to the configured spreadsheet webhook")
	cmd.Flags().Bool("offline", false, "skip the hosted model and use the built-in lexicon")
	cmd.Flags().String("output", "table", "output format: table or json")
	for _, name := range []string{"reviews", "column", "limit", "log", "offline", "output"} {
		_ = v.BindPFlag("analyze."+name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func runAnalyze(ctx context.Context, w io.Writer, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	settings := opts.settings

	source, err := api.ReviewSource(ctx, settings.Reviews)
	if err != nil {
		return err
	}
	items, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load reviews: %w", err)
	}
	if opts.limit > 0 && opts.limit < len(items) {
		items = items[:opts.limit]
	}

	cache, redisClient := api.ClassifierCache(ctx, settings.Cache)
	if redisClient != nil {
		defer redisClient.Close()
	}
	hosted := classifier.Cached(api.HostedClassifier(settings.Classifier), cache, settings.Cache.TTL)
	clf := classifier.WithFallback(hosted, api.OfflineClassifier(settings.Classifier))

	var dispatcher *sheets.Dispatcher
	if opts.ship {
		client := sheets.NewClient(sheets.Config{
			WebhookURL: settings.Sheets.WebhookURL,
			Timeout:    settings.Sheets.Timeout,
			MaxRetries: settings.Sheets.MaxRetries,
		})
		if !client.Enabled() {
			logrus.Warn("--log given but no webhook URL is configured")
		}
		dispatcher = sheets.NewDispatcher(client, len(items)+1)
	}

	results := make([]analyzedReview, 0, len(items))
	for _, review := range items {
		results = append(results, analyzeOne(ctx, clf, review, settings.Locale, dispatcher))
	}

	if dispatcher != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := dispatcher.Close(closeCtx); err != nil {
			logrus.WithError(err).Warn("sheets queue not fully drained")
		}
		stats := dispatcher.Stats()
		logrus.WithFields(logrus.Fields{
			"delivered": stats.Delivered,
			"failed":    stats.Failed,
			"skipped":   stats.Skipped,
		}).Info("sheets delivery finished")
	}

	if opts.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return writeTable(w, clf.Name(), results)
}

func analyzeOne(ctx context.Context, clf classifier.Classifier, review, locale string, dispatcher *sheets.Dispatcher) analyzedReview {
	out := analyzedReview{Review: review}
	predictions, answeredBy, err := classifier.ClassifyNamed(ctx, clf, review)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	result, err := classifier.Top(predictions)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	verdict := decision.EvaluateResult(result, locale)
	out.Label = result.Label
	out.Confidence = decision.ConfidencePercent(result.Score)
	out.NormalizedScore = decision.Normalize(result.Label, result.Score)
	out.Decision = verdict
	out.Classifier = answeredBy

	if dispatcher != nil {
		dispatcher.Enqueue(sheets.NewRecord(time.Now(), review, result, verdict, map[string]any{
			"source":     "reviewctl",
			"classifier": answeredBy,
		}))
	}
	return out
}

func writeTable(w io.Writer, classifierName string, results []analyzedReview) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLABEL\tCONFIDENCE\tSCORE\tACTION\tREVIEW")
	counts := make(map[decision.Action]int)
	failed := 0
	for i, r := range results {
		excerpt := util.Excerpt(strings.Join(strings.Fields(r.Review), " "), excerptWidth)
		if r.Error != "" {
			failed++
			fmt.Fprintf(tw, "%d\t-\t-\t-\tERROR: %s\t%s\n", i+1, r.Error, excerpt)
			continue
		}
		counts[r.Decision.Action]++
		fmt.Fprintf(tw, "%d\t%s\t%s%%\t%.3f\t%s\t%s\n", i+1, r.Label, r.Confidence, r.NormalizedScore, r.Decision.Action, excerpt)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d reviews classified by %s", len(results), classifierName)
	for _, action := range decision.Actions() {
		fmt.Fprintf(w, ", %s=%d", action, counts[action])
	}
	if failed > 0 {
		fmt.Fprintf(w, ", failed=%d", failed)
	}
	fmt.Fprintln(w)
	return nil
}
