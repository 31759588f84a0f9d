package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/kartoza/lab-test-optimizer/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultSmokeSymptoms = []string{"high fever", "joint pain", "headache", "rash"}

func (a *app) newAnalyzeCommand() *cobra.Command {
	var (
		url      string
		local    bool
		symptoms []string
		age      int
		gender   string
		repeat   int
		asJSON   bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Send a symptom query to a running server, or evaluate it locally",
		Long: `Send a symptom query and print the recommendation.

By default the query is posted to a running server. With --repeat the same
query is sent concurrently several times and the responses must agree.
With --local the query is evaluated in-process against the configured
artifact.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := models.SymptomQuery{Age: age, Gender: gender, Symptoms: symptoms}

			var result models.RecommendationResult
			if local {
				result = a.newEngine(false).Recommend(q)
			} else {
				if url == "" {
					url = fmt.Sprintf("http://localhost:%d/analyze", a.cfg.Server.Port)
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()

				var err error
				result, err = smokeTest(ctx, url, q, repeat)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(out, result)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", "", "analyze endpoint (default http://localhost:<server.port>/analyze)")
	f.BoolVar(&local, "local", false, "evaluate in-process instead of calling a server")
	f.StringSliceVar(&symptoms, "symptoms", defaultSmokeSymptoms, "comma separated symptoms")
	f.IntVar(&age, "age", 30, "patient age")
	f.StringVar(&gender, "gender", "Male", "patient gender")
	f.IntVar(&repeat, "repeat", 1, "number of concurrent identical requests")
	f.BoolVar(&asJSON, "json", false, "print the raw JSON result")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "overall request timeout")

	return cmd
}

// smokeTest posts q to url n times concurrently and returns the shared
// result. Differing responses are an error.
func smokeTest(ctx context.Context, url string, q models.SymptomQuery, n int) (models.RecommendationResult, error) {
	if n < 1 {
		n = 1
	}
	body, err := json.Marshal(q)
	if err != nil {
		return models.RecommendationResult{}, err
	}

	results := make([]models.RecommendationResult, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			r, err := postAnalyze(gctx, url, body)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.RecommendationResult{}, err
	}

	for i := 1; i < n; i++ {
		if !reflect.DeepEqual(results[0], results[i]) {
			return results[0], fmt.Errorf("response %d differs from response 1", i+1)
		}
	}
	return results[0], nil
}

func postAnalyze(ctx context.Context, url string, body []byte) (models.RecommendationResult, error) {
	var result models.RecommendationResult

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("post %s: %s: %s", url, resp.Status, errorMessage(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// errorMessage extracts the API error from a failed response. Bodies that
// are not an error object, such as proxy pages, are reported as text.
func errorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return http.StatusText(resp.StatusCode)
	}
	var apiErr models.ErrorResponse
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func printResult(w io.Writer, r models.RecommendationResult) {
	fmt.Fprintf(w, "Predicted diseases: %s\n", strings.Join(r.PredictedDiseases, ", "))
	fmt.Fprintf(w, "Confidence:         %.2f\n", r.ConfidenceScore)
	fmt.Fprintf(w, "Status:             %s (%s)\n", r.Status, r.Source)
	fmt.Fprintln(w, "Recommended tests:")
	if len(r.RecommendedTests) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, t := range r.RecommendedTests {
		fmt.Fprintf(w, "  - %s [%s] %.2f: %s\n", t.TestName, t.Importance, t.Cost, t.Reason)
	}
	fmt.Fprintf(w, "Total cost:         %.2f\n", r.TotalCost)
	fmt.Fprintf(w, "Estimated savings:  %.2f\n", r.Savings)
}
