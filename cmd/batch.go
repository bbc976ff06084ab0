package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/comps-intel/internal/model"
)

var (
	batchJobsFile   string
	batchConcurrent int
	batchLimit      int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run many analyses from a jobs file against one shared cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		jobs, err := loadJobs(batchJobsFile)
		if err != nil {
			return err
		}

		env, err := initAnalyzer(ctx, cfg, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrent
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		outcomes, err := processBatch(ctx, jobs, batchLimit, concurrency, env.Analyzer.Analyze)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), outcomes)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchJobsFile, "jobs", "jobs.yaml", "YAML jobs file")
	batchCmd.Flags().IntVar(&batchConcurrent, "concurrency", 0, "concurrent analyses (default from config)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of jobs to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

// batchJob is one analysis request in a jobs file.
type batchJob struct {
	Company  string   `yaml:"company"`
	Files    []string `yaml:"files"`
	Response string   `yaml:"copilot_response"`
}

type jobsFile struct {
	Jobs []batchJob `yaml:"jobs"`
}

// batchOutcome is written for every job, in jobs-file order.
type batchOutcome struct {
	Company string                `json:"company"`
	Result  *model.AnalysisResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func loadJobs(path string) ([]batchJob, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read jobs file %s", path)
	}
	var f jobsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, eris.Wrapf(err, "batch: parse jobs file %s", path)
	}
	for i, j := range f.Jobs {
		if strings.TrimSpace(j.Company) == "" {
			return nil, eris.Errorf("batch: job %d has no company", i+1)
		}
	}
	return f.Jobs, nil
}

// analyzeFunc is the callback signature for running one analysis.
type analyzeFunc func(ctx context.Context, subject string, candidates []model.FileReference) (*model.AnalysisResult, error)

// processBatch applies limit, then runs jobs concurrently. A failed job is
// recorded in its outcome and does not abort the batch.
func processBatch(ctx context.Context, jobs []batchJob, limit, concurrency int, analyze analyzeFunc) ([]batchOutcome, error) {
	if len(jobs) == 0 {
		zap.L().Info("no jobs found")
		return nil, nil
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("jobs", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, cached atomic.Int64
	outcomes := make([]batchOutcome, len(jobs))

	for i, job := range jobs {
		outcomes[i].Company = job.Company
		g.Go(func() error {
			log := zap.L().With(zap.String("company", job.Company))

			res, err := analyze(gctx, job.Company, collectCandidates(job.Files, job.Response))
			if err != nil {
				failed.Add(1)
				outcomes[i].Error = err.Error()
				log.Error("analysis failed", zap.Error(err))
				return nil
			}

			outcomes[i].Result = res
			if res.Type == model.ResultTypeError {
				failed.Add(1)
			} else {
				succeeded.Add(1)
			}
			if res.Cached {
				cached.Add(1)
			}
			log.Info("analysis complete",
				zap.String("type", string(res.Type)),
				zap.Int("transactions", res.TransactionCount),
				zap.Int("verified", res.VerifiedCount),
				zap.Bool("cached", res.Cached),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("cached", cached.Load()),
	)
	return outcomes, nil
}
