package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comps-intel/internal/model"
)

func writeJobs(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadJobs(t *testing.T) {
	p := writeJobs(t, `
jobs:
  - company: Acme Corp
    files:
      - comps/Transaction Comps.xlsx
      - comps/peers.csv
  - company: Globex
    copilot_response: |
      Full Path: /sites/x/Shared Documents/Globex/Public Comps.xlsx
`)

	jobs, err := loadJobs(p)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Acme Corp", jobs[0].Company)
	assert.Equal(t, []string{"comps/Transaction Comps.xlsx", "comps/peers.csv"}, jobs[0].Files)
	assert.Contains(t, jobs[1].Response, "Globex/Public Comps.xlsx")
}

func TestLoadJobs_Errors(t *testing.T) {
	_, err := loadJobs(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadJobs(writeJobs(t, "jobs: [unclosed"))
	assert.Error(t, err)

	_, err = loadJobs(writeJobs(t, "jobs:\n  - files: [a.xlsx]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job 1 has no company")
}

func TestProcessBatch_Outcomes(t *testing.T) {
	jobs := []batchJob{
		{Company: "Acme", Files: []string{"a/Transaction Comps.xlsx"}},
		{Company: "Broken"},
		{Company: "Globex", Response: "Full Path: g/Public Comps.xlsx"},
	}

	var mu sync.Mutex
	seen := make(map[string][]string)
	analyze := func(_ context.Context, subject string, candidates []model.FileReference) (*model.AnalysisResult, error) {
		mu.Lock()
		for _, c := range candidates {
			seen[subject] = append(seen[subject], c.Path)
		}
		mu.Unlock()
		if subject == "Broken" {
			return nil, errors.New("boom")
		}
		return &model.AnalysisResult{SubjectCompany: subject, Type: model.ResultTypeComparable, Cached: subject == "Globex"}, nil
	}

	outcomes, err := processBatch(context.Background(), jobs, 0, 2, analyze)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "Acme", outcomes[0].Company)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, "Acme", outcomes[0].Result.SubjectCompany)

	assert.Equal(t, "Broken", outcomes[1].Company)
	assert.Nil(t, outcomes[1].Result)
	assert.Equal(t, "boom", outcomes[1].Error)

	assert.True(t, outcomes[2].Result.Cached)

	assert.Equal(t, []string{"a/Transaction Comps.xlsx"}, seen["Acme"])
	assert.Equal(t, []string{"g/Public Comps.xlsx"}, seen["Globex"])
}

func TestProcessBatch_Limit(t *testing.T) {
	jobs := []batchJob{{Company: "A"}, {Company: "B"}, {Company: "C"}}
	var calls atomic.Int64
	analyze := func(_ context.Context, subject string, _ []model.FileReference) (*model.AnalysisResult, error) {
		calls.Add(1)
		return &model.AnalysisResult{SubjectCompany: subject}, nil
	}

	outcomes, err := processBatch(context.Background(), jobs, 2, 4, analyze)
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, int64(2), calls.Load())
}

func TestProcessBatch_Concurrency(t *testing.T) {
	jobs := make([]batchJob, 8)
	for i := range jobs {
		jobs[i] = batchJob{Company: string(rune('A' + i))}
	}

	var inFlight, peak atomic.Int64
	analyze := func(_ context.Context, subject string, _ []model.FileReference) (*model.AnalysisResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &model.AnalysisResult{SubjectCompany: subject}, nil
	}

	_, err := processBatch(context.Background(), jobs, 0, 3, analyze)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.GreaterOrEqual(t, peak.Load(), int64(1))
}

func TestProcessBatch_Empty(t *testing.T) {
	outcomes, err := processBatch(context.Background(), nil, 0, 2, nil)
	require.NoError(t, err)
	assert.Nil(t, outcomes)
}
