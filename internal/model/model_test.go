package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRunStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   bool
	}{
		{RunStatusRunning, false},
		{RunStatusComplete, true},
		{RunStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.Terminal())
		})
	}
}

func TestParseAcquisitionCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AcquisitionStrategic, ParseAcquisitionCategory(" strategic "))
	assert.Equal(t, AcquisitionFinancial, ParseAcquisitionCategory("FINANCIAL"))
	assert.Equal(t, AcquisitionUnknown, ParseAcquisitionCategory("PE-backed"))
	assert.Equal(t, AcquisitionUnknown, ParseAcquisitionCategory(""))
}

func TestTransactionRecordMetricCount(t *testing.T) {
	t.Parallel()

	rec := TransactionRecord{
		Revenue:   strPtr("$120M"),
		Valuation: strPtr("null"),
		EVRevenue: strPtr(""),
		EVEBITDA:  strPtr("11.2x"),
	}
	assert.Equal(t, 2, rec.MetricCount())
	assert.Equal(t, 0, TransactionRecord{}.MetricCount())
}

func TestWorkbookSheetVisible(t *testing.T) {
	t.Parallel()

	assert.True(t, WorkbookSheet{Visibility: VisibilityVisible}.Visible())
	assert.True(t, WorkbookSheet{}.Visible())
	assert.False(t, WorkbookSheet{Visibility: VisibilityHidden}.Visible())
}

func TestExtractionEmpty(t *testing.T) {
	t.Parallel()

	var nilExt *Extraction
	assert.True(t, nilExt.Empty())
	assert.True(t, (&Extraction{Reasoning: "nothing"}).Empty())
	assert.False(t, (&Extraction{Companies: []CompanyCandidate{{Name: "Acme"}}}).Empty())
}

func TestAnalysisResultCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &AnalysisResult{
		SubjectCompany: "Acme",
		Transactions:   []TransactionRecord{{Target: "A", Revenue: strPtr("$1M")}},
		ClassifiedCompanySet: ClassifiedCompanySet{
			Verified: []CompanyCandidate{{Name: "B", Score: 90}},
		},
		FailedFiles: []FailedFile{{Path: "x.xlsx", Error: "boom"}},
	}

	dup := orig.Clone()
	dup.Transactions[0].Target = "changed"
	*dup.Transactions[0].Revenue = "$2M"
	dup.Verified[0].Name = "changed"
	dup.FailedFiles[0].Error = "changed"
	dup.Cached = true

	assert.Equal(t, "A", orig.Transactions[0].Target)
	assert.Equal(t, "$1M", *orig.Transactions[0].Revenue)
	assert.Equal(t, "B", orig.Verified[0].Name)
	assert.Equal(t, "boom", orig.FailedFiles[0].Error)
	assert.False(t, orig.Cached)

	var nilRes *AnalysisResult
	assert.Nil(t, nilRes.Clone())
}

func TestAnalysisResultJSONShape(t *testing.T) {
	t.Parallel()

	res := AnalysisResult{
		SubjectCompany: "Acme",
		Type:           ResultTypeBoth,
		ClassifiedCompanySet: ClassifiedCompanySet{
			Verified:     []CompanyCandidate{{Name: "B", Score: 80}},
			ToCrossCheck: []CompanyCandidate{},
		},
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "both", m["data_type"])
	assert.Equal(t, "Acme", m["target_company"])
	assert.Contains(t, m, "verified_competitors")
	assert.Contains(t, m, "to_crosscheck")
	assert.Contains(t, m, "failed_files")
}
