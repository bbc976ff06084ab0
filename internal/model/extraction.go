package model

import "strings"

// AcquisitionCategory classifies the acquirer in a transaction.
type AcquisitionCategory string

const (
	AcquisitionStrategic AcquisitionCategory = "Strategic"
	AcquisitionFinancial AcquisitionCategory = "Financial"
	AcquisitionUnknown   AcquisitionCategory = "Unknown"
)

// ParseAcquisitionCategory maps free text to a category, defaulting to Unknown.
func ParseAcquisitionCategory(s string) AcquisitionCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strategic":
		return AcquisitionStrategic
	case "financial":
		return AcquisitionFinancial
	default:
		return AcquisitionUnknown
	}
}

// TransactionRecord is one acquisition extracted from a transaction sheet.
// Metric values keep their original currency and unit text; a nil pointer
// means the metric was not available.
type TransactionRecord struct {
	Target              string              `json:"target"`
	Acquirer            string              `json:"acquirer"`
	DealType            string              `json:"type"`
	AcquisitionCategory AcquisitionCategory `json:"acquisition_type"`
	Revenue             *string             `json:"revenue,omitempty"`
	Valuation           *string             `json:"valuation,omitempty"`
	EVRevenue           *string             `json:"ev_revenue,omitempty"`
	EVEBITDA            *string             `json:"ev_ebitda,omitempty"`
}

// MetricCount returns how many of the four metrics carry a usable value.
func (t TransactionRecord) MetricCount() int {
	n := 0
	for _, m := range []*string{t.Revenue, t.Valuation, t.EVRevenue, t.EVEBITDA} {
		if m != nil && *m != "" && !strings.EqualFold(*m, "null") {
			n++
		}
	}
	return n
}

// CompanyCandidate is a comparable company with a 0-100 confidence score.
type CompanyCandidate struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Reason string `json:"reason,omitempty"`
}

// ClassifiedCompanySet splits candidates by score. A name never appears in
// both lists.
type ClassifiedCompanySet struct {
	Verified     []CompanyCandidate `json:"verified_competitors"`
	ToCrossCheck []CompanyCandidate `json:"to_crosscheck"`
}

// Extraction is the parsed output of one extraction call (or the merge of
// several calls over the batches of one file).
type Extraction struct {
	Transactions []TransactionRecord `json:"transactions"`
	Companies    []CompanyCandidate  `json:"companies"`
	Reasoning    string              `json:"reasoning,omitempty"`
}

// Empty reports whether the extraction produced no records at all.
func (e *Extraction) Empty() bool {
	return e == nil || (len(e.Transactions) == 0 && len(e.Companies) == 0)
}
