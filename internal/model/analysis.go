package model

// FileCategory is the inferred role of a candidate file, used only for selection.
type FileCategory string

const (
	FileCategoryTransaction FileCategory = "transaction"
	FileCategoryComparable  FileCategory = "comparable"
	FileCategoryUnknown     FileCategory = "unknown"
)

// FileReference is a candidate workbook selected for processing.
type FileReference struct {
	Path         string       `json:"path"`
	RelativePath string       `json:"relative_path"`
	Category     FileCategory `json:"category"`
}

// ResultType is the resolved overall type of an analysis.
type ResultType string

const (
	ResultTypeTransaction ResultType = "ma_comps"
	ResultTypeComparable  ResultType = "public_comps"
	ResultTypeBoth        ResultType = "both"
	ResultTypeError       ResultType = "error"
)

// FailedFile records why one file contributed nothing.
type FailedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// FileOutcome is the per-file result handed to the aggregator. Extraction
// is nil when the file failed. HasTransaction and HasComparable report which
// record kinds the extraction yielded.
type FileOutcome struct {
	Path           string      `json:"path"`
	HasTransaction bool        `json:"has_transaction"`
	HasComparable  bool        `json:"has_comparable"`
	Extraction     *Extraction `json:"extraction,omitempty"`
	Err            string      `json:"error,omitempty"`
}

// Failed reports whether the file produced no usable extraction.
func (o FileOutcome) Failed() bool {
	return o.Extraction == nil
}

// AnalysisResult is the consolidated answer for one subject company. It is
// the unit stored in and served from the analysis cache.
type AnalysisResult struct {
	SubjectCompany   string              `json:"target_company"`
	Type             ResultType          `json:"data_type"`
	Transactions     []TransactionRecord `json:"ma_transactions"`
	TransactionCount int                 `json:"transaction_count"`
	ClassifiedCompanySet
	VerifiedCount   int          `json:"verified_count"`
	CrossCheckCount int          `json:"crosscheck_count"`
	Reasoning       string       `json:"reasoning"`
	FilesProcessed  int          `json:"files_processed"`
	TotalFilesFound int          `json:"total_files_found"`
	FailedFiles     []FailedFile `json:"failed_files"`
	Cached          bool         `json:"cached"`
}

// Clone returns a deep copy so cached values are never aliased by callers.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Transactions != nil {
		out.Transactions = make([]TransactionRecord, len(r.Transactions))
		for i, t := range r.Transactions {
			out.Transactions[i] = t.clone()
		}
	}
	out.Verified = cloneSlice(r.Verified)
	out.ToCrossCheck = cloneSlice(r.ToCrossCheck)
	out.FailedFiles = cloneSlice(r.FailedFiles)
	return &out
}

func (t TransactionRecord) clone() TransactionRecord {
	dup := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := *s
		return &v
	}
	t.Revenue = dup(t.Revenue)
	t.Valuation = dup(t.Valuation)
	t.EVRevenue = dup(t.EVRevenue)
	t.EVEBITDA = dup(t.EVEBITDA)
	return t
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
