package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/comps-intel/internal/model"
)

// ParseError reports a response with no decodable structured-data span.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: parse response: %s: %v", e.Reason, e.Err)
	}
	return "extract: parse response: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// locateJSON strips code fences and returns the span from the first '{' to
// the last '}'.
func locateJSON(text string) (string, bool) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Parse decodes a response in two stages: locate the structured span, then
// decode it into the typed result. At least one of "transactions" or
// "companies" must be present. Each list is capped at maxRecords.
func Parse(text string, maxRecords int) (*model.Extraction, error) {
	span, ok := locateJSON(text)
	if !ok {
		return nil, &ParseError{Reason: "no JSON object in response"}
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, &ParseError{Reason: "decode JSON", Err: err}
	}
	if raw.Transactions == nil && raw.Companies == nil {
		return nil, &ParseError{Reason: `response has neither "transactions" nor "companies"`}
	}

	out := &model.Extraction{Reasoning: strings.TrimSpace(string(raw.Reasoning))}

	if raw.Transactions != nil {
		for _, t := range *raw.Transactions {
			rec, ok := t.record()
			if !ok {
				continue
			}
			out.Transactions = append(out.Transactions, rec)
		}
	}
	if raw.Companies != nil {
		for _, c := range *raw.Companies {
			name := strings.TrimSpace(c.Name)
			if name == "" || isPlaceholder(name) {
				continue
			}
			out.Companies = append(out.Companies, model.CompanyCandidate{
				Name:   name,
				Score:  c.Score,
				Reason: strings.TrimSpace(string(c.Reason)),
			})
		}
	}

	if maxRecords > 0 {
		if len(out.Transactions) > maxRecords {
			out.Transactions = out.Transactions[:maxRecords]
		}
		if len(out.Companies) > maxRecords {
			out.Companies = out.Companies[:maxRecords]
		}
	}
	return out, nil
}

type rawResponse struct {
	Transactions *[]rawTransaction `json:"transactions"`
	Companies    *[]rawCompany     `json:"companies"`
	Reasoning    text              `json:"reasoning"`
}

type rawTransaction struct {
	Target          text   `json:"target"`
	Acquirer        text   `json:"acquirer"`
	Type            text   `json:"type"`
	AcquisitionType text   `json:"acquisition_type"`
	Revenue         metric `json:"revenue"`
	Valuation       metric `json:"valuation"`
	EVRevenue       metric `json:"ev_revenue"`
	EVEBITDA        metric `json:"ev_ebitda"`
}

// record converts a raw row, dropping rows without both counterparties.
func (t rawTransaction) record() (model.TransactionRecord, bool) {
	target := strings.TrimSpace(string(t.Target))
	acquirer := strings.TrimSpace(string(t.Acquirer))
	if target == "" || acquirer == "" || isPlaceholder(target) || isPlaceholder(acquirer) {
		return model.TransactionRecord{}, false
	}
	return model.TransactionRecord{
		Target:              target,
		Acquirer:            acquirer,
		DealType:            strings.TrimSpace(string(t.Type)),
		AcquisitionCategory: model.ParseAcquisitionCategory(string(t.AcquisitionType)),
		Revenue:             t.Revenue.value,
		Valuation:           t.Valuation.value,
		EVRevenue:           t.EVRevenue.value,
		EVEBITDA:            t.EVEBITDA.value,
	}, true
}

type rawCompany struct {
	Name   string
	Score  int
	Reason text
}

// UnmarshalJSON accepts either a bare name or a {name, score, reason} object.
func (c *rawCompany) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Name)
	}
	var obj struct {
		Name   text  `json:"name"`
		Score  score `json:"score"`
		Reason text  `json:"reason"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.Name = string(obj.Name)
	c.Score = int(obj.Score)
	c.Reason = obj.Reason
	return nil
}

// text decodes a string, number or null into a string.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	v, err := scalar(data)
	if err != nil {
		return err
	}
	*t = text(v)
	return nil
}

// metric decodes an optional metric. Placeholders decode as absent.
type metric struct {
	value *string
}

func (m *metric) UnmarshalJSON(data []byte) error {
	v, err := scalar(data)
	if err != nil {
		return err
	}
	v = strings.TrimSpace(v)
	if v == "" || isPlaceholder(v) {
		m.value = nil
		return nil
	}
	m.value = &v
	return nil
}

// score decodes a number or numeric string, clamped to 0-100.
type score int

func (s *score) UnmarshalJSON(data []byte) error {
	v, err := scalar(data)
	if err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
	if err != nil {
		*s = 0
		return nil
	}
	*s = score(min(100, max(0, int(math.Round(f)))))
	return nil
}

// scalar renders a JSON string, number, bool or null as text.
func scalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected scalar, got %s", data[:1])
	default:
		return string(data), nil
	}
}

var placeholders = map[string]bool{
	"null": true, "none": true, "n/a": true, "na": true, "-": true, "--": true,
	"tbd": true, "nm": true, "n.m.": true,
}

func isPlaceholder(s string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(s))]
}
