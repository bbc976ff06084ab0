package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/comps-intel/internal/batcher"
	"github.com/sells-group/comps-intel/internal/model"
)

const extractionInstructions = `TASK: Extract structured comps data from the spreadsheet above. DO NOT HALLUCINATE.
Sheets are labelled (transaction) for M&A / precedent transaction comps and (comparable) for public or trading comps.

PART 1 - TRANSACTIONS (only from transaction sheets):
1. Identify columns containing:
   - Target company names (Target, Company, Target Name, etc.)
   - Acquirer/Buyer company names (Acquirer, Buyer, Purchaser, Bidder, etc.)
   - Transaction type/description (Type, Deal Type, Description, etc.)
   - Financial metrics (up to 2 decimal points):
     * Revenue (Revenue, Sales, Turnover, LTM Revenue, etc.)
     * Valuation/Enterprise Value (EV, Enterprise Value, Deal Value, Transaction Value, etc.)
     * Value/Revenue multiple (EV/Revenue, EV/Sales, Price/Sales, etc.)
     * Value/EBITDA multiple (EV/EBITDA, Price/EBITDA, etc.)
2. Classify "acquisition_type":
   - "Strategic" if the acquirer is in the SAME industry as the target.
   - "Financial" if the acquirer is a private equity fund, investment firm or financial sponsor.
   - "Unknown" if you cannot determine it with confidence.
3. Ignore summary rows (Total, Average, Median, Mean, etc.).
4. Ignore rows with N/A, TBD or missing target or acquirer.
5. If a metric is not available use null. Preserve currency symbols and units (e.g. "$500M", "€1.2B").

PART 2 - COMPANIES (only from comparable sheets):
1. Extract actual company names only (exclude headers, totals, averages, summaries, "Others").
2. Score each company 0-100 for competitive overlap with the target company:
   - 90-100: direct competitor (same core products/services, same market)
   - 70-89: strong competitor (significant overlap)
   - 50-69: moderate or indirect competitor, or substitute
   - below 50: low relevance or different industry
3. Give a one-sentence "reason" for each score.

Return at most %[1]d transactions and at most %[1]d companies, the most relevant first.
If a part has no source sheets, return an empty list for it.

Return a JSON object with exactly this structure:
{
  "transactions": [
    {
      "target": "Target Company Name",
      "acquirer": "Acquirer Company Name",
      "type": "Transaction type or description",
      "acquisition_type": "Strategic" | "Financial" | "Unknown",
      "revenue": "Revenue with units" | null,
      "valuation": "Enterprise/deal value with units" | null,
      "ev_revenue": "EV/Revenue multiple" | null,
      "ev_ebitda": "EV/EBITDA multiple" | null
    }
  ],
  "companies": [
    {"name": "Company A", "score": 95, "reason": "..."}
  ],
  "reasoning": "Brief analysis of the target's industry context."
}

CRITICAL: Provide ONLY valid JSON, no additional text, no markdown formatting, no explanations.`

// BuildPrompt renders the single-pass extraction prompt for one batch.
func BuildPrompt(subject string, batch batcher.Batch, maxRecords int) string {
	var b strings.Builder
	b.WriteString(batch.Text)
	b.WriteString("\n\n")

	if subject = strings.TrimSpace(subject); subject != "" {
		fmt.Fprintf(&b, "TARGET COMPANY CONTEXT: %s\n", subject)
		fmt.Fprintf(&b, "Use your knowledge of %s's industry, products and market when scoring companies and classifying acquirers.\n", subject)
		b.WriteString("Companies from completely different industries or product categories must score below 50.\n\n")
	}

	var parts []string
	if batch.HasClass(model.SheetClassTransaction) {
		parts = append(parts, "transaction")
	}
	if batch.HasClass(model.SheetClassComparable) {
		parts = append(parts, "comparable")
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, "This batch contains %s sheets.\n\n", strings.Join(parts, " and "))
	}

	fmt.Fprintf(&b, extractionInstructions, maxRecords)
	return b.String()
}
