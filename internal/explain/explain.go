// Package explain builds evidence reports for fraud cases.
//
// Report output is deterministic: the same case produces the same
// bytes on every call, so reports can be diffed, hashed, and attached
// to audit trails.
package explain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/janus-audit/janus/internal/domain"
)

// Builder assembles EvidenceReports from scored cases.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a report builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build derives the evidence report for a case. Items are ordered by
// module score descending; ties fall back to the canonical module
// order so equal scores always render identically.
func (b *Builder) Build(c *domain.Case) *domain.EvidenceReport {
	items := make([]domain.EvidenceItem, 0, len(c.Scores))
	for _, ms := range c.Scores {
		items = append(items, domain.EvidenceItem{
			Module:   ms.Module,
			Score:    ms.Score,
			Evidence: append([]string(nil), ms.Evidence...),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return domain.CanonicalRank(items[i].Module) < domain.CanonicalRank(items[j].Module)
	})

	return &domain.EvidenceReport{
		CaseID:         c.ID,
		TransactionID:  c.TransactionID,
		Items:          items,
		Summary:        summarize(c, items),
		Recommendation: domain.RecommendationFor(c.Meta.RiskLevel),
		GeneratedAt:    b.now().UTC(),
	}
}

// summarize produces the one-paragraph case summary. Wording depends
// only on the case fields, never on map iteration or clock time.
func summarize(c *domain.Case, items []domain.EvidenceItem) string {
	var lead string
	switch c.Meta.RiskLevel {
	case domain.RiskCritical:
		lead = "Multiple independent detectors agree this transaction is highly anomalous."
	case domain.RiskHigh:
		lead = "This transaction shows strong anomaly signals and warrants priority review."
	case domain.RiskMedium:
		lead = "This transaction shows moderate anomaly signals."
	default:
		lead = "This transaction shows weak anomaly signals."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Meta risk score %.1f/100 (%s) from %d scored module(s), %d above the flag threshold.",
		lead, c.Meta.WeightedScore, c.Meta.RiskLevel, len(items), c.Meta.ModulesFlagged)
	if len(items) > 0 {
		fmt.Fprintf(&sb, " Strongest signal: %s (%.1f).",
			items[0].Module.DisplayName(), items[0].Score)
	}
	if c.Meta.CorrelationBonus > 0 {
		fmt.Fprintf(&sb, " A cross-module correlation bonus of +%.0f was applied.", c.Meta.CorrelationBonus)
	}
	return sb.String()
}

// Render formats the report as a plain-text investigation document.
// Output is byte-stable for a given case and report.
func Render(c *domain.Case, r *domain.EvidenceReport) string {
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	var sb strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}

	line(rule)
	line("JANUS FRAUD INVESTIGATION REPORT")
	line(rule)
	line("")
	line("Case ID: %s", c.ID)
	line("Transaction ID: %s", c.TransactionID)
	line("Meta Fraud Risk Score: %.1f/100", c.Meta.WeightedScore)
	line("Risk Classification: %s", c.Meta.RiskLevel)
	line("Case Status: %s", c.Status)
	line("")
	line("TRANSACTION DETAILS:")
	line("  Amount: $%s", formatAmount(c.Amount))
	line("  Department: %s", c.Department)
	line("  Vendor: %s", c.VendorID)
	line("  Approving Official: %s", c.OfficialID)
	line("  Date: %s", c.Date.Format("2006-01-02"))
	line("")
	line("MODULES FLAGGED: %d", c.Meta.ModulesFlagged)
	line("")
	line("SUMMARY:")
	line("  %s", r.Summary)
	line("")
	line("DETAILED FINDINGS:")
	line(thin)
	for i, item := range r.Items {
		line("")
		line("%d. [%s] score %.1f/100", i+1, item.Module.DisplayName(), item.Score)
		for _, ev := range item.Evidence {
			line("   - %s", ev)
		}
	}
	line("")
	line(rule)
	line("RECOMMENDED ACTION:")
	switch r.Recommendation {
	case domain.RecommendImmediate:
		line("  IMMEDIATE INVESTIGATION REQUIRED")
		line("  - Freeze transaction if not yet processed")
		line("  - Initiate formal audit")
		line("  - Interview vendor and official")
	case domain.RecommendReview:
		line("  PRIORITY INVESTIGATION")
		line("  - Request supporting documentation")
		line("  - Review related transactions")
		line("  - Schedule interview with stakeholders")
	default:
		line("  MONITORING RECOMMENDED")
		line("  - Request additional documentation where warranted")
		line("  - Monitor for pattern development")
	}
	line(rule)
	return sb.String()
}

// formatAmount renders an amount with thousands separators, two
// decimals, matching audit-report conventions.
func formatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]
	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String() + frac
	}
	return sb.String() + frac
}
