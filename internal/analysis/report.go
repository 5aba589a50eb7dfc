package analysis

import (
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-hids/internal/models"
)

// BuildReport computes per-class metrics for the table. Exploit is the
// positive class. Divisions by zero yield 0.
func BuildReport(table models.AnalysisTable) models.ClassificationReport {
	var tp, fp, fn, tn int
	for _, row := range table {
		switch {
		case row.Label && row.Predicted:
			tp++
		case !row.Label && row.Predicted:
			fp++
		case row.Label && !row.Predicted:
			fn++
		default:
			tn++
		}
	}

	report := models.ClassificationReport{
		Exploit: classMetrics(tp, fp, fn),
		Benign:  classMetrics(tn, fn, fp),
		Total:   len(table),
	}
	report.Accuracy = ratio(tp+tn, report.Total)

	report.MacroAvg = models.ClassMetrics{
		Precision: (report.Exploit.Precision + report.Benign.Precision) / 2,
		Recall:    (report.Exploit.Recall + report.Benign.Recall) / 2,
		F1:        (report.Exploit.F1 + report.Benign.F1) / 2,
		Support:   report.Total,
	}
	if report.Total > 0 {
		we := float64(report.Exploit.Support) / float64(report.Total)
		wb := float64(report.Benign.Support) / float64(report.Total)
		report.WeightedAvg = models.ClassMetrics{
			Precision: we*report.Exploit.Precision + wb*report.Benign.Precision,
			Recall:    we*report.Exploit.Recall + wb*report.Benign.Recall,
			F1:        we*report.Exploit.F1 + wb*report.Benign.F1,
			Support:   report.Total,
		}
	}
	return report
}

func classMetrics(truePos, falsePos, falseNeg int) models.ClassMetrics {
	m := models.ClassMetrics{
		Precision: ratio(truePos, truePos+falsePos),
		Recall:    ratio(truePos, truePos+falseNeg),
		Support:   truePos + falseNeg,
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// FormatReport renders the report as a fixed-width table.
func FormatReport(r models.ClassificationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	row := func(name string, m models.ClassMetrics) {
		fmt.Fprintf(&b, "%14s %10.4f %10.4f %10.4f %10d\n", name, m.Precision, m.Recall, m.F1, m.Support)
	}
	row("benign", r.Benign)
	row("exploit", r.Exploit)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%14s %10s %10s %10.4f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	row("macro avg", r.MacroAvg)
	row("weighted avg", r.WeightedAvg)
	return b.String()
}
