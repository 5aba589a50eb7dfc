package models

// AnalysisRow is the run-level verdict consumed by the classification report.
type AnalysisRow struct {
	ScenarioName  string
	Run           string
	Label         bool
	MinLikelihood float64
	ResultID      int
	Predicted     bool
}

// Misclassified reports whether the verdict disagrees with the ground truth.
func (r AnalysisRow) Misclassified() bool {
	return r.Label != r.Predicted
}

// AnalysisTable holds one row per evaluated run in manifest order.
type AnalysisTable []AnalysisRow

// ClassMetrics summarises classification quality for one class.
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport is the per-class summary of an analysis.
type ClassificationReport struct {
	Exploit     ClassMetrics
	Benign      ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Total       int
}
