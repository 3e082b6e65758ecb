package assessment

import "math"

// Stats summarizes a set of submissions for dashboards.
type Stats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	Evaluated      int `json:"evaluated"`
	Passed         int `json:"passed"`
	AveragePercent int `json:"average_percent"` // over evaluated submissions only
}

// Summarize folds subs into Stats. passingScore maps an assessment id to
// its pass mark; assessments missing from the map never count as passed.
func Summarize(subs []Submission, passingScore map[string]int) Stats {
	var st Stats
	sum := 0
	for _, s := range subs {
		st.Total++
		if s.Status != SubmissionEvaluated {
			st.Pending++
			continue
		}
		st.Evaluated++
		sum += s.Percentage
		if pass, ok := passingScore[s.AssessmentID]; ok && s.Percentage >= pass {
			st.Passed++
		}
	}
	if st.Evaluated > 0 {
		st.AveragePercent = int(math.Round(float64(sum) / float64(st.Evaluated)))
	}
	return st
}
