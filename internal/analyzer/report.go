package analyzer

// Report partitions a batch's results around a spam threshold.
type Report struct {
	TotalEmails  int
	SpamCount    int
	SafeCount    int
	Threshold    float64
	AverageScore float64
	SpamEmails   []Result
	SafeEmails   []Result
}

// BuildReport splits results at threshold and computes the mean score.
func BuildReport(results []Result, threshold float64) Report {
	report := Report{
		TotalEmails: len(results),
		Threshold:   threshold,
	}
	var sum float64
	for _, r := range results {
		sum += r.SpamProbability
		if r.SpamProbability >= threshold {
			report.SpamEmails = append(report.SpamEmails, r)
		} else {
			report.SafeEmails = append(report.SafeEmails, r)
		}
	}
	report.SpamCount = len(report.SpamEmails)
	report.SafeCount = len(report.SafeEmails)
	if len(results) > 0 {
		report.AverageScore = sum / float64(len(results))
	}
	return report
}

// Buckets counts results by risk band for run summaries.
type Buckets struct {
	High   int // probability >= 75
	Medium int // 25 <= probability < 75
	Low    int // probability < 25
}

// BucketCounts bands results for the end-of-run summary.
func BucketCounts(results []Result) Buckets {
	var b Buckets
	for _, r := range results {
		switch {
		case r.SpamProbability >= 75:
			b.High++
		case r.SpamProbability >= 25:
			b.Medium++
		default:
			b.Low++
		}
	}
	return b
}
