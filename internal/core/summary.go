package core

// Summary aggregates the outcome of one batch run.
type Summary struct {
	Rows        int `json:"rows" yaml:"rows"`
	Identifiers int `json:"identifiers" yaml:"identifiers"`
	Dispatched  int `json:"dispatched" yaml:"dispatched"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Successful  int `json:"successful" yaml:"successful"`
	Errors      int `json:"errors" yaml:"errors"`
	Others      int `json:"others" yaml:"others"`
}

// Summarize counts successes, errors, and everything else in a result list.
func Summarize(results []LookupResult) Summary {
	summary := Summary{Dispatched: len(results)}
	for _, result := range results {
		switch {
		case result.Succeeded():
			summary.Successful++
		case result.Errored():
			summary.Errors++
		default:
			summary.Others++
		}
	}
	return summary
}
