package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/adlift/adlift/pkg/storage"
)

// Summary aggregates a set of results. All duration fields are seconds;
// Throughput is jobs per minute.
type Summary struct {
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	SuccessRate   float64 `json:"success_rate"`
	TotalDuration float64 `json:"total_duration"`
	AvgDuration   float64 `json:"avg_duration"`
	Throughput    float64 `json:"throughput"`
}

// Summarize computes the aggregate for results given the batch's total
// wall-clock duration. Division guards keep zero totals and zero
// durations from producing NaN or Inf.
func Summarize(results []Result, totalDuration time.Duration) Summary {
	s := Summary{
		Total:         len(results),
		TotalDuration: totalDuration.Seconds(),
	}
	var perJob float64
	for _, r := range results {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
		perJob += r.Duration
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.Total) * 100
		s.AvgDuration = perJob / float64(s.Total)
	}
	if s.TotalDuration > 0 {
		s.Throughput = float64(s.Total) / s.TotalDuration * 60
	}
	return s
}

// Report is the durable artifact describing one batch run.
type Report struct {
	Timestamp      string   `json:"timestamp"`
	TotalCampaigns int      `json:"total_campaigns"`
	Successful     int      `json:"successful"`
	Failed         int      `json:"failed"`
	TotalDuration  float64  `json:"total_duration"`
	MaxWorkers     int      `json:"max_workers"`
	Results        []Result `json:"results"`
}

// BuildReport assembles a report for results using the batch's wall-clock
// duration.
func (p *Processor) BuildReport(results []Result, totalDuration time.Duration) Report {
	s := Summarize(results, totalDuration)
	return Report{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		TotalCampaigns: s.Total,
		Successful:     s.Successful,
		Failed:         s.Failed,
		TotalDuration:  s.TotalDuration,
		MaxWorkers:     p.cfg.MaxWorkers,
		Results:        results,
	}
}

// SaveReport persists a report through the storage backend. Like other
// write paths it fails soft and reports success as a boolean.
func (p *Processor) SaveReport(ctx context.Context, b storage.Backend, report Report, path string) bool {
	if !storage.SaveJSON(ctx, b, report, path) {
		p.log.Warn("report not saved", zap.String("path", path))
		return false
	}
	p.log.Info("report saved", zap.String("path", path))
	return true
}
