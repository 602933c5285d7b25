// Package summary assembles per-patient roster summaries by fanning
// out to the records backend. A summary is best-effort: a failed fetch
// degrades the fields it would have filled, never the whole roster.
package summary

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careops/visitflow/internal/adapters/records"
	"github.com/careops/visitflow/internal/bmi"
	"github.com/careops/visitflow/internal/shared/metrics"
)

// Config holds aggregation settings.
type Config struct {
	// FetchTimeout bounds each backend fetch within a summary.
	FetchTimeout time.Duration
	// MaxConcurrent caps how many patients are summarized at once.
	MaxConcurrent int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:  5 * time.Second,
		MaxConcurrent: 8,
	}
}

// Service builds patient summaries from live backend reads. Nothing is
// cached: a roster view must reflect records written moments before.
type Service struct {
	records records.Adapter
	config  Config
	logger  zerolog.Logger
}

// NewService creates a summary service.
func NewService(adapter records.Adapter, config Config, logger zerolog.Logger) *Service {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	return &Service{
		records: adapter,
		config:  config,
		logger:  logger.With().Str("component", "summary").Logger(),
	}
}

// PatientSummary is one roster row. Optional fields are omitted when
// the patient has no matching records or the fetch behind them failed;
// Degraded names the fetches that failed.
type PatientSummary struct {
	Patient              records.Patient        `json:"patient"`
	LatestBMI            *float64               `json:"latest_bmi,omitempty"`
	LatestBMIStatus      bmi.Category           `json:"latest_bmi_status,omitempty"`
	LatestVitalsDate     string                 `json:"latest_vitals_date,omitempty"`
	LatestAssessmentDate string                 `json:"latest_assessment_date,omitempty"`
	LatestAssessmentType records.AssessmentKind `json:"latest_assessment_type,omitempty"`
	Degraded             []string               `json:"degraded,omitempty"`
}

// BuildSummaries summarizes each patient, preserving input order. One
// patient's failures never touch another's row; the call itself does
// not fail.
func (s *Service) BuildSummaries(ctx context.Context, patients []records.Patient) []PatientSummary {
	start := time.Now()
	defer func() { metrics.RecordSummaryBuild(time.Since(start)) }()

	summaries := make([]PatientSummary, len(patients))
	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i, patient := range patients {
		wg.Add(1)
		go func(i int, patient records.Patient) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summaries[i] = s.buildOne(ctx, patient)
		}(i, patient)
	}

	wg.Wait()
	return summaries
}

// BuildSummary summarizes a single patient.
func (s *Service) BuildSummary(ctx context.Context, patient records.Patient) PatientSummary {
	return s.buildOne(ctx, patient)
}

func (s *Service) buildOne(ctx context.Context, patient records.Patient) PatientSummary {
	summary := PatientSummary{Patient: patient}

	var (
		wg               sync.WaitGroup
		mu               sync.Mutex
		latestVitals     *records.VitalsRecord
		latestGeneral    *records.AssessmentRecord
		latestOverweight *records.AssessmentRecord
	)

	degrade := func(resource string, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.Degraded = append(summary.Degraded, resource)
		metrics.RecordSummaryFetchFailure(resource)
		s.logger.Warn().Err(err).
			Str("patient_id", patient.ID).
			Str("resource", resource).
			Msg("summary fetch failed")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
		vitals, err := s.records.ListVitals(fetchCtx, patient.ID)
		if err != nil {
			degrade("vitals", err)
			return
		}
		mu.Lock()
		latestVitals = records.MostRecentVitals(vitals)
		mu.Unlock()
	}()

	for _, kind := range []records.AssessmentKind{records.AssessmentGeneral, records.AssessmentOverweight} {
		wg.Add(1)
		go func(kind records.AssessmentKind) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
			defer cancel()
			assessments, err := s.records.ListAssessments(fetchCtx, patient.ID, kind)
			if err != nil {
				degrade(string(kind.RecordKind()), err)
				return
			}
			latest := records.MostRecentAssessment(assessments)
			mu.Lock()
			if kind == records.AssessmentOverweight {
				latestOverweight = latest
			} else {
				latestGeneral = latest
			}
			mu.Unlock()
		}(kind)
	}

	wg.Wait()

	if latestVitals != nil {
		summary.LatestVitalsDate = records.EffectiveDate(latestVitals.VisitDate, latestVitals.CreatedAt).String()
		// The stored bmi field is ignored; status always comes from
		// the measurements.
		if derived := bmi.Compute(latestVitals.HeightCm, latestVitals.WeightKg); derived.IsValid() {
			summary.LatestBMI = &derived.Value
			summary.LatestBMIStatus = derived.Category
		}
	}

	if latest := records.LaterAssessment(latestGeneral, latestOverweight); latest != nil {
		summary.LatestAssessmentDate = records.EffectiveDate(latest.VisitDate, latest.CreatedAt).String()
		summary.LatestAssessmentType = latest.Kind
	}

	return summary
}
