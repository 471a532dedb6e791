package app

import (
	"fmt"

	"growth-core-service/internal/domain"
)

// BandedResultBuilder is the default ResultBuilder: each test is scored
// like a baseline catalog (sum of chosen option weights, band lookup) and
// the diagrams carry the per-item weights the client renders as charts.
type BandedResultBuilder struct{}

func NewBandedResultBuilder() BandedResultBuilder {
	return BandedResultBuilder{}
}

func (BandedResultBuilder) Build(test1Catalog, test2Catalog domain.Catalog, answers domain.ReviewAnswers) (domain.ReviewResult, error) {
	total1, band1, points1, err := scoreTest(test1Catalog, answers.Test1)
	if err != nil {
		return domain.ReviewResult{}, err
	}
	total2, band2, points2, err := scoreTest(test2Catalog, answers.Test2)
	if err != nil {
		return domain.ReviewResult{}, err
	}

	return domain.ReviewResult{
		Summary: fmt.Sprintf("%s (%d). %s (%d). %s %s",
			band1.Name, total1, band2.Name, total2, band1.Interpretation, band2.Interpretation),
		Diagrams: map[string][]int{
			"test1": points1,
			"test2": points2,
		},
	}, nil
}

func scoreTest(catalog domain.Catalog, answers []int) (int, domain.Band, []int, error) {
	if len(answers) != len(catalog.Steps) {
		return 0, domain.Band{}, nil, fmt.Errorf("%w: %s has %d answers for %d items", domain.ErrMissingAnswer, catalog.Kind, len(answers), len(catalog.Steps))
	}
	total := 0
	points := make([]int, len(answers))
	for i, step := range catalog.Steps {
		idx := answers[i]
		if idx < 0 || idx >= len(step.Options) {
			return 0, domain.Band{}, nil, fmt.Errorf("%w: item %q", domain.ErrMissingAnswer, step.ID)
		}
		points[i] = step.Options[idx].Score
		total += points[i]
	}
	for _, band := range catalog.Bands {
		if total >= band.Min && total <= band.Max {
			return total, band, points, nil
		}
	}
	return 0, domain.Band{}, nil, fmt.Errorf("%w: no band covers score %d in %s", domain.ErrInvalidAnswer, total, catalog.Kind)
}
