package app

import (
	"fmt"
	"sort"

	"growth-core-service/internal/domain"
)

// Score sums the chosen option weight of every question and resolves the
// band the total falls into. The answer set must already be complete and
// in range; incomplete input is rejected naming the offending step, never
// patched with a default weight.
func Score(catalog domain.Catalog, answers map[string]domain.Answer) (int, domain.Band, error) {
	if err := ValidateComplete(catalog, answers); err != nil {
		return 0, domain.Band{}, err
	}

	total := 0
	for _, step := range catalog.Steps {
		if step.Kind != domain.StepQuestion {
			continue
		}
		total += step.Options[*answers[step.ID].OptionIndex].Score
	}

	for _, band := range catalog.Bands {
		if total >= band.Min && total <= band.Max {
			return total, band, nil
		}
	}
	// Unreachable for catalogs that passed ValidateCatalog.
	return 0, domain.Band{}, fmt.Errorf("%w: no band covers score %d", domain.ErrInvalidAnswer, total)
}

// ValidateCatalog runs at content-load time, never per request. It checks
// that questions have options and that the band table partitions the full
// achievable score domain with no gaps or overlaps.
func ValidateCatalog(catalog domain.Catalog) error {
	seen := make(map[string]struct{}, len(catalog.Steps))
	for _, step := range catalog.Steps {
		if step.ID == "" {
			return fmt.Errorf("catalog %q: step with empty id", catalog.Kind)
		}
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("catalog %q: duplicate step id %q", catalog.Kind, step.ID)
		}
		seen[step.ID] = struct{}{}
		switch step.Kind {
		case domain.StepConsent:
			if len(step.Options) != 0 {
				return fmt.Errorf("catalog %q: consent %q must not carry options", catalog.Kind, step.ID)
			}
		case domain.StepQuestion:
			if len(step.Options) == 0 {
				return fmt.Errorf("catalog %q: question %q has no options", catalog.Kind, step.ID)
			}
		default:
			return fmt.Errorf("catalog %q: step %q has unknown kind %q", catalog.Kind, step.ID, step.Kind)
		}
	}

	if len(catalog.Bands) == 0 {
		return fmt.Errorf("catalog %q: no bands", catalog.Kind)
	}
	bands := make([]domain.Band, len(catalog.Bands))
	copy(bands, catalog.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min })

	min, max := catalog.MinScore(), catalog.MaxScore()
	if bands[0].Min > min {
		return fmt.Errorf("catalog %q: bands start at %d, achievable minimum is %d", catalog.Kind, bands[0].Min, min)
	}
	for i, b := range bands {
		if b.Max < b.Min {
			return fmt.Errorf("catalog %q: band %q has max below min", catalog.Kind, b.Name)
		}
		if i > 0 && b.Min != bands[i-1].Max+1 {
			return fmt.Errorf("catalog %q: gap or overlap between bands %q and %q", catalog.Kind, bands[i-1].Name, b.Name)
		}
	}
	if bands[len(bands)-1].Max < max {
		return fmt.Errorf("catalog %q: bands end at %d, achievable maximum is %d", catalog.Kind, bands[len(bands)-1].Max, max)
	}
	return nil
}
