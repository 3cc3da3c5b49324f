// Package workflow holds the progressive-unlock rules: handbook progress,
// SOP execution state and the status machines for users, tasks and incidents.
// Everything here is pure; services load state, apply a rule, then persist.
package workflow

import (
	"math"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
)

// SectionProgress counts completed required policies. Non-required policies
// never affect the result. A section without required policies reports 0%
// so that it cannot unlock a signature.
func SectionProgress(section domain.HandbookSection, completions map[int64]domain.PolicyCompletion) domain.SectionProgress {
	var p domain.SectionProgress
	for _, policy := range section.Policies {
		if !policy.Required {
			continue
		}
		p.Total++
		if c, ok := completions[policy.ID]; ok && c.Completed {
			p.Completed++
		}
	}
	if p.Total == 0 {
		return p
	}
	p.Percentage = int(math.Round(100 * float64(p.Completed) / float64(p.Total)))
	return p
}

// IsSectionComplete requires full progress and, when the section asks for
// one, a signature.
func IsSectionComplete(section domain.HandbookSection, progress domain.SectionProgress, signed bool) bool {
	if progress.Percentage != 100 {
		return false
	}
	if section.RequiresSignature {
		return signed
	}
	return true
}

// CheckSignable validates the signature preconditions in the order callers
// observe them: an existing signature wins over readiness.
func CheckSignable(progress domain.SectionProgress, alreadySigned bool) error {
	if alreadySigned {
		return apperr.ErrAlreadySigned
	}
	if progress.Percentage != 100 {
		return apperr.ErrSectionNotReady
	}
	return nil
}

// BuildSectionState assembles what one user sees for a section.
func BuildSectionState(section domain.HandbookSection, completions map[int64]domain.PolicyCompletion, sig *domain.Signature) domain.SectionState {
	progress := SectionProgress(section, completions)
	return domain.SectionState{
		Section:     section,
		Progress:    progress,
		Completions: completions,
		Signature:   sig,
		Complete:    IsSectionComplete(section, progress, sig != nil),
	}
}

// HandbookComplete is the AND over all sections. An empty handbook is not
// complete.
func HandbookComplete(states []domain.SectionState) bool {
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		if !s.Complete {
			return false
		}
	}
	return true
}
