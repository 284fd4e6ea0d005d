package decision

import (
	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
)

// Rejection reasons.
const (
	ReasonWrongJournal    = "Wrong journal"
	ReasonWrongAuthor     = "Wrong author"
	ReasonUnknownAuthor   = "Unknown author"
	ReasonUnparsable      = "Unable to parse release"
	ReasonNoDOIMatch      = "Unable to parse release and no DOI match"
	ReasonNotRequested    = "Item wasn't requested"
	ReasonNotAnUpgrade    = "Not an upgrade"
	ReasonUnexpectedError = "Unexpected error processing release"
)

// Evaluation is the verdict of one rule.
type Evaluation struct {
	Accepted bool
	Reason   string
}

// Accept returns an accepting evaluation.
func Accept() Evaluation {
	return Evaluation{Accepted: true}
}

// Reject returns a rejecting evaluation.
func Reject(reason string) Evaluation {
	return Evaluation{Reason: reason}
}

// Rule is one independent check of a candidate against a criteria. Rules
// must be pure: the same inputs always give the same evaluation.
type Rule interface {
	Name() string
	Evaluate(c *domain.Candidate, criteria *domain.SearchCriteria) Evaluation
}

// IdentityRule checks the candidate belongs to the searched author or journal.
type IdentityRule struct{}

// Name implements Rule.
func (IdentityRule) Name() string { return "identity" }

// Evaluate implements Rule.
func (IdentityRule) Evaluate(c *domain.Candidate, criteria *domain.SearchCriteria) Evaluation {
	if criteria == nil || criteria.Author == nil {
		return Accept()
	}
	want := criteria.Author
	got := c.Author

	switch {
	case want.IsJournal() && got.IsJournal():
		if sameEntity(got, want) {
			return Accept()
		}
		return Reject(ReasonWrongJournal)

	case want.IsJournal():
		// Legacy shape: the journal was stored as a person entity. The parsed
		// author name is not compared because papers have many authors.
		if got != nil && sameEntity(got, want) {
			return Accept()
		}
		return Reject(ReasonWrongJournal)

	case got.IsJournal():
		return Accept()
	}

	if got == nil {
		return Reject(ReasonUnknownAuthor)
	}
	if got.ID == want.ID {
		return Accept()
	}
	return Reject(ReasonWrongAuthor)
}

func sameEntity(a, b *domain.Author) bool {
	if a.ID != 0 && a.ID == b.ID {
		return true
	}
	return a.ForeignID != "" && a.ForeignID == b.ForeignID
}

// RequestedItemRule checks the candidate is one of the requested items.
type RequestedItemRule struct{}

// Name implements Rule.
func (RequestedItemRule) Name() string { return "requested_item" }

// Evaluate implements Rule.
func (RequestedItemRule) Evaluate(c *domain.Candidate, criteria *domain.SearchCriteria) Evaluation {
	if criteria == nil || len(criteria.Books) == 0 {
		return Accept()
	}

	if len(c.Books) == 0 {
		if criteria.InteractiveSearch {
			return Reject(ReasonUnparsable)
		}
		if doi.IsMatch(&c.Release, criteria) {
			return Accept()
		}
		return Reject(ReasonNoDOIMatch)
	}

	requested := make(map[int64]struct{}, len(criteria.Books))
	for _, b := range criteria.Books {
		requested[b.ID] = struct{}{}
	}
	for _, b := range c.Books {
		if _, ok := requested[b.ID]; ok {
			return Accept()
		}
	}
	return Reject(ReasonNotRequested)
}

// UpgradeRule rejects candidates that would not improve on stored files.
type UpgradeRule struct {
	// PreferRevisions rejects an equal-quality candidate when a stored file
	// carries a higher revision (proper/repack).
	PreferRevisions bool
}

// Name implements Rule.
func (UpgradeRule) Name() string { return "upgrade" }

// Evaluate implements Rule.
func (r UpgradeRule) Evaluate(c *domain.Candidate, criteria *domain.SearchCriteria) Evaluation {
	if criteria == nil || len(criteria.ExistingFiles) == 0 {
		return Accept()
	}
	profile := qualityProfile(c, criteria)
	if profile == nil || len(profile.Items) == 0 {
		return Accept()
	}

	rank := profile.Rank(c.Quality)
	for _, f := range criteria.ExistingFiles {
		existing := profile.Rank(f.Quality)
		if rank < existing {
			return Reject(ReasonNotAnUpgrade)
		}
		if rank == existing && r.PreferRevisions && f.Quality.Revision > c.Quality.Revision {
			return Reject(ReasonNotAnUpgrade)
		}
	}
	return Accept()
}

func qualityProfile(c *domain.Candidate, criteria *domain.SearchCriteria) *domain.QualityProfile {
	if criteria.Author != nil && criteria.Author.QualityProfile != nil {
		return criteria.Author.QualityProfile
	}
	if c.Author != nil {
		return c.Author.QualityProfile
	}
	return nil
}

// DefaultRules returns the rule chain in diagnostic order.
func DefaultRules(preferRevisions bool) []Rule {
	return []Rule{
		IdentityRule{},
		RequestedItemRule{},
		UpgradeRule{PreferRevisions: preferRevisions},
	}
}
