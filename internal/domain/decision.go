package domain

// Verdict is the outcome of evaluating a candidate.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictReject Verdict = "reject"
)

// Rejection is one reason a rule refused a candidate.
type Rejection struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// Candidate is a release together with its resolution against the catalog.
// Author and Books are empty when the release could not be matched.
type Candidate struct {
	Release Release `json:"release"`
	Author  *Author `json:"author,omitempty"`
	Books   []Book  `json:"books,omitempty"`
	Quality Quality `json:"quality"`
}

// Decision is the verdict for one candidate against one criteria.
type Decision struct {
	Candidate  Candidate   `json:"candidate"`
	Verdict    Verdict     `json:"verdict"`
	Rejections []Rejection `json:"rejections,omitempty"`

	// Weight orders decisions: lower is better.
	Weight int `json:"weight"`
}

// Approved reports whether every rule accepted the candidate.
func (d *Decision) Approved() bool {
	return d.Verdict == VerdictAccept && len(d.Rejections) == 0
}

// NewDecision builds a decision from the collected rejections and computes
// its weight. Rejections dominate the weight; source priority breaks ties.
func NewDecision(c Candidate, rejections []Rejection) Decision {
	verdict := VerdictAccept
	if len(rejections) > 0 {
		verdict = VerdictReject
	}
	return Decision{
		Candidate:  c,
		Verdict:    verdict,
		Rejections: rejections,
		Weight:     len(rejections)*(MaxPriority+1) + c.Release.SourcePriority,
	}
}
