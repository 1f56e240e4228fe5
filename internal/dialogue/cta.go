package dialogue

// CTAType is the closed set of call-to-action kinds the front end knows how
// to render. Anything outside the set is rejected at construction.
type CTAType string

const (
	CTAConfirmSubmission CTAType = "confirm_submission"
	CTACreateAnyway      CTAType = "create_anyway"
	CTAViewStore         CTAType = "view_store"
	CTANavigate          CTAType = "navigate"
	CTAExternalLink      CTAType = "external_link"
	CTASearch            CTAType = "search"
)

// Valid reports whether t is a known CTA type.
func (t CTAType) Valid() bool {
	switch t {
	case CTAConfirmSubmission, CTACreateAnyway, CTAViewStore, CTANavigate, CTAExternalLink, CTASearch:
		return true
	}
	return false
}

// CTA is a structured action descriptor rendered as a button by the front
// end.
type CTA struct {
	Type   CTAType `json:"type"`
	Label  string  `json:"label"`
	Target string  `json:"target,omitempty"`
}

// newCTA builds a CTA, panicking on types outside the closed set. The set
// is fixed at compile time, so a bad type is a programming error.
func newCTA(t CTAType, label, target string) CTA {
	if !t.Valid() {
		panic("dialogue: unknown CTA type " + string(t))
	}
	return CTA{Type: t, Label: label, Target: target}
}
