package models

// ReviewVerdict is the reviewer's structured judgement of a draft.
type ReviewVerdict struct {
	Approved  bool   `json:"approved"`
	Rationale string `json:"rationale"`
}

func (v *ReviewVerdict) Clone() *ReviewVerdict {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
