package model

// Session holds one conversation's progress through the feedback dialog.
// It is owned exclusively by the dialog service; the repository is a passive
// store keyed by conversation ID.
type Session struct {
	State       DialogState `json:"state"`
	OtherHandle string      `json:"otherHandle,omitempty"`
	DraftReview string      `json:"draftReview,omitempty"`
	DraftRating int         `json:"draftRating,omitempty"`
}

// NewSession returns the initial session for a conversation.
func NewSession() *Session {
	return &Session{State: StateIdle}
}

// Reset clears all dialog progress back to the initial state.
func (s *Session) Reset() {
	s.State = StateIdle
	s.OtherHandle = ""
	s.DraftReview = ""
	s.DraftRating = 0
}
