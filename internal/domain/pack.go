package domain

import "strings"

// TokenSource produces capability-bearing secret strings (transfer, listen,
// admin and registration tokens). Injected so tests stay deterministic.
type TokenSource func() string

// Pack is an ordered collection of slips owned by a producer, reusable
// across quizzes.
type Pack struct {
	ID            string `json:"id"`
	ProducerID    string `json:"producerId"`
	Name          string `json:"name"`
	TransferToken string `json:"transferToken"`
	Slips         []Slip `json:"slips"`
	Version       int64  `json:"version"`
}

// NewPack creates an empty pack for a producer with a fresh transfer token.
func NewPack(id, producerID, name string, tokens TokenSource) Pack {
	return Pack{
		ID:            id,
		ProducerID:    producerID,
		Name:          name,
		TransferToken: tokens(),
	}
}

// SetSlip replaces the slip at idx, or appends when idx is at or past the end.
func (p Pack) SetSlip(idx int, slip Slip) Pack {
	slips := make([]Slip, len(p.Slips))
	copy(slips, p.Slips)
	if idx >= 0 && idx < len(slips) {
		slips[idx] = slip
	} else {
		slips = append(slips, slip)
	}
	p.Slips = slips
	return p
}

// GetSlip is a bounds-checked lookup; out of range is absence, not an error.
func (p Pack) GetSlip(idx int) (Slip, bool) {
	if idx < 0 || idx >= len(p.Slips) {
		return Slip{}, false
	}
	return p.Slips[idx], true
}

// Transfer reassigns ownership to expertID if candidateToken matches the
// current transfer token, rotating the token on success.
func (p Pack) Transfer(expertID, candidateToken string, tokens TokenSource) (Pack, error) {
	candidate := strings.TrimSpace(candidateToken)
	if candidate == "" {
		return p, ErrEmptyToken
	}
	if candidate != strings.TrimSpace(p.TransferToken) {
		return p, ErrInvalidToken
	}
	p.ProducerID = expertID
	p.TransferToken = tokens()
	return p, nil
}
