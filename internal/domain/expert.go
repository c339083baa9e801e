package domain

// Expert is an account entity tracking producer privilege and ownership
// links. Pure bookkeeping, no behavior beyond link maintenance.
type Expert struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	IsProducer     bool     `json:"isProducer"`
	QuizIDs        []string `json:"quizIds,omitempty"`
	PackIDs        []string `json:"packIds,omitempty"`
	CompetitionIDs []string `json:"competitionIds,omitempty"`
	Version        int64    `json:"version"`
}

// BecomeProducer grants producer privilege.
func (e Expert) BecomeProducer() Expert {
	e.IsProducer = true
	return e
}

// AddQuiz records ownership of a quiz.
func (e Expert) AddQuiz(quizID string) Expert {
	e.QuizIDs = appendUnique(e.QuizIDs, quizID)
	return e
}

// AddPack records ownership of a pack.
func (e Expert) AddPack(packID string) Expert {
	e.PackIDs = appendUnique(e.PackIDs, packID)
	return e
}

// RemovePack drops a pack link, typically after a transfer away.
func (e Expert) RemovePack(packID string) Expert {
	e.PackIDs = removeValue(e.PackIDs, packID)
	return e
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	out := make([]string, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

func removeValue(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
