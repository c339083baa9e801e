package domain

// QuestionBodyKind distinguishes a solid question text from a multi-part one.
type QuestionBodyKind string

const (
	// BodySolid is a single block of question text.
	BodySolid QuestionBodyKind = "solid"
	// BodySplit is an ordered list of sub-texts revealed part by part.
	BodySplit QuestionBodyKind = "split"
)

// Question is one authored question inside a slip.
type Question struct {
	BodyKind     QuestionBodyKind `json:"bodyKind"`
	Text         string           `json:"text,omitempty"`
	Parts        []string         `json:"parts,omitempty"`
	ImageKey     string           `json:"imageKey,omitempty"`
	Answer       string           `json:"answer"`
	Comment      string           `json:"comment,omitempty"`
	CommentImage string           `json:"commentImage,omitempty"`
	Points       float64          `json:"points"`
	Jeopardy     bool             `json:"jeopardy"` // wrong answer subtracts Points instead of scoring zero
}

// SolidQuestion builds a question with a single text body.
func SolidQuestion(text, answer string, points float64) Question {
	return Question{BodyKind: BodySolid, Text: text, Answer: answer, Points: points}
}

// SplitQuestion builds a question whose body is revealed in parts.
func SplitQuestion(parts []string, answer string, points float64) Question {
	return Question{BodyKind: BodySplit, Parts: parts, Answer: answer, Points: points}
}

// SlipKind distinguishes a single-question slip from a named group.
type SlipKind string

const (
	SlipSingle   SlipKind = "single"
	SlipMultiple SlipKind = "multiple"
)

// Slip is one question or a named group of questions authored as a unit.
type Slip struct {
	Kind      SlipKind   `json:"kind"`
	Name      string     `json:"name,omitempty"`
	Question  Question   `json:"question,omitempty"`
	Questions []Question `json:"questions,omitempty"`
}

// SingleSlip wraps one question.
func SingleSlip(q Question) Slip {
	return Slip{Kind: SlipSingle, Question: q}
}

// MultipleSlip wraps a named ordered group of questions.
func MultipleSlip(name string, qs []Question) Slip {
	return Slip{Kind: SlipMultiple, Name: name, Questions: qs}
}

// EmptySlip is the fallback content for a tour with no linked package slip.
func EmptySlip() Slip {
	return SingleSlip(SolidQuestion("", "", 1))
}

// QuestionsCount is 1 for a single slip and the group length for a multiple one.
func (s Slip) QuestionsCount() int {
	if s.Kind == SlipMultiple {
		return len(s.Questions)
	}
	return 1
}

// QuestionAt returns the question at idx within the slip.
func (s Slip) QuestionAt(idx int) (Question, bool) {
	if s.Kind == SlipMultiple {
		if idx < 0 || idx >= len(s.Questions) {
			return Question{}, false
		}
		return s.Questions[idx], true
	}
	if idx != 0 {
		return Question{}, false
	}
	return s.Question, true
}
