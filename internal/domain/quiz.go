package domain

import (
	"regexp"
	"strconv"
	"time"
)

// QuizStatus is the linear lifecycle of a quiz.
type QuizStatus string

const (
	QuizDraft     QuizStatus = "draft"
	QuizPublished QuizStatus = "published"
	QuizLive      QuizStatus = "live"
	QuizFinished  QuizStatus = "finished"
	QuizArchived  QuizStatus = "archived"
)

// TourStatus is the linear lifecycle of a single played round.
type TourStatus string

const (
	TourAnnouncing TourStatus = "announcing"
	TourCountdown  TourStatus = "countdown"
	TourSettled    TourStatus = "settled"
)

const (
	defaultTourName    = "Round 1"
	defaultTourSeconds = 60
)

// PackProvider resolves a pack by ID when materializing tours from a linked
// pack. Absence is a normal state, not an error.
type PackProvider func(packID string) (Pack, bool)

// Descriptor carries quiz identity, status and capability tokens.
type Descriptor struct {
	ID           string     `json:"id"`
	ProducerID   string     `json:"producerId"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	Name         string     `json:"name"`
	ImageKey     string     `json:"imageKey,omitempty"`
	WelcomeText  string     `json:"welcomeText,omitempty"`
	FarewellText string     `json:"farewellText,omitempty"`
	Status       QuizStatus `json:"status"`
	IsPrivate    bool       `json:"isPrivate"`
	Moderated    bool       `json:"moderated"`
	ListenToken  string     `json:"listenToken"`
	AdminToken   string     `json:"adminToken"`
	RegToken     string     `json:"regToken"`
	PackID       string     `json:"packId,omitempty"`
	PackSlipIdx  int        `json:"packSlipIdx"`
	StreamCode   string     `json:"streamCode,omitempty"`
}

// IsPublicListable reports whether discovery surfaces may list the quiz.
func (d Descriptor) IsPublicListable() bool {
	switch d.Status {
	case QuizPublished, QuizLive, QuizFinished:
		return !d.IsPrivate
	}
	return false
}

// VisibleText selects the welcome text before and during play, the farewell
// text once the quiz is over.
func (d Descriptor) VisibleText() string {
	switch d.Status {
	case QuizFinished, QuizArchived:
		return d.FarewellText
	}
	return d.WelcomeText
}

// Tour is one played round: a slip snapshot plus countdown timing and the
// question cursor within the slip.
type Tour struct {
	Name      string     `json:"name"`
	Seconds   int        `json:"seconds"`
	Status    TourStatus `json:"status"`
	StartTime *time.Time `json:"startTime,omitempty"`
	NextQwIdx int        `json:"nextQwIdx"`
	Slip      Slip       `json:"slip"`
}

// Deadline returns the countdown expiry instant, if counting down.
func (t Tour) Deadline() (time.Time, bool) {
	if t.Status != TourCountdown || t.StartTime == nil {
		return time.Time{}, false
	}
	return t.StartTime.Add(time.Duration(t.Seconds) * time.Second), true
}

// IsCountdownExpired reports whether the countdown window has elapsed at now.
func (t Tour) IsCountdownExpired(now time.Time) bool {
	deadline, ok := t.Deadline()
	return ok && !now.Before(deadline)
}

// Quiz is the aggregate: descriptor plus tours, most recent first.
type Quiz struct {
	Descriptor Descriptor `json:"descriptor"`
	Tours      []Tour     `json:"tours"`
	Version    int64      `json:"version"`
}

// NewQuiz creates a draft quiz with freshly issued capability tokens.
func NewQuiz(id, producerID, name string, tokens TokenSource) Quiz {
	return Quiz{
		Descriptor: Descriptor{
			ID:          id,
			ProducerID:  producerID,
			Name:        name,
			Status:      QuizDraft,
			ListenToken: tokens(),
			AdminToken:  tokens(),
			RegToken:    tokens(),
		},
	}
}

// CurrentTour returns the head tour; absence means the quiz has not gone live.
func (q Quiz) CurrentTour() (Tour, bool) {
	if len(q.Tours) == 0 {
		return Tour{}, false
	}
	return q.Tours[0], true
}

// SetStatus moves the quiz to the given status. Going Live with no tours
// materializes the first tour from the linked pack cursor, or from an empty
// slip when nothing resolves, so a Live quiz always has a current tour.
func (q Quiz) SetStatus(status QuizStatus, packs PackProvider) Quiz {
	q.Descriptor.Status = status
	if status == QuizLive && len(q.Tours) == 0 {
		slip := q.resolveSlip(q.Descriptor.PackSlipIdx, packs)
		q.Tours = []Tour{{
			Name:    defaultTourName,
			Seconds: defaultTourSeconds,
			Status:  TourAnnouncing,
			Slip:    slip,
		}}
	}
	return q
}

func (q Quiz) resolveSlip(slipIdx int, packs PackProvider) Slip {
	if q.Descriptor.PackID == "" || packs == nil {
		return EmptySlip()
	}
	pack, ok := packs(q.Descriptor.PackID)
	if !ok {
		return EmptySlip()
	}
	slip, ok := pack.GetSlip(slipIdx)
	if !ok {
		return EmptySlip()
	}
	return slip
}

// withHeadTour applies fn to the head tour when the quiz is Live. Anything
// else is a silent no-op so delayed producer events cannot corrupt a quiz
// that already moved on.
func (q Quiz) withHeadTour(fn func(Tour) Tour) Quiz {
	if q.Descriptor.Status != QuizLive || len(q.Tours) == 0 {
		return q
	}
	tours := make([]Tour, len(q.Tours))
	copy(tours, q.Tours)
	tours[0] = fn(tours[0])
	q.Tours = tours
	return q
}

func clampQwIdx(idx, count int) int {
	if idx < 0 {
		return 0
	}
	if idx > count {
		return count
	}
	return idx
}

// SetQuestionIdx moves the head tour's question cursor, clamped to the slip.
func (q Quiz) SetQuestionIdx(idx int) Quiz {
	return q.withHeadTour(func(t Tour) Tour {
		t.NextQwIdx = clampQwIdx(idx, t.Slip.QuestionsCount())
		return t
	})
}

// UpdateTour replaces the head tour's content and advances its cursor by one,
// recording the pack cursor on the descriptor.
func (q Quiz) UpdateTour(name string, seconds, packSlipIdx int, slip Slip) Quiz {
	q = q.withHeadTour(func(t Tour) Tour {
		t.Name = name
		t.Seconds = seconds
		t.Slip = slip
		t.NextQwIdx = clampQwIdx(t.NextQwIdx+1, slip.QuestionsCount())
		return t
	})
	if q.Descriptor.Status == QuizLive {
		q.Descriptor.PackSlipIdx = packSlipIdx
	}
	return q
}

// NextQuestion pushes new content into the same tour, advancing the cursor
// past the question currently being played. Since the cursor always sits on
// the played question when content is replaced, the advance is the same
// current-position+1 step UpdateTour performs, so this delegates to it and
// exists as the producer-facing name for that intent.
func (q Quiz) NextQuestion(name string, seconds, packSlipIdx int, slip Slip) Quiz {
	return q.UpdateTour(name, seconds, packSlipIdx, slip)
}

// StartCountdown opens the answer window of the head tour at now.
func (q Quiz) StartCountdown(now time.Time) Quiz {
	return q.withHeadTour(func(t Tour) Tour {
		t.Status = TourCountdown
		t.StartTime = &now
		t.NextQwIdx = clampQwIdx(t.NextQwIdx+1, t.Slip.QuestionsCount())
		return t
	})
}

// PauseCountdown reverts the head tour to announcing without touching the
// question cursor.
func (q Quiz) PauseCountdown() Quiz {
	return q.withHeadTour(func(t Tour) Tour {
		t.Status = TourAnnouncing
		t.StartTime = nil
		return t
	})
}

// Settle freezes the head tour; no further answers are accepted downstream.
func (q Quiz) Settle() Quiz {
	return q.withHeadTour(func(t Tour) Tour {
		t.Status = TourSettled
		return t
	})
}

// Next appends a brand-new tour from the next pack slip, or an empty slip
// when the pack does not resolve. The previous tour keeps its place in
// history; the tours list only grows.
func (q Quiz) Next(packs PackProvider) Quiz {
	if q.Descriptor.Status != QuizLive {
		return q
	}
	prevName := ""
	seconds := defaultTourSeconds
	if prev, ok := q.CurrentTour(); ok {
		prevName = prev.Name
		seconds = prev.Seconds
	}
	cursor := q.Descriptor.PackSlipIdx + 1
	tour := Tour{
		Name:    NextTourName(prevName),
		Seconds: seconds,
		Status:  TourAnnouncing,
		Slip:    q.resolveSlip(cursor, packs),
	}
	q.Descriptor.PackSlipIdx = cursor
	q.Tours = append([]Tour{tour}, q.Tours...)
	return q
}

var trailingDigits = regexp.MustCompile(`^(.*?)(\d+)$`)

// NextTourName derives the follow-up tour name by incrementing a trailing
// integer ("Round3" -> "Round4"), appending "1" when there is none
// ("Final" -> "Final1"), or falling back to the default for the first tour.
func NextTourName(prev string) string {
	if prev == "" {
		return defaultTourName
	}
	if m := trailingDigits.FindStringSubmatch(prev); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return m[1] + strconv.Itoa(n+1)
		}
	}
	return prev + "1"
}
