package progress

import "time"

// Overview is the summary shown on the bank overview screen.
type Overview struct {
	CompletedBlocks int
	PausedBlocks    int

	// Answered, Correct and Incorrect count questions of completed blocks.
	Answered  int
	Correct   int
	Incorrect int

	All     int
	Seen    int
	Flagged int

	TotalTime time.Duration
}

// Overview summarizes the aggregate.
func (a *Aggregate) Overview() Overview {
	var o Overview
	for _, b := range a.History.Blocks() {
		if !b.Complete {
			o.PausedBlocks++
			continue
		}
		o.CompletedBlocks++
		o.Answered += b.Len()
		o.Correct += b.NumCorrect
		o.TotalTime += time.Duration(b.ElapsedTime) * time.Second
	}
	o.Incorrect = o.Answered - o.Correct

	totals := a.Buckets.Totals()
	o.All = totals.All
	o.Seen = totals.Seen()
	o.Flagged = totals.Flagged
	return o
}

// CorrectPct returns correct answers as a percentage of answered ones.
func (o Overview) CorrectPct() float64 { return pct(o.Correct, o.Answered) }

// IncorrectPct returns incorrect answers as a percentage of answered ones.
func (o Overview) IncorrectPct() float64 { return pct(o.Incorrect, o.Answered) }

// SeenPct returns seen questions as a percentage of the bank.
func (o Overview) SeenPct() float64 { return pct(o.Seen, o.All) }

// FlaggedPct returns flagged questions as a percentage of seen ones.
func (o Overview) FlaggedPct() float64 { return pct(o.Flagged, o.Seen) }

// AvgPerQuestion returns the mean time spent per answered question.
func (o Overview) AvgPerQuestion() time.Duration {
	if o.Answered == 0 {
		return 0
	}
	return o.TotalTime / time.Duration(o.Answered)
}

// Blocks returns the number of blocks in the history.
func (o Overview) Blocks() int { return o.CompletedBlocks + o.PausedBlocks }

func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}
