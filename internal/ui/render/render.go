// Package render formats progress for the terminal.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/quail/internal/blocks"
	"github.com/abhisek/quail/internal/bucket"
	"github.com/abhisek/quail/internal/dataset"
	"github.com/abhisek/quail/internal/progress"
	"github.com/abhisek/quail/internal/store"
	"github.com/abhisek/quail/internal/ui/theme"
)

const barWidth = 24

// Overview renders the bank overview card.
func Overview(bank string, o progress.Overview) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(bank))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(theme.Label.Render(label))
		b.WriteString(theme.Value.Render(value))
		b.WriteString("\n")
	}
	row("Blocks", fmt.Sprintf("%d completed, %d paused", o.CompletedBlocks, o.PausedBlocks))
	row("Answered", strconv.Itoa(o.Answered))
	row("Correct", fmt.Sprintf("%d  %s", o.Correct, theme.Bar(o.CorrectPct()/100, barWidth)))
	row("Incorrect", fmt.Sprintf("%d  %s", o.Incorrect, theme.Bar(o.IncorrectPct()/100, barWidth)))
	row("Seen", fmt.Sprintf("%d/%d  %s", o.Seen, o.All, theme.Bar(o.SeenPct()/100, barWidth)))
	row("Flagged", fmt.Sprintf("%d/%d  %s", o.Flagged, o.Seen, theme.Bar(o.FlaggedPct()/100, barWidth)))
	row("Avg per question", Duration(o.AvgPerQuestion()))
	row("Total time", Duration(o.TotalTime))

	return theme.Card.Render(strings.TrimRight(b.String(), "\n"))
}

// Summary renders one table per taxonomy dimension with the pool sizes of
// every tag value.
func Summary(tax dataset.Taxonomy, idx *bucket.Index) string {
	var sections []string
	for dim, name := range tax {
		rows := [][]string{{name, "all", "unused", "incorrect", "flagged"}}
		for _, vc := range idx.Summary(dim) {
			rows = append(rows, []string{
				vc.Value,
				strconv.Itoa(vc.All),
				strconv.Itoa(vc.Unused),
				strconv.Itoa(vc.Incorrects),
				strconv.Itoa(vc.Flagged),
			})
		}
		sections = append(sections, table(rows, poolColumn))
	}
	return strings.Join(sections, "\n\n")
}

func poolColumn(col int, cell string) string {
	switch col {
	case 2:
		return lipgloss.NewStyle().Foreground(theme.PoolUnused).Render(cell)
	case 3:
		return lipgloss.NewStyle().Foreground(theme.PoolIncorrects).Render(cell)
	case 4:
		return lipgloss.NewStyle().Foreground(theme.PoolFlagged).Render(cell)
	}
	return cell
}

// History renders the block history, oldest first.
func History(h *blocks.History) string {
	if h.Len() == 0 {
		return theme.Hint.Render("No blocks yet.")
	}
	rows := [][]string{{"id", "status", "questions", "score", "pool", "time", "started"}}
	for _, id := range h.IDs() {
		b, err := h.Get(id)
		if err != nil {
			continue
		}
		status, score := "paused", fmt.Sprintf("q%d", b.CurrentQuestion+1)
		if b.Complete {
			status = "complete"
			score = fmt.Sprintf("%d/%d", b.NumCorrect, b.Len())
		}
		rows = append(rows, []string{
			id,
			status,
			strconv.Itoa(b.Len()),
			score,
			string(b.Pool),
			elapsed(b),
			b.StartTime,
		})
	}
	return table(rows, func(col int, cell string) string {
		if col != 1 {
			return cell
		}
		if cell == "complete" {
			return theme.Correct.Render(cell)
		}
		return theme.Paused.Render(cell)
	})
}

func elapsed(b *blocks.Block) string {
	spent := Duration(time.Duration(b.ElapsedTime) * time.Second)
	if b.TimeLimit == blocks.Untimed {
		return spent
	}
	return spent + " / " + Duration(time.Duration(b.TimeLimit)*time.Second)
}

// Events renders the block event log.
func Events(events []store.BlockEvent) string {
	if len(events) == 0 {
		return theme.Hint.Render("No events recorded.")
	}
	rows := [][]string{{"#", "when", "bank", "block", "action", "questions", "correct"}}
	for _, e := range events {
		rows = append(rows, []string{
			strconv.FormatInt(e.Sequence, 10),
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.Bank,
			e.BlockID,
			e.Action,
			strconv.Itoa(e.Questions),
			strconv.Itoa(e.Correct),
		})
	}
	return table(rows, nil)
}

// Duration formats d as h:mm:ss, or m:ss under an hour.
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// table left-aligns rows into columns. The first row is the header.
// style, when set, colors body cells after padding.
func table(rows [][]string, style func(col int, cell string) string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for n, r := range rows {
		cells := make([]string, len(r))
		for i, cell := range r {
			padded := cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			switch {
			case n == 0:
				padded = theme.TableHeader.Render(padded)
			case style != nil:
				padded = style(i, padded)
			}
			cells[i] = padded
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		if n < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
