package cmd

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/blocks"
	"github.com/abhisek/quail/internal/bucket"
	"github.com/abhisek/quail/internal/controller"
	"github.com/abhisek/quail/internal/ui/render"
	"github.com/abhisek/quail/internal/ui/theme"
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Start, pause, complete and delete practice blocks",
}

var poolLabels = map[bucket.Pool]blocks.Label{
	bucket.PoolUnused:     blocks.LabelUnused,
	bucket.PoolIncorrects: blocks.LabelIncorrects,
	bucket.PoolFlagged:    blocks.LabelFlagged,
	bucket.PoolAll:        blocks.LabelAll,
}

var blockStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a block from a pool, filtered by tags",
	Long: "Start a block. Questions are drawn from --pool and narrowed with\n" +
		"--tag dimension=value (repeatable), or listed explicitly with --ids.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBank(cmd, func(a *app, view *controller.View) error {
			ev, err := startEvent(cmd, a, view)
			if err != nil {
				return err
			}
			res, err := a.ctrl.Dispatch(cmd.Context(), ev)
			if err != nil {
				return err
			}
			limit := "untimed"
			if ev.Timed {
				limit = render.Duration(timeLimit(ev))
			}
			fmt.Printf("Started block %s: %d questions from %s (%s)\n",
				theme.Selected.Render(res.BlockID), len(ev.QuestionIDs), ev.Pool, limit)
			return nil
		})
	},
}

func startEvent(cmd *cobra.Command, a *app, view *controller.View) (controller.StartBlock, error) {
	flags := cmd.Flags()
	ev := controller.StartBlock{
		Timed:           a.cfg.Timed,
		TimePerQuestion: a.cfg.TimePerQuestion,
		ShowAnswers:     a.cfg.ShowAnswers,
	}
	if flags.Changed("timed") {
		ev.Timed, _ = flags.GetBool("timed")
	}
	if flags.Changed("time-per-question") {
		ev.TimePerQuestion, _ = flags.GetInt("time-per-question")
	}
	if flags.Changed("show-answers") {
		ev.ShowAnswers, _ = flags.GetBool("show-answers")
	}

	if ids, _ := flags.GetStringSlice("ids"); len(ids) > 0 {
		ev.QuestionIDs = ids
		ev.Pool = blocks.LabelCustom
		ev.AllSubtagsEnabled = true
		return ev, nil
	}

	poolName, _ := flags.GetString("pool")
	pool, err := bucket.ParsePool(poolName)
	if err != nil {
		return ev, err
	}
	tags, _ := flags.GetStringArray("tag")
	filter, err := parseTags(tags)
	if err != nil {
		return ev, err
	}
	ids, err := view.Progress.Buckets.Select(pool, filter)
	if err != nil {
		return ev, err
	}
	if len(ids) == 0 {
		return ev, fmt.Errorf("no %s questions match: %w", pool, controller.ErrEmptyBlock)
	}
	if shuffle, _ := flags.GetBool("shuffle"); shuffle {
		rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}
	if n, _ := flags.GetInt("count"); n > 0 && n < len(ids) {
		ids = ids[:n]
	}

	ev.QuestionIDs = ids
	ev.Pool = poolLabels[pool]
	ev.TagsChosen = strings.Join(tags, ", ")
	ev.AllSubtagsEnabled = len(tags) == 0
	return ev, nil
}

func timeLimit(ev controller.StartBlock) time.Duration {
	return time.Duration(ev.TimePerQuestion*len(ev.QuestionIDs)) * time.Second
}

// parseTags turns dimension=value pairs into a filter.
func parseTags(tags []string) (bucket.Filter, error) {
	f := bucket.Filter{Values: map[string][]string{}}
	for _, t := range tags {
		dim, value, ok := strings.Cut(t, "=")
		if !ok || dim == "" || value == "" {
			return f, fmt.Errorf("invalid tag %q: want dimension=value", t)
		}
		f.Values[dim] = append(f.Values[dim], value)
	}
	return f, nil
}

var blockPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a block, storing answers and elapsed time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBlockState(cmd, args[0], func(a *app, st blocks.State) error {
			if _, err := a.ctrl.Dispatch(cmd.Context(), controller.PauseBlock{BlockID: args[0], State: st}); err != nil {
				return err
			}
			fmt.Println("Paused block", args[0])
			return nil
		})
	},
}

var blockSaveCmd = &cobra.Command{
	Use:   "save <id>",
	Short: "Store a block's answers without pausing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBlockState(cmd, args[0], func(a *app, st blocks.State) error {
			if _, err := a.ctrl.Dispatch(cmd.Context(), controller.SaveBlock{BlockID: args[0], State: st}); err != nil {
				return err
			}
			fmt.Println("Saved block", args[0])
			return nil
		})
	},
}

var blockCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Grade and finish a block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBlockState(cmd, args[0], func(a *app, st blocks.State) error {
			res, err := a.ctrl.Dispatch(cmd.Context(), controller.CompleteBlock{BlockID: args[0], State: st})
			if err != nil {
				return err
			}
			b, err := res.View.Progress.History.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Completed block %s: %s correct, %s incorrect\n", args[0],
				theme.Correct.Render(fmt.Sprint(b.NumCorrect)),
				theme.Incorrect.Render(fmt.Sprint(b.NumIncorrect())))
			return a.finish(cmd.Context())
		})
	},
}

var blockDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a block and return its questions to the unused pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBank(cmd, func(a *app, _ *controller.View) error {
			if _, err := a.ctrl.Dispatch(cmd.Context(), controller.DeleteBlock{BlockID: args[0]}); err != nil {
				return err
			}
			fmt.Println("Deleted block", args[0])
			return nil
		})
	},
}

var blockOpenCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Show a block's questions and answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBank(cmd, func(a *app, _ *controller.View) error {
			res, err := a.ctrl.Dispatch(cmd.Context(), controller.OpenBlock{BlockID: args[0]})
			if err != nil {
				return err
			}
			b, err := res.View.Progress.History.Get(res.View.OpenBlock)
			if err != nil {
				return err
			}
			bank := a.ctrl.Bank()
			for i, qid := range b.QuestionIDs {
				answer := b.Answers[i]
				if answer == "" {
					answer = "-"
				}
				line := fmt.Sprintf("%3d  %-12s %s", i+1, qid, answer)
				if b.Complete {
					if bank.IsCorrect(qid, b.Answers[i]) {
						line = theme.Correct.Render(line)
					} else {
						line = theme.Incorrect.Render(line)
					}
				}
				if b.Flagged(i) {
					line += " " + theme.Paused.Render("⚑")
				}
				fmt.Println(line)
			}
			return nil
		})
	},
}

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the block history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBank(cmd, func(_ *app, view *controller.View) error {
			fmt.Println(render.History(view.Progress.History))
			return nil
		})
	},
}

// withBlockState loads the bank and builds the state reported for block id
// from the command's state flags. Unset flags keep the stored values.
func withBlockState(cmd *cobra.Command, id string, fn func(a *app, st blocks.State) error) error {
	return withBank(cmd, func(a *app, view *controller.View) error {
		b, err := view.Progress.History.Get(id)
		if err != nil {
			return err
		}
		st, err := stateFromFlags(cmd, b)
		if err != nil {
			return err
		}
		return fn(a, st)
	})
}

func stateFromFlags(cmd *cobra.Command, b *blocks.Block) (blocks.State, error) {
	flags := cmd.Flags()
	st := blocks.State{
		ElapsedTime:     b.ElapsedTime,
		CurrentQuestion: b.CurrentQuestion,
	}
	if flags.Changed("answers") {
		raw, _ := flags.GetString("answers")
		st.Answers = strings.Split(raw, ",")
		for i := range st.Answers {
			st.Answers[i] = strings.ToUpper(strings.TrimSpace(st.Answers[i]))
		}
	}
	if flags.Changed("flag") {
		nums, _ := flags.GetIntSlice("flag")
		st.Flags = make([]bool, b.Len())
		for _, n := range nums {
			if n < 1 || n > b.Len() {
				return st, fmt.Errorf("%w: flag %d out of range 1-%d", blocks.ErrStateMismatch, n, b.Len())
			}
			st.Flags[n-1] = true
		}
	}
	if flags.Changed("elapsed") {
		st.ElapsedTime, _ = flags.GetInt("elapsed")
	}
	if flags.Changed("current") {
		n, _ := flags.GetInt("current")
		st.CurrentQuestion = n - 1
	}
	return st, nil
}

func addStateFlags(c *cobra.Command) {
	c.Flags().String("answers", "", "Comma-separated answers in question order, blank for unanswered (e.g. A,,C)")
	c.Flags().IntSlice("flag", nil, "Question numbers to flag, 1-based")
	c.Flags().Int("elapsed", 0, "Elapsed seconds")
	c.Flags().Int("current", 1, "Question the block is on, 1-based")
}

func init() {
	f := blockStartCmd.Flags()
	f.String("pool", string(bucket.PoolUnused), "Pool to draw from: unused, incorrects, flagged or all")
	f.StringArray("tag", nil, "Restrict to dimension=value (repeatable)")
	f.StringSlice("ids", nil, "Explicit question ids (custom block)")
	f.Int("count", 20, "Maximum number of questions (0 for all)")
	f.Bool("shuffle", true, "Draw questions in random order")
	f.Bool("timed", false, "Limit the block's time")
	f.Int("time-per-question", 90, "Seconds per question in timed mode")
	f.Bool("show-answers", false, "Reveal answers as the block is taken")

	for _, c := range []*cobra.Command{blockPauseCmd, blockSaveCmd, blockCompleteCmd} {
		addStateFlags(c)
	}

	blockCmd.AddCommand(blockStartCmd)
	blockCmd.AddCommand(blockPauseCmd)
	blockCmd.AddCommand(blockSaveCmd)
	blockCmd.AddCommand(blockCompleteCmd)
	blockCmd.AddCommand(blockDeleteCmd)
	blockCmd.AddCommand(blockOpenCmd)
	blockCmd.AddCommand(blockListCmd)
}
