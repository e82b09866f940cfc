package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/ingest"
	"github.com/chitchi46/lectureqa/internal/logger"
	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest lecture files dropped into a directory",
	Long: "Watch a directory and queue every new or updated lecture_<id>_<name> " +
		"file for background ingestion. Stop with Ctrl+C.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := theme.NewPainter(os.Stdout)
		q := svc.NewQueue(ingest.WithOnDone(func(res ingest.Result) {
			if res.Err != nil {
				fmt.Printf("%s %s: %v\n", p.Render(theme.Incorrect, "✗"), res.Job.LectureID, res.Err)
				return
			}
			fmt.Printf("%s %s: %d chunks\n", p.Render(theme.Correct, "✓"), res.Job.LectureID, res.Chunks)
		}))
		q.Start(ctx)
		defer q.Close()

		if once, _ := cmd.Flags().GetBool("initial"); once {
			jobs, err := ingest.JobsFromDir(args[0])
			if err != nil {
				return err
			}
			for _, job := range jobs {
				if err := q.Enqueue(ctx, job); err != nil {
					return err
				}
			}
		}

		fmt.Printf("Watching %s for lecture files. Press Ctrl+C to stop.\n", args[0])
		err = ingest.Watch(ctx, args[0], q.Enqueue)
		if err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("watch: stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("initial", false, "Also queue the lecture files already in the directory")
}
