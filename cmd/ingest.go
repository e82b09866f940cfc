package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/ingest"
	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <lecture_id> <file>",
	Short: "Extract, chunk and index a lecture document",
	Long: "Ingest one lecture file, or with --batch every lecture_<id>_<name> file " +
		"in a directory. Ingesting a lecture again replaces its index.",
	Args: func(cmd *cobra.Command, args []string) error {
		if batch, _ := cmd.Flags().GetString("batch"); batch != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		p := theme.NewPainter(os.Stdout)

		if batch, _ := cmd.Flags().GetString("batch"); batch != "" {
			jobs, err := ingest.JobsFromDir(batch)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Printf("No lecture_<id>_<name> files in %s.\n", batch)
				return nil
			}

			failed := 0
			for _, res := range svc.IngestAll(ctx, jobs) {
				if res.Err != nil {
					failed++
					fmt.Printf("%s %-16s %v\n", p.Render(theme.Incorrect, "✗"), res.Job.LectureID, res.Err)
					continue
				}
				fmt.Printf("%s %-16s %d chunks (%s)\n", p.Render(theme.Correct, "✓"), res.Job.LectureID, res.Chunks, res.Elapsed.Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d lectures failed to ingest", failed, len(jobs))
			}
			return nil
		}

		declared, _ := cmd.Flags().GetString("type")
		res, err := svc.Ingest(ctx, args[0], args[1], declared)
		if err != nil {
			return err
		}
		fmt.Printf("%s Lecture %s indexed: %d chunks with %s in %s\n",
			p.Render(theme.Correct, "✓"), args[0], res.Chunks, res.Manifest.EmbedModel, res.Elapsed.Round(time.Millisecond))
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("batch", "", "Ingest every lecture_<id>_<name> file in this directory")
	ingestCmd.Flags().String("type", "", "Declared file type (pdf, docx, txt) overriding the extension")
}
