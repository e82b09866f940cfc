package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/index"
	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

var statusCmd = &cobra.Command{
	Use:   "status <lecture_id>",
	Short: "Show whether a lecture has been processed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		rep, err := svc.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		p := theme.NewPainter(os.Stdout)
		style := theme.Correct
		if rep.Status != index.StatusReady {
			style = theme.Warn
		}
		fmt.Printf("Lecture:   %s\n", rep.LectureID)
		fmt.Printf("Status:    %s\n", p.Render(style, string(rep.Status)))

		if m := rep.Manifest; m != nil {
			fmt.Printf("Chunks:    %d\n", m.ChunkCount)
			fmt.Printf("Model:     %s (%d dims)\n", m.EmbedModel, m.Dimension)
			fmt.Printf("Source:    %s\n", m.Source)
			fmt.Printf("Indexed:   %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		if l := rep.Lecture; l != nil {
			fmt.Printf("Ingest:    %s\n", l.Status)
			if l.Error != "" {
				fmt.Printf("Error:     %s\n", p.Render(theme.Incorrect, l.Error))
			}
		}
		return nil
	},
}
