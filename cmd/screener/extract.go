package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alfredoptarigan/resume-screener/internal/services"
)

var extractCommand = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Print the plain text of PDF, DOCX or text files",
	Long:  "Detects each file's format from its leading bytes and prints the extracted text. DOCX files the docx reader cannot open are converted with pandoc.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtractCmd,
}

var (
	extractClean bool
	extractPages bool
)

func init() {
	extractCommand.Flags().BoolVar(&extractClean, "clean", false, "Trim lines and drop empty ones")
	extractCommand.Flags().BoolVar(&extractPages, "pages", false, "Mark page boundaries and print the page count")
	rootCmd.AddCommand(extractCommand)
}

func runExtractCmd(cmd *cobra.Command, args []string) error {
	parser := services.NewDocumentParserService(nil)
	out := cmd.OutOrStdout()

	for i, path := range args {
		if len(args) > 1 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "===== %s =====\n", path)
		}

		if extractPages {
			doc, err := parser.ExtractPages(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("failed to extract %s: %w", path, err)
			}
			if extractClean {
				for j := range doc.Pages {
					doc.Pages[j].Text = services.CleanText(doc.Pages[j].Text)
				}
			}
			fmt.Fprint(out, doc.Render())
			fmt.Fprintf(out, "Pages: %d\n", doc.PageCount)
			continue
		}

		text, err := parser.ExtractText(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", path, err)
		}
		if extractClean {
			text = services.CleanText(text)
		}
		fmt.Fprintln(out, text)
	}
	return nil
}
