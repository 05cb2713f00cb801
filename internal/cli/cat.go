package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/content"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	catScan  string
	catPlain bool
	catColor bool
)

var catCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Print a repository file with vulnerability annotations",
	Long: `Print a file of the repository with line numbers. Lines carrying
vulnerabilities of the selected scan (latest by default) are marked with
their highest severity; findings without a usable line are listed below.`,
	Example: `  scanfix cat src/app.py
  scanfix cat src/app.py --scan 3f2a...
  scanfix cat src/app.py --plain > app.py`,
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

func init() {
	catCmd.Flags().StringVar(&catScan, "scan", "",
		"scan ID to annotate with (default: latest scan)")
	catCmd.Flags().BoolVar(&catPlain, "plain", false,
		"print the decoded file only, without gutter or annotations")
	catCmd.Flags().BoolVar(&catColor, "color", false,
		"force colored output when stdout is not a terminal")
}

func runCat(cmd *cobra.Command, args []string) error {
	repoID, err := requireRepository()
	if err != nil {
		return err
	}
	path := strings.Trim(args[0], "/")
	if err := api.ValidatePath(path); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	ctx := commandContext(cmd)
	client := newClient()

	raw, err := client.GetFile(ctx, repoID, path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	text := content.Text(raw)

	if catPlain {
		fmt.Println(text)
		return nil
	}

	var idx *vulnindex.Index
	scanID, err := resolveScanID(ctx, client, catScan)
	if err != nil {
		return err
	}
	if scanID != "" {
		snap, _, err := fetchSnapshot(ctx, client, openStore(), scanID, true)
		if err != nil {
			return err
		}
		if snap.Scan.Status != models.ScanCompleted {
			logVerbose("Scan %s is %s; printing without annotations", scanID, snap.Scan.Status)
		}
		idx = vulnindex.Build(snap.Vulnerabilities)
	}

	doc := content.Annotate(path, text, idx)
	color := catColor || term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Println(content.Render(doc, content.RenderOptions{Color: color}))

	if len(doc.Unplaced) > 0 {
		fmt.Printf("\nFindings without a line (%d):\n", len(doc.Unplaced))
		for _, v := range doc.Unplaced {
			fmt.Printf("  [%s] %s (%s)\n", strings.ToUpper(string(v.Severity)), v.Title, v.ID)
		}
	}
	return nil
}
