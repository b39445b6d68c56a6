package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipdot/clipd/internal/types"
)

var historyLimit int

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Ping(); err != nil {
			return err
		}
		fmt.Println("daemon is running")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List clipboard history, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundles, err := client.History(historyLimit)
		if err != nil {
			return err
		}
		for i, b := range bundles {
			text := b.Text()
			if text == "" {
				text = fmt.Sprintf("<%s>", strings.Join(b.Formats(), ", "))
			}
			if idx := strings.IndexByte(text, '\n'); idx >= 0 {
				text = text[:idx] + "…"
			}
			fmt.Printf("%3d  %s\n", i, text)
		}
		return nil
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy [text]",
	Short: "Insert text at the front of the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.Copy(types.NewTextBundle(args[0]))
	},
}

var pasteCmd = &cobra.Command{
	Use:   "paste [row]",
	Short: "Promote a history row to the front and print its text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		row := 0
		if len(args) == 1 {
			var err error
			row, err = strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid row %q: %w", args[0], err)
			}
		}
		bundle, err := client.Paste(row)
		if err != nil {
			return err
		}
		fmt.Print(bundle.Text())
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every item from the history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.ClearHistory()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum rows to list (0 = all)")
}
