package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/scrivener/internal/message"
)

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Print a history item to stdout (like pbpaste)",
		Long: `Retrieves one item from scrivener history and writes it to stdout.
Row 0 is the most recently copied item.

If the item has no representation matching --mime, nothing is printed
(exit 0). To retrieve an image:

  scrivener paste --mime image/png > screenshot.png

To reach further back in history:

  scrivener paste --row 3`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPaste(cmd, v) },
	}

	f := cmd.Flags()
	f.String("server", "localhost:8761", "scrivener server address (used when no daemon is running)")
	f.String("token", "", "shared secret")
	f.String("mime", "text/plain", "preferred MIME type to output")
	f.String("tab", "", "tab to paste from (empty = the daemon's default tab)")
	f.Int("row", 0, "history row, 0 = most recent")
	f.String("source", defaultSource(), "source identifier")
	addConfigFlag(cmd)

	return cmd
}

func runPaste(cmd *cobra.Command, v *viper.Viper) error {
	mime := v.GetString("mime")

	wc, _, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer wc.Close()

	reply, err := request(wc, &message.Message{
		Type:   message.TypePaste,
		Source: v.GetString("source"),
		Tab:    v.GetString("tab"),
		Row:    v.GetInt("row"),
		Accept: []string{mime},
	})
	if err != nil {
		return err
	}

	for _, it := range reply.Items {
		if it.MIME == mime {
			b, err := it.Decode()
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.MIME, err)
			}
			_, err = os.Stdout.Write(b)
			return err
		}
	}

	// Requested type not present: print nothing, exit 0 (pbpaste behaviour).
	return nil
}
