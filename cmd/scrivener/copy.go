package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/scrivener/internal/message"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy stdin into scrivener history (like pbcopy)",
		Long: `Reads stdin and sends it to a running scrivener daemon. The item runs
through the loader chain, lands at the top of the target tab, and is placed
on the system clipboard.

If a local daemon is running, its IPC socket is used directly. Otherwise
connects to the server specified in config or via --server.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runCopy(cmd, v) },
	}

	f := cmd.Flags()
	f.String("server", "localhost:8761", "scrivener server address (used if no local daemon)")
	f.String("token", "", "shared secret")
	f.String("mime", "text/plain", "MIME type of the data being copied")
	f.String("tab", "", "target tab (empty = the daemon's default tab)")
	f.String("source", defaultSource(), "source identifier")
	addConfigFlag(cmd)

	return cmd
}

func runCopy(cmd *cobra.Command, v *viper.Viper) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	mime := v.GetString("mime")

	var it message.Item
	if mime == "text/plain" {
		it = message.NewTextItem(string(data))
	} else {
		it = message.NewBinaryItem(mime, data)
	}

	wc, _, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer wc.Close()

	_, err = request(wc, &message.Message{
		Type:   message.TypeCopy,
		Source: v.GetString("source"),
		Tab:    v.GetString("tab"),
		Items:  []message.Item{it},
	})
	return err
}
