package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/scrivener/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, tabs and loaders",
		Long: `Displays the state of a running scrivener daemon: uptime, clipboard
backend, every tab with its item count, and the registered item loaders.

If a local daemon is running, the request is sent via the IPC socket. Pass
--server to target a specific server directly over TCP.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	f := cmd.Flags()
	f.String("server", "localhost:8761", "scrivener server address (used when no daemon is running)")
	f.String("token", "", "shared secret")
	f.String("source", defaultSource(), "source identifier")
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	jsonOut := v.GetBool("json")

	wc, transport, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer wc.Close()

	reply, err := request(wc, &message.Message{
		Type:   message.TypeStatus,
		Source: v.GetString("source"),
	})
	if err != nil {
		return err
	}
	if reply.Status == nil {
		return fmt.Errorf("malformed status response")
	}

	if jsonOut {
		enc, _ := json.MarshalIndent(reply.Status, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(reply.Status, transport)
	return nil
}

func printStatus(st *message.Status, transport string) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Server:\tscrivener %s (pid %d)\n", st.Version, st.PID)
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Uptime:\t%s\n", st.Uptime)
	fmt.Fprintf(w, "Clipboard:\t%s\n", st.Backend)
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(st.Tabs) == 0 {
		fmt.Println("No tabs.")
	} else {
		tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(tw, "TAB\tITEMS\n")
		_, _ = fmt.Fprintf(tw, "---\t-----\n")
		for _, tab := range st.Tabs {
			_, _ = fmt.Fprintf(tw, "%s\t%d\n", tab.Name, tab.Items)
		}
		_ = tw.Flush()
	}

	if len(st.Loaders) == 0 {
		return
	}
	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "LOADER\tNAME\tPRIORITY\tFORMATS\n")
	_, _ = fmt.Fprintf(tw, "------\t----\t--------\t-------\n")
	for _, l := range st.Loaders {
		formats := "*"
		if len(l.Formats) > 0 {
			formats = strings.Join(l.Formats, ",")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", l.ID, l.Name, l.Priority, formats)
	}
	_ = tw.Flush()
}
