package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/markalston/propdesk/internal/client"
)

// cliNotifier prints pipeline notices the way the console shows toasts
func cliNotifier(w io.Writer) client.Notifier {
	return client.NotifierFunc(func(n client.Notice) {
		fmt.Fprintf(w, "Error: %s\n", n.Text)
	})
}

// report prints err unless the pipeline already announced it, and returns
// the exit code for it
func report(w io.Writer, err error) int {
	if _, ok := client.ClassOf(err); ok {
		return exitAPI
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return exitUsage
}

func printJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
