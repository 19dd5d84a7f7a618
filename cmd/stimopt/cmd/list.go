package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stimtools/stimopt/pkg/protocol"
	"github.com/stimtools/stimopt/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available protocols",
	Long:  `List all available optimization protocols with their descriptions`,
	RunE:  listProtocols,
}

func listProtocols(cmd *cobra.Command, args []string) error {
	protoInfos, err := utils.DiscoverProtocols()
	if err != nil || len(protoInfos) == 0 {
		// Manifests live next to the protocol sources; an installed binary
		// only knows the compiled-in names
		names := protocol.DefaultRegistry.List()
		if len(names) == 0 {
			fmt.Println("No protocols found")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVERSION\tCATEGORY\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t-------\t--------\t-----------")

	for _, info := range protoInfos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			info.Config.Name,
			info.Config.Version,
			info.Config.Category,
			info.Config.Description,
		)
	}

	return w.Flush()
}
