// jobsync keeps a local, consistent cache of job listings in sync with the
// remote store and serves it over REST, gRPC and a websocket notification
// stream.
//
//	jobsync serve             run the sync server
//	jobsync session ...       show, set or clear the logged-in user
//	jobsync reload            ask running servers to reload from the store
//	jobsync jobs              list the jobs a running server holds
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "jobsync",
	Short:         "Client-side sync and cache layer for job listings",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
