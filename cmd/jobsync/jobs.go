package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"jobmate/jobsync/internal/grpcserver"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the jobs a running server holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		jobs, err := grpcserver.NewClient(conn).ListJobs(ctx)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tLIKES\tCOMMENTS\tPOSTED")
		for _, j := range jobs {
			posted := time.UnixMilli(j.Timestamp).Format(time.DateTime)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", j.ID, j.Title, j.Status, len(j.Likes), len(j.Comments), posted)
		}
		return tw.Flush()
	},
}

func init() {
	jobsCmd.Flags().String("addr", "localhost:9093", "gRPC address of the server")
	jobsCmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
	rootCmd.AddCommand(jobsCmd)
}
