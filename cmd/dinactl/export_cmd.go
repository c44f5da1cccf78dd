package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dinamifin/internal/export"
)

var (
	flagBucket string
	flagPrefix string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a JSON snapshot of every series to S3",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagBucket, "bucket", "", "S3 bucket (default [export] bucket)")
	exportCmd.Flags().StringVar(&flagPrefix, "prefix", "", "Key prefix (default [export] prefix)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	bucket, prefix := fileCfg.Export.Bucket, fileCfg.Export.Prefix
	if cmd.Flags().Changed("bucket") {
		bucket = flagBucket
	}
	if cmd.Flags().Changed("prefix") {
		prefix = flagPrefix
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.history.Snapshot(cmd.Context(), flagUser, flagPeriod)
	if err != nil {
		return err
	}

	exp, err := export.NewS3Exporter(cmd.Context(), fileCfg.Export.Region, fileCfg.Export.Profile, bucket, prefix, s.logger)
	if err != nil {
		return err
	}
	uri, err := exp.Upload(cmd.Context(), export.NewSnapshot(flagUser, flagPeriod, results, time.Now()))
	if err != nil {
		return err
	}
	fmt.Printf("  Exported %d series to %s\n", len(results), uri)
	return nil
}
