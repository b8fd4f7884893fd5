package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/corpusd/internal/ingest"
)

var (
	ingestMetadata map[string]string
	queryMaxResult int
	queryFilters   map[string]string
	checkRepair    bool
)

func init() {
	ingestCmd.Flags().StringToStringVar(&ingestMetadata, "metadata", nil, "metadata applied to every document (key=value)")
	queryCmd.Flags().IntVarP(&queryMaxResult, "max-results", "k", 0, "maximum number of sources")
	queryCmd.Flags().StringToStringVar(&queryFilters, "filter", nil, "structured filters (key=value)")
	checkCmd.Flags().BoolVar(&checkRepair, "repair", false, "delete orphaned index or metadata entries")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file...>",
	Short: "Ingest plain-text files into the index",
	Long: `Ingest one or more plain-text files (.txt, .md). Each file's path becomes
its stable source path; re-ingesting a path replaces its chunks.

Examples:
  corpusd ingest docs/runbook.md
  corpusd ingest --metadata category=runbook docs/*.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var docs []ingest.Document
	for _, path := range args {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (unsupported extension)\n", "skipped", path)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%v)\n", "failed", path, err)
			continue
		}
		docs = append(docs, ingest.Document{
			SourcePath: path,
			Text:       string(content),
			Metadata:   ingestMetadata,
		})
	}

	results := a.pipeline.IngestAll(cmd.Context(), docs)
	failed := 0
	for _, res := range results {
		switch res.Status {
		case ingest.StatusFailed:
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%s)\n", res.Status, res.SourcePath, res.Error)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%d chunks, %d vectors)\n",
				res.Status, res.SourcePath, res.ChunkCount, res.VectorCount)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Ask a question against the index",
	Long: `Ask a natural-language question. The engine classifies intent, retrieves
matching chunks, and synthesizes an answer when a completion provider is
configured.

Examples:
  corpusd query "why does replication lag grow"
  corpusd query -k 10 --filter category=runbook "failover steps"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.engine.Query(cmd.Context(), args[0], queryMaxResult, queryFilters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", resp.Answer)
	fmt.Fprintf(out, "intent=%s confidence=%.2f answer_generated=%t\n", resp.QueryType, resp.Confidence, resp.AnswerGenerated)
	for i, src := range resp.Sources {
		fmt.Fprintf(out, "[%d] %s (similarity %.3f)\n", i+1, src.SourcePath, src.Similarity)
	}
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <source-path>",
	Short: "Delete a document's chunks from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.pipeline.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d vectors for %s\n", removed, args[0])
	return nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "backend=%s total_vectors=%d dimension=%d\n",
		stats.Backend, stats.TotalVectors, stats.Dimension)
	return nil
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check vector/metadata consistency",
	Long: `Scan for orphaned vectors (indexed without metadata) and orphaned
metadata (metadata without an indexed vector). With --repair, the orphaned
half is removed.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.store.CheckConsistency(cmd.Context(), checkRepair)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "total=%d orphaned_vectors=%d orphaned_metadata=%d repaired=%d\n",
		report.Total, len(report.OrphanedVectors), len(report.OrphanedMetadata), report.Repaired)
	if !report.Consistent() && !checkRepair {
		return fmt.Errorf("store is inconsistent; run with --repair to clean up")
	}
	return nil
}
