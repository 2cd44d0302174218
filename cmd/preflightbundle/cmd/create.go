package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/preflightbundle/preflightbundle/internal/lifecycle"
	"github.com/preflightbundle/preflightbundle/internal/output"
)

func newCreateCmd() *cobra.Command {
	var (
		repos       []string
		localPaths  []string
		docPaths    []string
		libraries   []string
		topics      []string
		tags        []string
		displayName string
		ifExists    string
		root        string
		offline     bool
		allowVLM    bool
		allowOCR    bool
		allowCloud  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new evidence bundle from one or more sources",
		Long: `Fetches GitHub repos, copies local paths, and upserts loose documents
into a new bundle: raw bytes, normalized text, a full-text index, a
best-effort semantic index, static-analysis facts, and a dependency
graph, published atomically once every stage succeeds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd.Context(), cmd, createArgs{
				repos, localPaths, docPaths, libraries, topics, tags,
				displayName, ifExists, root, offline, allowVLM, allowOCR, allowCloud,
			})
		},
	}

	cmd.Flags().StringSliceVar(&repos, "repo", nil, "GitHub repo (owner/repo or URL), repeatable")
	cmd.Flags().StringSliceVar(&localPaths, "local", nil, "Local directory to copy in, repeatable")
	cmd.Flags().StringSliceVar(&docPaths, "doc", nil, "Loose document file to upsert, repeatable")
	cmd.Flags().StringSliceVar(&libraries, "library", nil, "Descriptive library name (fingerprint-only input)")
	cmd.Flags().StringSliceVar(&topics, "topic", nil, "Descriptive topic name (fingerprint-only input)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag attached to the bundle for search filtering")
	cmd.Flags().StringVar(&displayName, "name", "", "Human-readable bundle name")
	cmd.Flags().StringVar(&ifExists, "if-exists", "error", "Behavior on duplicate fingerprint: error|returnExisting|updateExisting|createNew")
	cmd.Flags().StringVar(&root, "root", "", "Storage root override (default: ~/.preflightbundle/bundles)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip embedder construction; bundle is BM25-only")
	cmd.Flags().BoolVar(&allowVLM, "allow-vlm", false, "Allow vision-language-model fallback for scanned PDFs")
	cmd.Flags().BoolVar(&allowOCR, "allow-ocr", false, "Allow OCR fallback for scanned PDFs")
	cmd.Flags().BoolVar(&allowCloud, "allow-cloud", false, "Allow cloud-hosted document conversion fallback")

	return cmd
}

type createArgs struct {
	repos, localPaths, docPaths, libraries, topics, tags []string
	displayName, ifExists, root                          string
	offline, allowVLM, allowOCR, allowCloud              bool
}

func runCreate(ctx context.Context, cmd *cobra.Command, a createArgs) error {
	w := output.New(cmd.OutOrStdout())

	if len(a.repos)+len(a.localPaths)+len(a.docPaths) == 0 {
		return fmt.Errorf("at least one of --repo, --local, or --doc is required")
	}

	precheckRoot := bundleRoots(a.root)[0]
	if err := os.MkdirAll(precheckRoot, 0o755); err != nil {
		return fmt.Errorf("failed to prepare bundle root %s: %w", precheckRoot, err)
	}
	if err := runPrecheck(ctx, precheckRoot, a.offline); err != nil {
		return err
	}

	mgr, err := newManager(ctx, a.root, a.offline)
	if err != nil {
		return err
	}

	w.Status("⧗", "creating bundle...")
	result, err := mgr.Create(ctx, lifecycle.CreateOptions{
		Repos:       a.repos,
		LocalPaths:  a.localPaths,
		DocPaths:    a.docPaths,
		Libraries:   a.libraries,
		Topics:      a.topics,
		Tags:        a.tags,
		DisplayName: a.displayName,
		IfExists:    lifecycle.IfExists(a.ifExists),
		AllowVLM:    a.allowVLM,
		AllowOCR:    a.allowOCR,
		AllowCloud:  a.allowCloud,
	})
	if err != nil {
		w.Error(err.Error())
		return err
	}

	if result.Created {
		w.Success(fmt.Sprintf("bundle %s created (fingerprint %s)", result.BundleID, result.Fingerprint))
	} else {
		w.Status("=", fmt.Sprintf("bundle %s already exists (fingerprint %s)", result.BundleID, result.Fingerprint))
	}
	return nil
}
