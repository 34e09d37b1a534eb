package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/solatis/stagekeeper/internal/ruledoc"
	"github.com/solatis/stagekeeper/internal/rules"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Validate rule documents (JSON or YAML) against the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var canonicalCmd = &cobra.Command{
	Use:   "canonical FILE",
	Short: "Print the canonical document and digest of a valid rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runCanonical,
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Print a new rule draft to start editing from",
	Args:  cobra.NoArgs,
	RunE:  runDraft,
}

func init() {
	rootCmd.AddCommand(validateCmd, canonicalCmd, draftCmd)
	validateCmd.Flags().String("output", "text", "output format (text, json)")
	canonicalCmd.Flags().Bool("digest", false, "print only the digest")
	draftCmd.Flags().String("format", "yaml", "draft format (yaml, json)")
	draftCmd.Flags().Int("stages", 1, "number of stages in the draft")
}

// fileReport is the validate result for one document.
type fileReport struct {
	File     string                 `json:"file"`
	Valid    bool                   `json:"valid"`
	Errors   rules.ValidationErrors `json:"errors"`
	Digest   string                 `json:"digest,omitempty"`
	Priority int                    `json:"priority,omitempty"`
	Cost     int                    `json:"cost,omitempty"`
}

var errInvalidDocuments = errors.New("invalid rule documents")

func runValidate(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "text" && output != "json" {
		return fmt.Errorf("--output must be text or json, got %q", output)
	}

	catalog, err := buildCatalog()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reports := make([]fileReport, 0, len(args))
	invalid := 0
	for _, path := range args {
		report, err := validateFile(ctx, path, catalog)
		if err != nil {
			return err
		}
		if !report.Valid {
			invalid++
		}
		reports = append(reports, report)
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		printReports(out, reports)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d: %w", invalid, len(args), errInvalidDocuments)
	}
	return nil
}

func validateFile(ctx context.Context, path string, catalog *rules.Catalog) (fileReport, error) {
	r, err := ruledoc.LoadFile(path, cfg.RuleAPI.MaxDocumentBytes)
	if err != nil {
		return fileReport{}, fmt.Errorf("%s: %w", path, err)
	}

	errs, err := rules.Validate(ctx, r, catalog)
	if err != nil {
		return fileReport{}, fmt.Errorf("%s: %w", path, err)
	}
	report := fileReport{File: path, Valid: len(errs) == 0, Errors: errs}
	if report.Errors == nil {
		report.Errors = rules.ValidationErrors{}
	}
	if report.Valid {
		data, err := rules.MarshalCanonical(r)
		if err != nil {
			return fileReport{}, fmt.Errorf("%s: %w", path, err)
		}
		est := rules.EstimateCost(r, catalog)
		report.Digest = rules.Digest(data)
		report.Priority = est.Priority
		report.Cost = est.Total
	}

	logger.Debug("validated rule document", "file", path, "valid", report.Valid, "errors", len(errs))
	return report, nil
}

func printReports(w io.Writer, reports []fileReport) {
	for _, r := range reports {
		if r.Valid {
			fmt.Fprintf(w, "%s: ok (priority %d, cost %d, digest %s)\n", r.File, r.Priority, r.Cost, r.Digest)
			continue
		}
		fmt.Fprintf(w, "%s: %d error(s)\n", r.File, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s [%s] %s\n", e.Path, e.Code, e.Message)
		}
	}
}

func runCanonical(cmd *cobra.Command, args []string) error {
	digestOnly, _ := cmd.Flags().GetBool("digest")

	catalog, err := buildCatalog()
	if err != nil {
		return err
	}
	r, err := ruledoc.LoadFile(args[0], cfg.RuleAPI.MaxDocumentBytes)
	if err != nil {
		return err
	}

	doc, err := rules.Canonicalize(cmd.Context(), r, catalog)
	var verrs rules.ValidationErrors
	if errors.As(err, &verrs) {
		printReports(cmd.ErrOrStderr(), []fileReport{{File: args[0], Errors: verrs}})
		return fmt.Errorf("%s: %w", args[0], errInvalidDocuments)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if digestOnly {
		fmt.Fprintln(out, doc.Digest)
		return nil
	}
	fmt.Fprintln(out, string(doc.JSON))
	fmt.Fprintln(cmd.ErrOrStderr(), "digest:", doc.Digest)
	return nil
}

func runDraft(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	stages, _ := cmd.Flags().GetInt("stages")

	format, err := ruledoc.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if stages < 1 {
		return fmt.Errorf("--stages must be at least 1, got %d", stages)
	}

	r := rules.NewRule()
	for len(r.Stages) < stages {
		r, _ = rules.AddStage(r)
	}

	data, err := ruledoc.Encode(r, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
