package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/adlint/internal/check"
	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/reporting"
	"github.com/codewithboateng/adlint/internal/source"
)

type checkOpts struct {
	text   string
	format string
	outDir string
	html   bool
	failOn string
}

func newCheckCmd(a *app) *cobra.Command {
	var o checkOpts
	cmd := &cobra.Command{
		Use:   "check [file|dir|-]",
		Short: "Check ad copy for violations",
		Long: `Check one text, a file, every .txt/.md file under a directory, or stdin ("-").
Exits 3 when any document reaches the --fail-on risk level.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := collect(cmd, o.text, args)
			if err != nil {
				return err
			}
			return a.runCheck(cmd.OutOrStdout(), docs, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.text, "text", "", "text to check instead of a file")
	f.StringVar(&o.format, "format", "text", "output format: text|json")
	f.StringVar(&o.outDir, "out", "", "also write JSON reports to this directory")
	f.BoolVar(&o.html, "html", false, "with --out, also write HTML reports")
	f.StringVar(&o.failOn, "fail-on", "", "exit 3 at or above this risk level: LOW|MEDIUM|HIGH")
	return cmd
}

func collect(cmd *cobra.Command, text string, args []string) ([]source.Document, error) {
	switch {
	case text != "" && len(args) > 0:
		return nil, usageError(errors.New("use either --text or a path, not both"))
	case text != "":
		return []source.Document{{Name: "text", Text: text}}, nil
	case len(args) == 0:
		return nil, usageError(errors.New("nothing to check: pass --text, a path or -"))
	case args[0] == "-":
		doc, err := source.Read("stdin", cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return []source.Document{doc}, nil
	}
	docs, diags := source.Collect(args[0])
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents read: %s", strings.Join(diags.Warnings, "; "))
	}
	for _, w := range diags.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	return docs, nil
}

func (a *app) runCheck(w io.Writer, docs []source.Document, o checkOpts) error {
	var threshold model.RiskLevel
	if o.failOn != "" {
		sev, err := model.ParseSeverity(o.failOn)
		if err != nil {
			return usageError(fmt.Errorf("--fail-on: %w", err))
		}
		threshold = model.RiskLevel(sev)
	}
	if o.format != "text" && o.format != "json" {
		return usageError(fmt.Errorf("--format: unknown format %q", o.format))
	}

	p, db, err := a.openProvider()
	if err != nil {
		return err
	}
	defer closeDB(db)
	svc := check.New(p, a.logger)

	stamp := time.Now().UTC().Format("20060102T150405")
	exceeded := 0
	out := make([]reporting.Document, 0, len(docs))
	for i, d := range docs {
		res, err := svc.Check(d.Text)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		doc := reporting.Document{
			ID:             fmt.Sprintf("%s-%s", stamp, d.Name),
			Source:         d.Path,
			Text:           d.Text,
			RulesetVersion: res.RulesetVersion,
			Report:         res.Report,
		}
		if len(docs) > 1 {
			doc.ID = fmt.Sprintf("%s-%03d-%s", stamp, i+1, d.Name)
		}
		out = append(out, doc)
		if threshold != "" && riskRank(res.Report.RiskLevel) >= riskRank(threshold) && res.Report.TotalViolations > 0 {
			exceeded++
		}
		if o.outDir != "" {
			jp, err := reporting.WriteJSON(o.outDir, doc)
			if err != nil {
				return err
			}
			a.logger.Info("report written", "json", jp)
			if o.html {
				hp, err := reporting.WriteHTML(o.outDir, doc)
				if err != nil {
					return err
				}
				a.logger.Info("report written", "html", hp)
			}
		}
	}

	if o.format == "json" {
		if len(out) == 1 {
			err = reporting.EncodeJSON(w, out[0])
		} else {
			err = reporting.EncodeJSON(w, out)
		}
		if err != nil {
			return err
		}
	} else {
		for _, d := range out {
			printReport(w, d)
		}
	}

	if exceeded > 0 {
		return &exitCodeError{code: exitThreshold, err: fmt.Errorf("%d document(s) at or above risk %s", exceeded, threshold)}
	}
	return nil
}

func riskRank(r model.RiskLevel) int { return model.Severity(r).Rank() }

func printReport(w io.Writer, d reporting.Document) {
	rep := d.Report
	name := d.Source
	if name == "" {
		name = d.ID
	}
	fmt.Fprintf(w, "== %s\n", name)
	fmt.Fprintf(w, "%s (status=%s risk=%s high=%d medium=%d low=%d)\n",
		rep.Summary, rep.Status, rep.RiskLevel,
		rep.SeveritySummary.High, rep.SeveritySummary.Medium, rep.SeveritySummary.Low)
	for i, v := range rep.Violations {
		fmt.Fprintf(w, "  %d. [%s] %s %q @%d\n", i+1, v.Severity, v.CategoryLabel, v.Text, v.Position)
		if v.Context != "" {
			fmt.Fprintf(w, "     …%s…\n", v.Context)
		}
		fmt.Fprintf(w, "     근거: %s\n     제안: %s\n", v.LegalBasis, v.Suggestion)
	}
}

func newDiffCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "diff <base-file> <head-file>",
		Short: "Compare violations between two revisions of an ad copy",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, db, err := a.openProvider()
			if err != nil {
				return err
			}
			defer closeDB(db)
			svc := check.New(p, a.logger)

			var docs [2]reporting.Document
			for i, path := range args {
				b, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				text := source.Normalize(string(b))
				res, err := svc.Check(text)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				docs[i] = reporting.Document{
					ID: baseName(path), Source: path, Text: text,
					RulesetVersion: res.RulesetVersion, Report: res.Report,
				}
			}
			d := reporting.Compare(docs[0], docs[1])
			if outDir != "" {
				path, err := reporting.WriteDiffJSON(outDir, d)
				if err != nil {
					return err
				}
				a.logger.Info("diff written", "path", path)
			}
			return reporting.EncodeJSON(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "also write the diff JSON to this directory")
	return cmd
}

func baseName(p string) string {
	return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
}
