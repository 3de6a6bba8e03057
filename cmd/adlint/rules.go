package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/reporting"
	"github.com/codewithboateng/adlint/internal/rules"
	"github.com/codewithboateng/adlint/internal/storage"
)

// withProvider opens the provider for one rules subcommand.
func (a *app) withProvider(fn func(p *rules.Provider, db *storage.DB) error) error {
	p, db, err := a.openProvider()
	if err != nil {
		return err
	}
	defer closeDB(db)
	return fn(p, db)
}

func (a *app) audit(db *storage.DB, action string, id int64, meta map[string]any) {
	if db == nil {
		return
	}
	resource := ""
	if id > 0 {
		resource = fmt.Sprintf("rule:%d", id)
	}
	if err := db.LogAudit("cli", action, resource, meta); err != nil {
		a.logger.Warn("audit write failed", "action", action, "err", err)
	}
}

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage detection rules",
	}
	cmd.AddCommand(
		rulesListCmd(a), rulesGetCmd(a), rulesAddCmd(a), rulesUpdateCmd(a),
		rulesDeleteCmd(a), rulesActiveCmd(a, false), rulesActiveCmd(a, true),
		rulesSearchCmd(a), rulesStatsCmd(a), rulesValidateCmd(),
		rulesBackupCmd(a), rulesRestoreCmd(a), rulesResetCmd(a), rulesSeedCmd(a),
	)
	return cmd
}

func parseIDArg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(fmt.Errorf("invalid rule id %q", s))
	}
	return id, nil
}

func printRules(w io.Writer, rs []model.Rule, asJSON bool) error {
	if asJSON {
		return reporting.EncodeJSON(w, rs)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACTIVE\tCATEGORY\tSEVERITY\tGROUP\tPATTERN")
	for _, r := range rs {
		fmt.Fprintf(tw, "%d\t%t\t%s\t%s\t%s\t%s\n", r.ID, r.Active, r.Category, r.Severity, r.Group, r.Pattern)
	}
	return tw.Flush()
}

func rulesListCmd(a *app) *cobra.Command {
	var all, asJSON bool
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(func(p *rules.Provider, _ *storage.DB) error {
				rs, err := p.Rules(all)
				if err != nil {
					return err
				}
				if category != "" {
					c, err := model.ParseCategory(category)
					if err != nil {
						return usageError(err)
					}
					filtered := rs[:0:0]
					for _, r := range rs {
						if r.Category == c {
							filtered = append(filtered, r)
						}
					}
					rs = filtered
				}
				return printRules(cmd.OutOrStdout(), rs, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive rules")
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func rulesGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one rule",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return a.withProvider(func(p *rules.Provider, _ *storage.DB) error {
				r, err := p.Get(id)
				if err != nil {
					return err
				}
				return reporting.EncodeJSON(cmd.OutOrStdout(), r)
			})
		},
	}
}

type ruleFlags struct {
	pattern, category, severity string
	legalBasis, suggestion      string
	description, group          string
	inactive                    bool
}

func (rf *ruleFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&rf.pattern, "pattern", "", "regular expression (matched case-insensitively)")
	f.StringVar(&rf.category, "category", "", "MEDICAL_CLAIM|EXAGGERATED_EFFECT|SAFETY_MISREPRESENTATION|SUPERLATIVE_EXPRESSION|COMPARATIVE_AD_VIOLATION")
	f.StringVar(&rf.severity, "severity", "", "HIGH|MEDIUM|LOW")
	f.StringVar(&rf.legalBasis, "legal-basis", "", "statutory grounding")
	f.StringVar(&rf.suggestion, "suggestion", "", "suggested rewrite")
	f.StringVar(&rf.description, "description", "", "description")
	f.StringVar(&rf.group, "group", "", "group label")
	f.BoolVar(&rf.inactive, "inactive", false, "store the rule disabled")
}

// apply copies the flags the user set onto r.
func (rf *ruleFlags) apply(cmd *cobra.Command, r *model.Rule) error {
	f := cmd.Flags()
	if f.Changed("pattern") {
		r.Pattern = rf.pattern
	}
	if f.Changed("category") {
		c, err := model.ParseCategory(rf.category)
		if err != nil {
			return usageError(err)
		}
		r.Category = c
	}
	if f.Changed("severity") {
		s, err := model.ParseSeverity(rf.severity)
		if err != nil {
			return usageError(err)
		}
		r.Severity = s
	}
	if f.Changed("legal-basis") {
		r.LegalBasis = rf.legalBasis
	}
	if f.Changed("suggestion") {
		r.Suggestion = rf.suggestion
	}
	if f.Changed("description") {
		r.Description = rf.description
	}
	if f.Changed("group") {
		r.Group = rf.group
	}
	if f.Changed("inactive") {
		r.Active = !rf.inactive
	}
	return nil
}

func rulesAddCmd(a *app) *cobra.Command {
	var rf ruleFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a custom rule",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range []string{"pattern", "category", "severity"} {
				if !cmd.Flags().Changed(name) {
					return usageError(fmt.Errorf("--%s is required", name))
				}
			}
			r := model.Rule{Active: true}
			if err := rf.apply(cmd, &r); err != nil {
				return err
			}
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				id, err := p.AddRule(r)
				if err != nil {
					return err
				}
				a.audit(db, "rules:create", id, map[string]any{"category": r.Category})
				fmt.Fprintf(cmd.OutOrStdout(), "added rule %d\n", id)
				return nil
			})
		},
	}
	rf.register(cmd)
	return cmd
}

func rulesUpdateCmd(a *app) *cobra.Command {
	var rf ruleFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a rule",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				r, err := p.Get(id)
				if err != nil {
					return err
				}
				if err := rf.apply(cmd, &r); err != nil {
					return err
				}
				out, err := p.UpdateRule(r)
				if err != nil {
					return err
				}
				a.audit(db, "rules:update", id, nil)
				return reporting.EncodeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	rf.register(cmd)
	return cmd
}

func rulesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule permanently",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				if err := p.DeleteRule(id); err != nil {
					return err
				}
				a.audit(db, "rules:delete", id, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "deleted rule %d\n", id)
				return nil
			})
		},
	}
}

func rulesActiveCmd(a *app, active bool) *cobra.Command {
	use, short := "deactivate <id>", "Disable a rule without deleting it"
	if active {
		use, short = "activate <id>", "Re-enable a disabled rule"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				if active {
					_, err = p.SetActive(id, true)
				} else {
					err = p.DeactivateRule(id)
				}
				if err != nil {
					return err
				}
				a.audit(db, "rules:set-active", id, map[string]any{"active": active})
				fmt.Fprintf(cmd.OutOrStdout(), "rule %d active=%t\n", id, active)
				return nil
			})
		},
	}
}

func rulesSearchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search pattern, description and group",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(func(p *rules.Provider, _ *storage.DB) error {
				rs, err := p.Search(args[0])
				if err != nil {
					return err
				}
				return printRules(cmd.OutOrStdout(), rs, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func rulesStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show rule counts",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(func(p *rules.Provider, _ *storage.DB) error {
				st, err := p.Statistics()
				if err != nil {
					return err
				}
				return reporting.EncodeJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pattern>",
		Short: "Check a pattern's syntax",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := rules.ValidatePattern(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), v.Message)
			if !v.Valid {
				return &exitCodeError{code: exitError, err: errors.New("invalid pattern")}
			}
			return nil
		},
	}
}

func rulesBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file.json|file.yaml>",
		Short: "Write every rule to a backup file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				if err := p.Backup(args[0]); err != nil {
					return err
				}
				a.audit(db, "rules:backup", 0, map[string]any{"path": args[0]})
				fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", args[0])
				return nil
			})
		},
	}
}

func rulesRestoreCmd(a *app) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "restore <file.json|file.yaml>",
		Short: "Load rules from a backup file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				n, err := p.Restore(args[0], clear)
				if err != nil {
					return err
				}
				a.audit(db, "rules:restore", 0, map[string]any{"path": args[0], "clear": clear, "restored": n})
				fmt.Fprintf(cmd.OutOrStdout(), "restored %d rules\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "delete existing rules first")
	return cmd
}

func rulesResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every rule and reseed the default catalog",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return usageError(errors.New("reset deletes every rule; pass --yes to confirm"))
			}
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				n, err := p.ResetToDefaults()
				if err != nil {
					return err
				}
				a.audit(db, "rules:reset", 0, map[string]any{"seeded": n})
				fmt.Fprintf(cmd.OutOrStdout(), "reset to %d default rules\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func rulesSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add the default catalog to the rule store",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(func(p *rules.Provider, db *storage.DB) error {
				before, err := p.Statistics()
				if err != nil {
					return err
				}
				n, err := p.Seed()
				if err != nil {
					return err
				}
				after, err := p.Statistics()
				if err != nil {
					return err
				}
				a.audit(db, "rules:seed", 0, map[string]any{"added": n})
				fmt.Fprintf(cmd.OutOrStdout(), "added %d rules (%d -> %d)\n", n, before.Total, after.Total)
				return nil
			})
		},
	}
}
