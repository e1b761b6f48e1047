package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"construct-calc/internal/calculator"
	"construct-calc/internal/formula"
	"construct-calc/internal/observability"
	"construct-calc/internal/store"
)

func evalCmd() *cobra.Command {
	var vars []string

	cmd := &cobra.Command{
		Use:   "eval EXPRESSION",
		Short: "Evaluate one expression",
		Example: `  construct-calc eval "length * width / 9" --var length=30 --var width=12
  construct-calc eval "round(PI * r^2)" --var r=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(vars)
			if err != nil {
				return err
			}
			result, err := formula.Evaluate(args[0], values)
			if err != nil {
				return fmt.Errorf("%s: %w", formula.Kind(err), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatNumber(result))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "Variable assignment name=value (repeatable)")
	return cmd
}

func runCmd() *cobra.Command {
	var (
		sets     []string
		name     string
		lineItem string
	)

	cmd := &cobra.Command{
		Use:   "run TEMPLATE_FILE",
		Short: "Evaluate a template from a YAML file",
		Long: `Loads a template file, applies --set assignments on top of the
declared defaults and prints every formula result. Failing formulas are
reported individually; the others still compute.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			ins, err := calculator.LoadTemplateFile(args[0])
			if err != nil {
				return err
			}
			in, err := pickTemplate(ins, name)
			if err != nil {
				return err
			}

			// The template only lives for this invocation.
			mem := store.NewMemoryStore()
			svc := calculator.NewService(mem, mem, zap.NewNop())
			tpl, err := svc.CreateTemplate(cmd.Context(), in)
			if err != nil {
				return err
			}

			session := calculator.NewSession(tpl, lineItem)
			if len(values) > 0 {
				if err := session.SetValues(values); err != nil {
					return err
				}
			}

			printEvaluation(cmd.OutOrStdout(), tpl.Name, session.Values(), session.Evaluation())
			if session.Evaluation().Failed() > 0 {
				return fmt.Errorf("%d of %d formulas failed", session.Evaluation().Failed(), len(tpl.Formulas))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Variable assignment name=value (repeatable)")
	cmd.Flags().StringVar(&name, "template", "", "Template name when the file holds several")
	cmd.Flags().StringVar(&lineItem, "line-item", "cli", "Line item id the session is bound to")
	return cmd
}

func seedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed TEMPLATE_FILE",
		Short: "Create the templates of a YAML file in the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(cmd.Context(), cmd.OutOrStdout(), g, args[0])
		},
	}
}

func seed(ctx context.Context, out io.Writer, g *globalFlags, path string) error {
	ins, err := calculator.LoadTemplateFile(path)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if err := observability.InitLogger(cfg.Log.Level); err != nil {
		return err
	}
	defer observability.SyncLogger()

	st, err := store.Open(ctx, cfg.Store, observability.Named("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(ctx)

	svc := calculator.NewService(st, st, observability.Named("calculator"))
	for _, in := range ins {
		tpl, err := svc.CreateTemplate(ctx, in)
		if err != nil {
			return fmt.Errorf("seed %q: %w", in.Name, err)
		}
		fmt.Fprintf(out, "%s\t%s\n", tpl.ID, tpl.Name)
	}
	return nil
}

// parseAssignments turns name=value pairs into a value map.
func parseAssignments(pairs []string) (map[string]float64, error) {
	values := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("assignment %q must look like name=value", pair)
		}
		if !formula.IsIdentifier(name) {
			return nil, fmt.Errorf("assignment %q: %q is not a valid name", pair, name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("assignment %q: value is not a number", pair)
		}
		values[name] = v
	}
	return values, nil
}

func pickTemplate(ins []calculator.TemplateInput, name string) (calculator.TemplateInput, error) {
	if name == "" {
		if len(ins) > 1 {
			return calculator.TemplateInput{}, fmt.Errorf("file holds %d templates; choose one with --template", len(ins))
		}
		return ins[0], nil
	}
	for _, in := range ins {
		if in.Name == name {
			return in, nil
		}
	}
	return calculator.TemplateInput{}, fmt.Errorf("no template named %q", name)
}

func printEvaluation(w io.Writer, title string, values map[string]float64, ev calculator.Evaluation) {
	fmt.Fprintln(w, title)

	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %s = %s\n", n, formatNumber(values[n]))
	}

	fmt.Fprintln(w, "results:")
	for _, r := range ev.Results {
		if r.OK() {
			fmt.Fprintf(w, "  %s = %s\n", r.Name, formatNumber(r.Value))
		} else {
			fmt.Fprintf(w, "  %s: %s (%s)\n", r.Name, r.Err, formula.Kind(r.Err))
		}
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
