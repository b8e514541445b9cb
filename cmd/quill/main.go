// Command quill renders, validates, and inspects document templates
// from the command line.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quillforge/quill/pkg/quill"
)

var (
	dataFile   string
	outFile    string
	strict     bool
	bestEffort bool
	noPrompts  bool
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "quill",
		Short:         "Document template engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	render := &cobra.Command{
		Use:   "render <template-file>",
		Short: "Render a template",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
	render.Flags().StringVarP(&dataFile, "data", "d", "", "YAML or JSON file with template data")
	render.Flags().StringVarP(&outFile, "out", "o", "", "write output to file instead of stdout")
	render.Flags().BoolVar(&strict, "strict", false, "fail on unresolved variables")
	render.Flags().BoolVar(&bestEffort, "best-effort", false, "report evaluation errors but keep rendering")
	render.Flags().BoolVar(&noPrompts, "no-prompts", false, "use prompt defaults instead of asking")

	validate := &cobra.Command{
		Use:   "validate <template-file>",
		Short: "Check a template for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	stats := &cobra.Command{
		Use:   "stats <template-file>",
		Short: "Show template statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}

	root.AddCommand(render, validate, stats)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupEngine() (*quill.Engine, error) {
	engine, err := quill.NewFromEnv()
	if err != nil {
		return nil, err
	}
	if verbose {
		log, err := quill.NewLogger("debug")
		if err != nil {
			return nil, err
		}
		quill.SetLogger(log)
	}
	return engine, nil
}

func loadTemplate(path string) (*quill.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return quill.ParseTemplate(string(raw))
}

func loadData(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data := make(map[string]interface{})
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return data, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	engine, err := setupEngine()
	if err != nil {
		return err
	}
	tpl, err := loadTemplate(args[0])
	if err != nil {
		return err
	}
	data, err := loadData(dataFile)
	if err != nil {
		return err
	}

	opts := quill.Options{Strict: strict, BestEffort: bestEffort}
	if !noPrompts {
		opts.Collector = quill.PromptCollectorFunc(terminalCollect)
	}

	result, err := engine.Process(context.Background(), tpl.Content, data, opts)
	if err != nil {
		return err
	}
	for _, diag := range result.Diagnostics {
		fmt.Fprintf(os.Stderr, "warning: offset %d: %v\n", diag.Pos, diag.Err)
	}

	if outFile != "" {
		return os.WriteFile(outFile, []byte(result.Output), 0o644)
	}
	fmt.Print(result.Output)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	engine, err := setupEngine()
	if err != nil {
		return err
	}
	tpl, err := loadTemplate(args[0])
	if err != nil {
		return err
	}

	result := engine.Validate(tpl.Content)
	for _, issue := range result.Errors {
		fmt.Printf("error: %s\n", issue)
	}
	for _, issue := range result.Warnings {
		fmt.Printf("warning: %s\n", issue)
	}
	if !result.Valid {
		return fmt.Errorf("%d error(s) found", len(result.Errors))
	}
	fmt.Println("template is valid")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := setupEngine()
	if err != nil {
		return err
	}
	tpl, err := loadTemplate(args[0])
	if err != nil {
		return err
	}

	stats := engine.Statistics(tpl.Content)
	if tpl.Name != "" {
		fmt.Printf("name:         %s\n", tpl.Name)
	}
	fmt.Printf("variables:    %d\n", stats.Variables)
	fmt.Printf("conditionals: %d\n", stats.Conditionals)
	fmt.Printf("loops:        %d\n", stats.Loops)
	fmt.Printf("scripts:      %d\n", stats.Scripts)
	fmt.Printf("prompts:      %d (%d unique)\n", stats.Prompts.Total, stats.Prompts.UniqueVars)
	fmt.Printf("max depth:    %d\n", stats.MaxDepth)
	if len(stats.FilterUses) > 0 {
		names := make([]string, 0, len(stats.FilterUses))
		for name := range stats.FilterUses {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("filters:      %s\n", strings.Join(names, ", "))
	}
	return nil
}

// terminalCollect asks for prompt values on the controlling terminal.
// An empty answer accepts the default shown in brackets.
func terminalCollect(ctx context.Context, defs []quill.PromptDefinition) (map[string]string, error) {
	reader := bufio.NewReader(os.Stdin)
	values := make(map[string]string, len(defs))

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch def.Type {
		case quill.PromptSuggest:
			fmt.Fprintf(os.Stderr, "%s (%s) [%s]: ", def.Question, strings.Join(def.Options, ", "), def.DefaultValue)
		case quill.PromptCheckbox:
			fmt.Fprintf(os.Stderr, "%s (y/n) [%s]: ", def.Question, def.DefaultValue)
		default:
			if def.DefaultValue != "" {
				fmt.Fprintf(os.Stderr, "%s [%s]: ", def.Question, def.DefaultValue)
			} else {
				fmt.Fprintf(os.Stderr, "%s: ", def.Question)
			}
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, quill.ErrPromptsCancelled
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			answer = def.DefaultValue
		}
		if def.Type == quill.PromptCheckbox {
			switch strings.ToLower(answer) {
			case "y", "yes", "true", "1":
				answer = "true"
			default:
				answer = "false"
			}
		}
		values[def.VarName] = answer
	}
	return values, nil
}
