package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"genstudio/internal/pricing"
)

func priceCmd() *cobra.Command {
	var ruleFile, formFile string

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Compute the token cost of a form against a pricing rule",
		Long: `Reads a pricing rule and a set of form values from YAML (or JSON) files
and prints the number of tokens the dispatcher would charge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := loadRule(ruleFile)
			if err != nil {
				return err
			}
			form, err := loadForm(formFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pricing.Compute(form, rule))
			return nil
		},
	}

	cmd.Flags().StringVar(&ruleFile, "rule", "", "path to the pricing rule file")
	cmd.Flags().StringVar(&formFile, "form", "", "path to the form values file")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func loadRule(path string) (pricing.Rule, error) {
	var raw map[string]any
	if err := readYAML(path, &raw); err != nil {
		return pricing.Rule{}, err
	}
	raw = stringKeys(raw).(map[string]any)
	rule := pricing.Rule{Tokens: raw["tokens"]}
	rule.Type, _ = raw["type"].(string)
	rule.Field, _ = raw["field"].(string)
	if rule.Type == "" {
		return pricing.Rule{}, fmt.Errorf("rule %s: type is required", path)
	}
	return rule, nil
}

func loadForm(path string) (map[string]any, error) {
	var raw map[string]any
	if err := readYAML(path, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	return stringKeys(raw).(map[string]any), nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// stringKeys rewrites nested YAML mappings so every key is a string. Lookup
// tables keyed by numbers ("720: 40") decode as map[any]any otherwise.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}
