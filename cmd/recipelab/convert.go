package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"recipelab/internal/units"
)

var convertCmd = &cobra.Command{
	Use:   "convert [text...]",
	Short: "Convert measurements in recipe text",
	Long: `Convert rewrites quantities and temperatures between metric and imperial
units. Text is taken from the arguments, or read from stdin when none are given.
With --ingredients every input line is converted as a separate ingredient.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		ingredients, _ := cmd.Flags().GetBool("ingredients")
		return runConvert(cmd.OutOrStdout(), cmd.InOrStdin(), to, ingredients, args)
	},
}

func init() {
	convertCmd.Flags().String("to", string(units.Metric), "target system: metric, imperial, or original")
	convertCmd.Flags().Bool("ingredients", false, "treat each input line as an ingredient")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(w io.Writer, r io.Reader, to string, ingredients bool, args []string) error {
	target, err := units.ParseSystem(to)
	if err != nil {
		return err
	}

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		text = strings.TrimRight(string(data), "\r\n")
	}

	if ingredients {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimRight(line, "\r")
		}
		text = strings.Join(units.ConvertIngredients(lines, target), "\n")
	} else {
		text = units.ConvertText(text, target)
	}

	_, err = fmt.Fprintln(w, text)
	return err
}
