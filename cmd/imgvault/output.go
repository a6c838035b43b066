package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func (c *commandContext) outputMode() string {
	if c.flags.json {
		return outputJSON
	}
	mode := strings.ToLower(strings.TrimSpace(c.flags.output))
	if mode == "" {
		return outputText
	}
	return mode
}

func (c *commandContext) validateOutput() error {
	switch c.outputMode() {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want text, json, or yaml)", c.flags.output)
	}
}

// structured reports whether results should be encoded instead of rendered.
func (c *commandContext) structured() bool {
	return c.outputMode() != outputText
}

// writeStructured encodes v in the selected machine-readable format.
func (c *commandContext) writeStructured(cmd *cobra.Command, v any) error {
	if c.outputMode() == outputYAML {
		return writeYAML(cmd, v)
	}
	return writeJSON(cmd, v)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
