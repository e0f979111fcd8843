package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kataras/figma-assets/pkg/assets"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

// The config commands play the settings page: they own the sync store
// directly instead of going through the bridge.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the upload configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the upload configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, _, closeStores, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStores()

			cfg, err := configs.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}

	var (
		set         assets.UploadConfig
		fields      []string
		clearFields bool
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the upload configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			configs, _, closeStores, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer closeStores()

			cfg, err := configs.Load(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("upload-url") {
				cfg.UploadURL = set.UploadURL
			}
			if flags.Changed("upload-field") {
				cfg.UploadField = set.UploadField
			}
			if flags.Changed("image-field-path") {
				cfg.ImageFieldPath = set.ImageFieldPath
			}
			if flags.Changed("image-url-prefix") {
				cfg.ImageURLPrefix = set.ImageURLPrefix
			}
			if flags.Changed("svg-action-endpoint") {
				cfg.SVGActionEndpoint = set.SVGActionEndpoint
			}
			if clearFields {
				cfg.CustomFields = []assets.CustomField{}
			}
			for _, raw := range fields {
				f, err := parseFieldFlag(raw)
				if err != nil {
					return err
				}
				cfg.CustomFields = append(cfg.CustomFields, f)
			}

			saved, err := configs.Save(ctx, cfg)
			if err != nil {
				return err
			}
			green.Println("✓ Upload config saved")
			return printJSON(saved)
		},
	}
	sf := setCmd.Flags()
	sf.StringVar(&set.UploadURL, "upload-url", "", "Upload endpoint URL")
	sf.StringVar(&set.UploadField, "upload-field", "", "Multipart field name of the image")
	sf.StringVar(&set.ImageFieldPath, "image-field-path", "", `Path of the image URL in the upload response, e.g. "data.url" or ["data","url"]`)
	sf.StringVar(&set.ImageURLPrefix, "image-url-prefix", "", "Prefix added to the resolved image URL")
	sf.StringVar(&set.SVGActionEndpoint, "svg-action-endpoint", "", "SVG post-processing endpoint URL")
	sf.StringArrayVar(&fields, "field", nil, `Custom field "key=value[:type]" (type: text, uuid, fileSize, filename), repeatable`)
	sf.BoolVar(&clearFields, "clear-fields", false, "Remove all custom fields before adding --field ones")

	var fromClipboard bool
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON configuration or copied form data (key: value lines)",
		Long: "Import a whole configuration from JSON, or custom fields from \"key: value\" lines such as form data " +
			"copied from the browser's network panel. Reads the file, the clipboard (--clipboard) or stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			text, err := readImport(args, fromClipboard)
			if err != nil {
				return err
			}

			configs, _, closeStores, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer closeStores()

			current, err := configs.Load(ctx)
			if err != nil {
				return err
			}
			imported, err := assets.ParseConfigImport(text, current)
			if err != nil {
				return err
			}

			saved, err := configs.Save(ctx, imported)
			if err != nil {
				return err
			}
			green.Printf("✓ Imported %d custom field(s)\n", len(saved.CustomFields))
			return printJSON(saved)
		},
	}
	importCmd.Flags().BoolVar(&fromClipboard, "clipboard", false, "Read the text from the clipboard")

	cmd.AddCommand(showCmd, setCmd, importCmd)
	return cmd
}

func readImport(args []string, fromClipboard bool) (string, error) {
	switch {
	case fromClipboard:
		return clipboard.ReadAll()
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		return string(data), err
	default:
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
}

func parseFieldFlag(raw string) (assets.CustomField, error) {
	key, rest, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return assets.CustomField{}, fmt.Errorf("invalid --field %q, want key=value[:type]", raw)
	}

	f := assets.CustomField{Key: key, Value: rest, Type: assets.FieldText}
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		value, t := rest[:i], assets.CustomFieldType(rest[i+1:])
		switch t {
		case assets.FieldText, assets.FieldUUID, assets.FieldFileSize, assets.FieldFilename:
			f.Value, f.Type = value, t
		}
	}
	return f, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
