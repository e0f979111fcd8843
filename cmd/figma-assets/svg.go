package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kataras/figma-assets/pkg/upload"

	"github.com/spf13/cobra"
)

func newSVGCmd() *cobra.Command {
	var opts upload.Options

	cmd := &cobra.Command{
		Use:   "svg <file.svg>",
		Short: "Send an SVG to the configured SVG action endpoint and print its usage snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if opts.Name == "" {
				opts.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			s, err := openSession(ctx, nil)
			if err != nil {
				return err
			}
			defer s.close()

			snippet, err := s.app.ProcessSVG(ctx, string(data), opts)
			if err != nil {
				return err
			}
			fmt.Println(snippet)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "Icon name (defaults to the file name)")
	cmd.Flags().BoolVar(&opts.WithSize, "with-size", false, "Keep width and height and add them to the snippet")
	cmd.Flags().BoolVar(&opts.WithDiv, "with-div", false, "Wrap the snippet in a div")
	return cmd
}
