package main

import (
	"fmt"
	"time"

	figmaassets "github.com/kataras/figma-assets"
	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/kataras/figma-assets/pkg/formatter"

	"github.com/spf13/cobra"
)

func newAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List, copy, delete or watch saved assets",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the saved asset history as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.close()

			list, err := s.app.SavedAssets(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(formatter.AssetsMarkdown(list))
			return nil
		},
	}

	var dataURL bool
	copyCmd := &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy a saved asset's URL or SVG markup to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.close()

			format := figmaassets.CopyValue
			if dataURL {
				format = figmaassets.CopyDataURL
			}
			text, err := s.app.CopyAsset(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			if noCopy {
				fmt.Println(text)
			}
			return nil
		},
	}
	copyCmd.Flags().BoolVar(&dataURL, "data-url", false, "Copy SVGs as a base64 data URL")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete saved assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.close()

			for _, id := range args {
				if err := s.app.DeleteAsset(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	var interval time.Duration
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the saved asset history whenever it is refreshed, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, nil)
			if err != nil {
				return err
			}
			defer s.close()

			for snap := range s.app.WatchAssets(ctx, interval) {
				if snap.Err != nil {
					red.Printf("✗ %v\n", snap.Err)
					continue
				}
				cyan.Printf("\n[%s] %d saved asset(s)\n", time.Now().Format(time.TimeOnly), len(snap.Assets))
				fmt.Print(formatter.AssetsMarkdown(snap.Assets))
			}
			return nil
		},
	}
	watchCmd.Flags().DurationVar(&interval, "interval", assets.DefaultWatchInterval, "Refresh interval")

	cmd.AddCommand(listCmd, copyCmd, deleteCmd, watchCmd)
	return cmd
}
