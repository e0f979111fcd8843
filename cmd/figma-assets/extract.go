package main

import (
	"fmt"
	"os"

	figmaassets "github.com/kataras/figma-assets"
	"github.com/kataras/figma-assets/pkg/extractor"
	"github.com/kataras/figma-assets/pkg/figma"
	"github.com/kataras/figma-assets/pkg/formatter"
	"github.com/kataras/figma-assets/pkg/imager"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newExtractCmd() *cobra.Command {
	var (
		figmaURL     string
		accessToken  string
		oauthToken   string
		nodeIDs      string
		outputDir    string
		outputFile   string
		exportAll    bool
		uploadImages bool
		favoriteSVGs bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the image and SVG assets of the selected nodes",
		Long: "Extract image and SVG assets from the nodes selected in a Figma URL (node-id) or given with --node-ids. " +
			"Image nodes are rendered as PNG at 3x, everything else exportable as SVG.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cyan.Println("\n🎨 Figma Assets")
			cyan.Println("===============")
			cyan.Println()

			var ids []string
			if nodeIDs != "" {
				ids = figmaassets.ParseNodeIDs(nodeIDs)
			}

			client := figma.NewClient(accessToken)
			if oauthToken != "" {
				client = figma.NewOAuthClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: oauthToken, TokenType: "Bearer"}))
			}

			host, err := figma.NewRESTHost(client, figmaURL, ids)
			if err != nil {
				return err
			}

			s, err := openSession(ctx, host)
			if err != nil {
				return err
			}
			defer s.close()

			var result *extractor.Result
			if exportAll {
				result, err = s.app.ExportSelection(ctx)
			} else {
				result, err = s.app.Extract(ctx)
			}
			if err != nil {
				return err
			}

			report, err := imager.WriteResult(result, outputDir)
			if err != nil {
				return err
			}
			for _, e := range report.Errors {
				red.Printf("✗ %v\n", e)
			}

			cyan.Println("\n📊 Extraction Summary:")
			fmt.Printf("  • Nodes visited: %d\n", result.Visited)
			fmt.Printf("  • Images: %d\n", len(result.Images))
			fmt.Printf("  • SVGs: %d\n", len(result.SVGs))
			if len(result.Errors) > 0 {
				fmt.Printf("  • Failed nodes: %d\n", len(result.Errors))
			}
			fmt.Printf("  • Files written to %s: %d\n", outputDir, len(report.Files))

			if uploadImages {
				for _, img := range result.Images {
					url, err := s.app.UploadImage(ctx, img, progressPrinter(img.Node.Name))
					if err != nil {
						continue
					}
					fmt.Printf("  %s → %s\n", img.Node.Name, url)
				}
			}

			if favoriteSVGs {
				for _, svg := range result.SVGs {
					s.app.FavoriteSVG(ctx, svg.Node) // failures go to the notifier
				}
			}

			if outputFile != "" {
				green.Printf("\n💾 Writing to %s... ", outputFile)
				md := formatter.ResultMarkdown(host.FileKey(), result, report)
				if err := os.WriteFile(outputFile, []byte(md), 0644); err != nil {
					red.Printf("✗\n")
					return err
				}
				green.Println("✓")
			}

			if result.Empty() {
				cyan.Println("\nNo exportable assets found in the selection.")
				return nil
			}
			green.Printf("\n✨ Successfully extracted assets to %s\n\n", outputDir)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&figmaURL, "url", "u", "", "Figma design URL (required)")
	f.StringVarP(&accessToken, "token", "t", os.Getenv("FIGMA_TOKEN"), "Figma Personal Access Token (defaults to $FIGMA_TOKEN)")
	f.StringVar(&oauthToken, "oauth-token", os.Getenv("FIGMA_OAUTH_TOKEN"), "Figma OAuth access token, used instead of --token (defaults to $FIGMA_OAUTH_TOKEN)")
	f.StringVarP(&nodeIDs, "node-ids", "n", "", "Comma-separated node IDs to use as the selection instead of the URL's node-id")
	f.StringVarP(&outputDir, "out", "d", "figma-assets", "Output directory for extracted assets")
	f.StringVarP(&outputFile, "output", "o", "", "Write a markdown summary to this file")
	f.BoolVar(&exportAll, "export", false, "Export every selected node as both PNG and SVG without classification")
	f.BoolVar(&uploadImages, "upload", false, "Upload extracted images with the stored upload configuration")
	f.BoolVar(&favoriteSVGs, "favorite-svgs", false, "Save extracted SVGs to the asset history")
	cmd.MarkFlagRequired("url")

	return cmd
}

func progressPrinter(name string) func(int) {
	return func(percent int) {
		fmt.Printf("\r  Uploading %s %3d%%", name, percent)
		if percent == 100 {
			fmt.Println()
		}
	}
}
