package main

import (
	"fmt"

	"github.com/ashureev/chat-recorder/internal/extract"
	"github.com/spf13/cobra"
)

func normalizeCmd(g *globalFlags) *cobra.Command {
	var path, text string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Print the normalized text of an element (the whole body by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, _, err := g.load()
			if err != nil {
				return err
			}
			target := doc.Body()
			if path != "" || text != "" {
				if target, err = locate(doc, path, text); err != nil {
					return err
				}
			}
			if target == nil {
				return fmt.Errorf("page has no body")
			}
			fmt.Fprintln(cmd.OutOrStdout(), extract.Normalize(target))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Node path of the element")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Deepest element containing this text")
	return cmd
}
