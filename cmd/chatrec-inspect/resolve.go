package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/recorder"
	"github.com/spf13/cobra"
)

func resolveCmd(g *globalFlags) *cobra.Command {
	var path, text string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show every anchor candidate for a click and the chosen container",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, _, err := g.load()
			if err != nil {
				return err
			}
			target, err := locate(doc, path, text)
			if err != nil {
				return err
			}

			res, resErr := recorder.NewResolver(recorder.DefaultConfig()).Explain(target)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "target: %s (%s)\n\n", dom.Describe(target), dom.PathOf(target))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LEVEL\tDENSITY\tSPECIFICITY\tPATH\tELEMENT\t")
			for i, c := range res.Candidates {
				mark := ""
				if i == res.Chosen {
					mark = "<-"
				}
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", c.Level, c.Density, c.Specificity, dom.PathOf(c.Element), dom.Describe(c.Element), mark)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if resErr != nil {
				if errors.Is(resErr, recorder.ErrNoContainerFound) {
					fmt.Fprintf(out, "\nno container: %v\n", resErr)
					return nil
				}
				return resErr
			}
			c := res.Candidates[res.Chosen]
			fmt.Fprintf(out, "\nchosen: %s at level %d by rule %s (path %s)\n", dom.Describe(c.Element), c.Level, res.Rule, dom.PathOf(c.Element))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Node path of the clicked element")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Click the deepest element containing this text")
	return cmd
}
