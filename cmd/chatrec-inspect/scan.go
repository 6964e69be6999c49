package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/extract"
	"github.com/ashureev/chat-recorder/internal/recorder"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
)

func scanCmd(g *globalFlags) *cobra.Command {
	var path string
	var width int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the messages discovery would pick up under a container",
		Long: `Lists every element under the container that qualifies as a message,
with its fingerprint, sender and normalized text. Without --path the
container is located the same way recovery does.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, matcher, err := g.load()
			if err != nil {
				return err
			}
			cfg := recorder.DefaultConfig()

			var container *html.Node
			rule := "path"
			if path != "" {
				p, err := dom.ParsePath(path)
				if err != nil {
					return err
				}
				if container, err = doc.Resolve(p); err != nil {
					return err
				}
			} else {
				var r recorder.Rule
				container, r, err = recorder.NewResolver(cfg).ResolveDocument(doc, recorder.Signature{})
				if err != nil {
					return err
				}
				rule = string(r)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "container: %s (%s, %s)\nsource: %s\n\n", dom.Describe(container), dom.PathOf(container), rule, matcher.SourceFor(doc.Host()))

			classifier := extract.NewClassifier(matcher)
			messages := recorder.NewFilter(cfg, matcher).Candidates(container)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tSENDER\tBUSY\tFINGERPRINT\tTEXT")
			for _, el := range messages {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n",
					dom.PathOf(el),
					classifier.Classify(el),
					matcher.Busy(el),
					extract.Fingerprint(el),
					preview(extract.Normalize(el), width),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d messages\n", len(messages))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Node path of the container")
	cmd.Flags().IntVarP(&width, "width", "w", 60, "Text preview width")
	return cmd
}
