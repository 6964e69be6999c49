// chatrec-inspect runs the recorder heuristics against a saved page, for
// tuning vocabularies without a browser.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/vocab"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
)

var Version = "dev"

type globalFlags struct {
	file       string
	url        string
	vocabulary string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "chatrec-inspect",
		Short:         "Inspect how the chat recorder sees a saved page",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.file, "file", "f", "", "Saved HTML page")
	rootCmd.PersistentFlags().StringVarP(&g.url, "url", "u", "", "Page URL, used for the source label")
	rootCmd.PersistentFlags().StringVar(&g.vocabulary, "vocabulary", "", "Vocabulary YAML overlay")
	_ = rootCmd.MarkPersistentFlagRequired("file")

	rootCmd.AddCommand(resolveCmd(g))
	rootCmd.AddCommand(scanCmd(g))
	rootCmd.AddCommand(normalizeCmd(g))

	return rootCmd
}

func (g *globalFlags) load() (*dom.Document, *vocab.Matcher, error) {
	f, err := os.Open(g.file)
	if err != nil {
		return nil, nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	doc, err := dom.Parse(f, g.url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse page: %w", err)
	}

	v, err := vocab.Load(g.vocabulary)
	if err != nil {
		return nil, nil, err
	}
	m, err := v.Compile()
	if err != nil {
		return nil, nil, err
	}
	return doc, m, nil
}

// locate finds the node named by a path, or the deepest element containing text.
func locate(doc *dom.Document, path, text string) (*html.Node, error) {
	switch {
	case path != "":
		p, err := dom.ParsePath(path)
		if err != nil {
			return nil, err
		}
		return doc.Resolve(p)
	case text != "":
		var found *html.Node
		dom.Walk(doc.Root(), func(n *html.Node) bool {
			if !dom.IsElement(n) || !strings.Contains(dom.TextContent(n), text) {
				return false
			}
			found = n
			return true
		})
		if found == nil {
			return nil, fmt.Errorf("no element contains %q", text)
		}
		return found, nil
	}
	return nil, fmt.Errorf("one of --path or --text is required")
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
