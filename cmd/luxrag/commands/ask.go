package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/luxweb/luxrag-go/internal/agent"
	"github.com/luxweb/luxrag-go/internal/config"
	"github.com/luxweb/luxrag-go/internal/logging"
	"github.com/luxweb/luxrag-go/internal/rag"
	"github.com/luxweb/luxrag-go/internal/tracing"
)

// NewAskCmd constructs the `luxrag ask` command, which answers a single
// question from the indexed corpus and streams the response to stdout.
func NewAskCmd() *cobra.Command {
	var topK int
	var tag string
	var noStream bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the indexed corpus",
		Long: `Ask the LuxRAG agent a natural language question.

The agent embeds the question, retrieves the most similar passages from the
vector index, and generates an answer grounded on them. Citations are printed
after the answer. Run 'luxrag ingest' first to populate the index.

Examples:
  luxrag ask "what are the thermal challenges of co-packaged optics?"
  luxrag ask --tag papers "how do microring modulators achieve high bandwidth?"
  luxrag ask --top-k 5 --no-stream "compare VCSEL and silicon photonic links"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			st := config.FromEnv()

			idx, err := openIndex(ctx, st, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = idx.Close() }()

			history, closeHistory := openHistory(st, log)
			defer closeHistory()

			luxAgent, _, _, err := buildAgent(ctx, st, idx, history, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			q := rag.Query{Text: strings.Join(args, " "), TopK: topK}
			if tag != "" {
				q.Filters = map[string]string{"tag": tag}
			}

			var ans *agent.Answer
			if noStream {
				ans, err = luxAgent.Ask(ctx, q)
			} else {
				ans, err = luxAgent.AskStream(ctx, q, os.Stdout)
			}
			if err != nil {
				return err //nolint:wrapcheck // agent errors already name the failing component
			}

			if noStream {
				fmt.Println(ans.Text)
			} else {
				fmt.Println()
			}
			printCitations(ans.Citations)

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default from config)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Restrict retrieval to documents carrying this tag")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Print the full answer at once instead of streaming")

	return cmd
}

// printCitations lists the answer's sources in reference order, matching the
// bracketed markers in the answer text.
func printCitations(citations []agent.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for _, c := range citations {
		title := c.Title
		if title == "" {
			title = c.Source
		}
		fmt.Printf("  [%d] %s (%s)\n", c.Number, title, c.Source)
	}
}
