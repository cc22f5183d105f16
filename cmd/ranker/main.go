// Command ranker runs a single grounded generation request from the command
// line and prints the response, its citations, and the telemetry row. It is
// a smoke-test harness for provider credentials and grounding behavior, not
// a production surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	ranker "github.com/contestra/ai-ranker-v2-sub003"
	"github.com/contestra/ai-ranker-v2-sub003/core"
	"github.com/contestra/ai-ranker-v2-sub003/obs"

	_ "github.com/contestra/ai-ranker-v2-sub003/providers/gemini"
	_ "github.com/contestra/ai-ranker-v2-sub003/providers/openai-responses"
)

func main() {
	provider := flag.String("provider", "openai-responses", "provider adapter ID")
	model := flag.String("model", "", "model override")
	mode := flag.String("grounding", "AUTO", "grounding mode: NONE, AUTO, REQUIRED")
	country := flag.String("country", "", "country code for the ambient location block")
	locale := flag.String("locale", "", "BCP-47 locale for the ambient location block")
	prompt := flag.String("prompt", "What is the tallest building in the world?", "user prompt")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Parse()

	shutdown, err := obs.Init(context.Background(), obs.Options{
		ServiceName: "ranker-cli",
		Exporter:    obs.ExporterNone,
	})
	if err != nil {
		log.Fatalf("init observability: %v", err)
	}
	defer shutdown(context.Background())

	sink := obs.NewMemorySink()
	clientOpts := []ranker.ClientOption{ranker.WithTelemetrySink(sink)}
	if secret := os.Getenv("ALS_SECRET"); secret != "" {
		clientOpts = append(clientOpts, ranker.WithALSSecret([]byte(secret)))
	}
	client := ranker.NewClient(clientOpts...)

	req := core.Request{
		ProviderID:    *provider,
		Model:         *model,
		GroundingMode: core.GroundingMode(*mode),
		Messages:      []core.Message{core.UserMessage(*prompt)},
	}
	if *country != "" && *locale != "" {
		req.LocaleContext = &core.LocaleContext{CountryCode: *country, Locale: *locale}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Complete(ctx, req)
	if err != nil {
		printTelemetry(sink)
		// log.Fatalf would skip the deferred shutdown and drop any
		// buffered spans; flush explicitly before exiting.
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		cancel()
		shutdown(context.Background())
		os.Exit(1)
	}

	fmt.Printf("model:    %s\n", resp.Model)
	fmt.Printf("provider: %s\n", resp.Provider)
	fmt.Printf("tokens:   in=%d out=%d\n", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	fmt.Printf("grounded: attempted=%v effective=%v anchored=%d unlinked=%d\n",
		resp.Grounding.Attempted, resp.Grounding.Effective,
		resp.Grounding.AnchoredCount, resp.Grounding.UnlinkedCount)
	fmt.Printf("\n%s\n", resp.Text)

	if len(resp.Citations) > 0 {
		fmt.Println("\ncitations:")
		for _, citation := range resp.Citations {
			marker := " "
			if citation.IsRedirect {
				marker = "R"
			}
			fmt.Printf("  [%s] %-9s %-30s %s\n", marker, citation.Class, citation.SourceDomain, citation.URL)
		}
	}
	printTelemetry(sink)
}

func printTelemetry(sink *obs.MemorySink) {
	for _, row := range sink.Records() {
		fmt.Printf("\ntelemetry: request_id=%s success=%v latency_ms=%d als_present=%v why_not_grounded=%q\n",
			row.RequestID, row.Success, row.ResponseTimeMS, row.ALSPresent, row.WhyNotGrounded)
	}
}
