// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command engine starts the Inkwell document-intelligence HTTP server.
//
// # Environment Variables
//
//   - ENGINE_PORT: HTTP server port (default: 12310)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (required for
//     retrieval and conversation history)
//   - SCORER_SERVICE_URL: cross-encoder reranking service URL
//     (default: http://inkwell-scorer:8000)
//   - OPENAI_API_KEY: model API key (or /run/secrets/openai_api_key)
//   - OPENAI_MODEL: chat model name (default: gpt-4o-mini)
//   - ANALYSIS_CACHE_DIR: Badger directory for the analysis cache
//     (default: /var/lib/inkwell/analysis)
//   - LOG_LEVEL / LOG_DIR: logging configuration
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
//     (default: inkwell-otel-collector:4317)
package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/inkwell-ai/inkwell/pkg/logging"
	"github.com/inkwell-ai/inkwell/services/engine"
	"github.com/inkwell-ai/inkwell/services/engine/analysis"
	"github.com/inkwell-ai/inkwell/services/engine/generate"
	"github.com/inkwell-ai/inkwell/services/engine/guard"
	"github.com/inkwell-ai/inkwell/services/engine/history"
	"github.com/inkwell-ai/inkwell/services/engine/observability"
	"github.com/inkwell-ai/inkwell/services/engine/planner"
	"github.com/inkwell-ai/inkwell/services/engine/rerank"
	"github.com/inkwell-ai/inkwell/services/engine/retrieval"
	"github.com/inkwell-ai/inkwell/services/engine/routes"
	"github.com/inkwell-ai/inkwell/services/llm"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "inkwell-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("inkwell-engine")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient parses WEAVIATE_SERVICE_URL and connects. A
// missing or invalid URL is fatal: retrieval and conversation history
// both depend on the index.
func newWeaviateClient() (*weaviate.Client, error) {
	raw := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: err}
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "engine",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	weaviateClient, err := newWeaviateClient()
	if err != nil {
		log.Fatalf("WEAVIATE_SERVICE_URL is missing or invalid: %v", err)
	}

	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		Model:             os.Getenv("OPENAI_MODEL"),
		RequestsPerSecond: 5,
	})
	if err != nil {
		log.Fatalf("failed to initialize LLM client: %v", err)
	}

	cacheDir := getEnvString("ANALYSIS_CACHE_DIR", "/var/lib/inkwell/analysis")
	store, err := analysis.OpenBadgerStore(cacheDir)
	if err != nil {
		log.Fatalf("failed to open analysis cache at %s: %v", cacheDir, err)
	}
	defer store.Close()

	analyzer := analysis.NewAnalyzer(store,
		analysis.NewLLMClassifier(llmClient), logger.Slog())

	searcher, err := retrieval.NewWeaviateSearcher(weaviateClient)
	if err != nil {
		log.Fatalf("failed to create searcher: %v", err)
	}
	historyStore, err := history.NewWeaviateStore(weaviateClient)
	if err != nil {
		log.Fatalf("failed to create history store: %v", err)
	}

	scorerURL := getEnvString("SCORER_SERVICE_URL", "http://inkwell-scorer:8000")
	pipeline, err := engine.NewPipeline(
		guard.New(llmClient, logger.Slog()),
		planner.New(llmClient, logger.Slog()),
		retrieval.New(searcher, logger.Slog()),
		rerank.New(rerank.NewHTTPScorer(scorerURL, logger.Slog()), logger.Slog()),
		generate.New(llmClient, historyStore, logger.Slog()),
		logger.Slog(),
	)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v", err)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("inkwell-engine"))
	routes.SetupRoutes(router, analyzer, pipeline, historyStore)

	port := getEnvString("ENGINE_PORT", "12310")
	slog.Info("starting the engine server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
