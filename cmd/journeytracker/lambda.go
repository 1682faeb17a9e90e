//go:build lambda

/*
Command journeytracker, built with -tags lambda, is the API-Gateway-fronted
Lambda adapter for the same journeyhttp.Handler the standalone server uses
(§6: "HTTP: journey tracker"). It translates an APIGatewayProxyRequest into
an http.Request, runs it through the chi router, and translates the
recorded response back.
*/
package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/journey"
	"github.com/outcomeops/analytics-ingest/internal/journeyhttp"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

var router http.Handler

func handleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	httpReq := httptest.NewRequest(req.HTTPMethod, req.Path, strings.NewReader(req.Body))
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.IsBase64Encoded {
		httpReq.Header.Set("X-Body-Base64-Encoded", "true")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpReq)

	headers := make(map[string]string, len(rec.Header()))
	for k := range rec.Header() {
		headers[k] = rec.Header().Get(k)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: rec.Code,
		Headers:    headers,
		Body:       rec.Body.String(),
	}, nil
}

func main() {
	cfg := config.Load()
	log := obslog.New(cfg)

	if cfg.SessionsTable == "" {
		log.Warn().Msg("SESSIONS_TABLE not configured; /t and /t/batch will return 500 until it is set")
	}

	client, err := store.Default(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build event store client")
	}

	writer := journey.NewWriter(client, cfg.SessionsTable, log)
	handler := journeyhttp.NewHandler(cfg, writer, log)
	router = journeyhttp.NewRouter(handler)

	lambda.Start(handleAPIGateway)
}
