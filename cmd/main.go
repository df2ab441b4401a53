package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"deals-agent/handler"
	"deals-agent/internal/integrations/openai"
	"deals-agent/internal/integrations/paramstore"
	"deals-agent/internal/repository"
	"deals-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	dealsTable := mustEnv("DEALS_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	dynamoClient := awsdynamodb.NewFromConfig(cfg)
	repo, err := repository.New(dynamoClient, dealsTable)
	if err != nil {
		slog.Error("failed to create deal repository", "err", err)
		os.Exit(1)
	}

	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Core wiring ----
	classifier, err := usecase.NewLLMClassifier(ssmClient, openaiClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create classifier", "err", err)
		os.Exit(1)
	}
	ledger, err := usecase.NewClipLedger(repo)
	if err != nil {
		slog.Error("failed to create clip ledger", "err", err)
		os.Exit(1)
	}
	session, err := usecase.NewSession(classifier, repo, ledger)
	if err != nil {
		slog.Error("failed to create session", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(session)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
