package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"barangay-helpdesk/handler"
	"barangay-helpdesk/internal/config"
	"barangay-helpdesk/internal/dataset"
	"barangay-helpdesk/internal/intent"
	"barangay-helpdesk/internal/integrations/paramstore"
	"barangay-helpdesk/internal/match"
	"barangay-helpdesk/internal/repository"
	"barangay-helpdesk/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.LambdaLogger(os.Stdout, cfg.Level())
	slog.SetDefault(logger)
	if err := cfg.RequireStateTable(); err != nil {
		fail("missing state table", err)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fail("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fail("failed to create SSM client", err)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable,
		repository.WithWatchInterval(cfg.WatchInterval))
	if err != nil {
		fail("failed to create state client", err)
	}

	// ---- Chatbot ----
	src, err := cfg.DatasetSource(ssmClient)
	if err != nil {
		fail("failed to configure dataset", err)
	}
	corpus := dataset.New(src, dataset.WithLogger(logger))
	engine, err := match.New(corpus, match.WithFuzzyThreshold(cfg.FuzzyThreshold), match.WithLogger(logger))
	if err != nil {
		fail("failed to create match engine", err)
	}
	chatService, err := usecase.NewChatService(intent.New(), engine, cfg.MaxMessageLength, logger)
	if err != nil {
		fail("failed to create chat service", err)
	}

	// ---- Live chat ----
	handoffService, err := usecase.NewHandoffService(stateClient, cfg.MaxMessageLength, logger)
	if err != nil {
		fail("failed to create handoff service", err)
	}
	staffService, err := usecase.NewStaffService(stateClient, stateClient, cfg.MaxMessageLength, logger)
	if err != nil {
		fail("failed to create staff service", err)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(handler.Services{
		Chat:    chatService,
		Catalog: corpus,
		Handoff: handoffService,
		Staff:   staffService,
	}, handler.WithLogger(logger))
	if err != nil {
		fail("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
