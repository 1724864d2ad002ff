package cli

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"barangay-helpdesk/internal/config"
	"barangay-helpdesk/internal/dataset"
	"barangay-helpdesk/internal/domain"
	"barangay-helpdesk/internal/intent"
	"barangay-helpdesk/internal/integrations/paramstore"
	"barangay-helpdesk/internal/match"
	"barangay-helpdesk/internal/memstore"
	"barangay-helpdesk/internal/repository"
	"barangay-helpdesk/internal/usecase"
)

// deskOfficer is the staff profile available in --memory mode.
var deskOfficer = domain.Staff{ID: "desk", DisplayName: "Desk Officer", Role: domain.RoleStaff}

// conversationBackend is what both storage backends provide to the CLI.
type conversationBackend interface {
	usecase.ConversationStore
	usecase.StaffDirectory
	PutStaff(ctx context.Context, staff domain.Staff) error
}

type app struct {
	corpus  *dataset.Store
	chat    *usecase.ChatService
	backend conversationBackend
	handoff *usecase.HandoffService
	staff   *usecase.StaffService
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, memory bool) (*app, error) {
	var backend conversationBackend
	var params paramstore.Getter

	if memory {
		backend = memstore.New(memstore.WithStaff(deskOfficer))
	} else {
		if err := cfg.RequireStateTable(); err != nil {
			return nil, fmt.Errorf("%w (or pass --memory)", err)
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		repo, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable,
			repository.WithWatchInterval(cfg.WatchInterval))
		if err != nil {
			return nil, err
		}
		backend = repo
		if cfg.DatasetParam != "" {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, err
			}
			params = ssmClient
		}
	}

	src, err := cfg.DatasetSource(params)
	if err != nil {
		return nil, err
	}
	if src == nil {
		logger.Warn("no dataset configured; only essential intents will be answered")
	}
	corpus := dataset.New(src, dataset.WithLogger(logger))

	engine, err := match.New(corpus, match.WithFuzzyThreshold(cfg.FuzzyThreshold), match.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	chat, err := usecase.NewChatService(intent.New(), engine, cfg.MaxMessageLength, logger)
	if err != nil {
		return nil, err
	}
	handoff, err := usecase.NewHandoffService(backend, cfg.MaxMessageLength, logger)
	if err != nil {
		return nil, err
	}
	staff, err := usecase.NewStaffService(backend, backend, cfg.MaxMessageLength, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		corpus:  corpus,
		chat:    chat,
		backend: backend,
		handoff: handoff,
		staff:   staff,
	}, nil
}
