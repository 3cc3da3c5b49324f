package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"staffbook-backend/internal/config"
	"staffbook-backend/internal/db"
	"staffbook-backend/internal/handler"
	"staffbook-backend/internal/ports"
	"staffbook-backend/internal/push"
	"staffbook-backend/internal/repository"
	"staffbook-backend/internal/server"
	"staffbook-backend/internal/service"
	"staffbook-backend/internal/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "server",
		Short:         "Staffbook API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger)
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), logger)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func migrate(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pg, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pg.Close()
	return pg.Migrate(ctx, logger)
}

func serve(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pg, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pg.Close()

	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, logger); err != nil {
			return err
		}
	}

	// repositories
	userRepo := repository.UserRepository{DB: pg}
	companyRepo := repository.CompanyRepository{DB: pg}
	handbookRepo := repository.HandbookRepository{DB: pg}
	sopRepo := repository.SOPRepository{DB: pg}
	executionRepo := repository.ExecutionRepository{DB: pg}
	taskRepo := repository.TaskRepository{DB: pg}
	incidentRepo := repository.IncidentRepository{DB: pg}
	notificationRepo := repository.NotificationRepository{DB: pg}
	fcmRepo := repository.FCMRepository{DB: pg}
	activityRepo := repository.ActivityLogRepository{DB: pg}
	dashboardRepo := repository.DashboardRepository{DB: pg}
	mediaRepo := repository.MediaRepository{DB: pg}

	// Firebase Cloud Messaging (optional)
	var pusher ports.Pusher = push.Noop{}
	if cfg.FirebaseProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, firebaseOptions(cfg)...)
		if err != nil {
			return fmt.Errorf("init firebase app: %w", err)
		}
		client, err := app.Messaging(ctx)
		if err != nil {
			return fmt.Errorf("init firebase messaging: %w", err)
		}
		pusher = push.FirebasePusher{Client: client, Tokens: fcmRepo, Logger: logger}
		logger.Info("push notifications enabled", "project", cfg.FirebaseProjectID)
	}

	// services
	notifySvc := service.NotificationService{Store: notificationRepo, Devices: fcmRepo, Pusher: pusher, Logger: logger}
	accessSvc := service.AccessService{Users: userRepo, Handbook: handbookRepo, Logger: logger}
	authSvc := service.AuthService{Config: cfg, Users: userRepo, Companies: companyRepo, Notifier: notifySvc, Activity: activityRepo, Logger: logger}
	userSvc := service.UserService{Users: userRepo, Notifier: notifySvc, Activity: activityRepo, Logger: logger}
	handbookSvc := service.HandbookService{Users: userRepo, Handbook: handbookRepo, Access: accessSvc, Activity: activityRepo, Logger: logger}
	sopSvc := service.SOPService{Users: userRepo, SOPs: sopRepo, Executions: executionRepo, Access: accessSvc, Activity: activityRepo, Logger: logger}
	taskSvc := service.TaskService{Users: userRepo, Tasks: taskRepo, Notifier: notifySvc, Activity: activityRepo, Logger: logger}
	incidentSvc := service.IncidentService{Users: userRepo, Incidents: incidentRepo, Notifier: notifySvc, Activity: activityRepo, Logger: logger}
	statsSvc := service.StatsService{Users: userRepo, Stats: dashboardRepo, Logs: activityRepo}

	store := storage.LocalStore{Dir: cfg.UploadDir, BaseURL: cfg.PublicBaseURL, MaxBytes: cfg.MaxUploadBytes}
	mediaSvc := service.MediaService{Users: userRepo, Objects: mediaRepo, Files: store, Logger: logger}

	router := server.NewRouter(cfg, logger, server.Handlers{
		Health:        handler.HealthHandler{DB: pg},
		Docs:          handler.DocsHandler{},
		Auth:          handler.AuthHandler{Service: &authSvc},
		Users:         handler.UserHandler{Users: &userSvc, Access: &accessSvc},
		Handbook:      handler.HandbookHandler{Service: &handbookSvc},
		Reports:       handler.ReportHandler{Handbook: &handbookSvc},
		SOPs:          handler.SOPHandler{Service: &sopSvc},
		Tasks:         handler.TaskHandler{Service: &taskSvc},
		Incidents:     handler.IncidentHandler{Service: &incidentSvc},
		Notifications: handler.NotificationHandler{Service: &notifySvc},
		FCM:           handler.FCMHandler{Service: &notifySvc},
		Uploads:       handler.UploadHandler{Service: &mediaSvc},
		Dashboard:     handler.DashboardHandler{Service: &statsSvc},
		Activity:      handler.ActivityLogHandler{Service: &statsSvc},
	})

	return server.Start(ctx, cfg, router, logger)
}

func firebaseOptions(cfg config.Config) []option.ClientOption {
	if cfg.FirebaseCredFile == "" {
		return nil
	}

	cred := cfg.FirebaseCredFile
	// Allow inline JSON or base64-encoded JSON in env to avoid writing a file.
	if strings.HasPrefix(strings.TrimSpace(cred), "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cred))}
	}
	if decoded, err := base64.StdEncoding.DecodeString(cred); err == nil && strings.HasPrefix(strings.TrimSpace(string(decoded)), "{") {
		return []option.ClientOption{option.WithCredentialsJSON(decoded)}
	}

	return []option.ClientOption{option.WithCredentialsFile(cred)}
}
