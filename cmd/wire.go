package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	httpconsult "github.com/bnema/assistant-continuity/internal/adapters/consult/httpapi"
	stubconsult "github.com/bnema/assistant-continuity/internal/adapters/consult/stub"
	execrunner "github.com/bnema/assistant-continuity/internal/adapters/process/exec"
	statusadapter "github.com/bnema/assistant-continuity/internal/adapters/render/status"
	tomlrepo "github.com/bnema/assistant-continuity/internal/adapters/repo/toml"
	"github.com/bnema/assistant-continuity/internal/adapters/supervisor/systemd"
	gitvcs "github.com/bnema/assistant-continuity/internal/adapters/vcs/git"
	"github.com/bnema/assistant-continuity/internal/application"
	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/extract"
	"github.com/bnema/assistant-continuity/internal/ports"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	configDirName  = ".assistant"
	configFileName = "config"
	envPrefix      = "AC"

	keyServiceEnabled       = "service.enabled"
	keyServiceName          = "service.name"
	keyServiceSudo          = "service.sudo"
	keyServiceProbeTimeout  = "service.probe_timeout"
	keyServiceSettleStart   = "service.settle.start"
	keyServiceSettleStop    = "service.settle.stop"
	keyServiceSettleRestart = "service.settle.restart"
	keyConsultURL           = "consult.url"
	keyConsultTimeout       = "consult.timeout"
	keyVCSEnabled           = "vcs.enabled"
	keyVCSRepo              = "vcs.repo"
	keyVCSRemote            = "vcs.remote"
	keyVCSBranch            = "vcs.branch"
	keyExtractorTables      = "extractor.tables"
	keyOrchestratorGrace    = "orchestrator.grace"
	keyOrchestratorTimeout  = "orchestrator.default_timeout"
	keyOrchestratorParallel = "orchestrator.max_parallel"
	keyStatusStaleAfter     = "status.stale_after"
)

var errServiceDisabled = fmt.Errorf("%w: service control is disabled (%s=false)", domain.ErrServiceUnavailable, keyServiceEnabled)

type globalOptions struct {
	configPath string
	verbose    bool
}

type app struct {
	cfg            *viper.Viper
	logger         *zap.Logger
	coordinator    *application.SessionCoordinator
	recaps         *application.RecapStore
	service        *application.ServiceController
	orchestrator   *application.ProcessOrchestrator
	statusRenderer func(application.Status, statusadapter.RenderOptions) (string, error)
	recapPath      string
	consultTimeout time.Duration
	staleAfter     time.Duration
	now            func() time.Time
}

func setDefaults(cfg *viper.Viper) {
	cfg.SetDefault(keyServiceEnabled, true)
	cfg.SetDefault(keyServiceName, "opencode.service")
	cfg.SetDefault(keyServiceSudo, true)
	cfg.SetDefault(keyServiceProbeTimeout, 5*time.Second)
	cfg.SetDefault(keyServiceSettleStart, 3*time.Second)
	cfg.SetDefault(keyServiceSettleStop, 2*time.Second)
	cfg.SetDefault(keyServiceSettleRestart, 3*time.Second)
	cfg.SetDefault(keyConsultTimeout, 10*time.Minute)
	cfg.SetDefault(keyVCSEnabled, true)
	cfg.SetDefault(keyVCSRemote, "origin")
	cfg.SetDefault(keyVCSBranch, "main")
	cfg.SetDefault(keyOrchestratorGrace, 5*time.Second)
	cfg.SetDefault(keyOrchestratorParallel, application.DefaultMaxParallelTasks)
	cfg.SetDefault(keyStatusStaleAfter, 7*24*time.Hour)
}

func loadConfig(configPath string) (*viper.Viper, error) {
	cfg := viper.New()
	setDefaults(cfg)
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	if configPath != "" {
		cfg.SetConfigFile(configPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.SetConfigName(configFileName)
		cfg.SetConfigType("toml")
		cfg.AddConfigPath(filepath.Join(homeDir, configDirName))
	}

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return cfg, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return logger, nil
}

func (a *app) wire(opts globalOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}

	recapRepo, err := tomlrepo.NewRecapRepository(cfg)
	if err != nil {
		return fmt.Errorf("wire recap repository: %w", err)
	}
	sessionRepo, err := tomlrepo.NewSessionRepository(cfg)
	if err != nil {
		return fmt.Errorf("wire session repository: %w", err)
	}
	taskRepo, err := tomlrepo.NewActiveTaskRepository(cfg)
	if err != nil {
		return fmt.Errorf("wire task repository: %w", err)
	}
	stateLock, err := tomlrepo.NewStateLock(cfg)
	if err != nil {
		return fmt.Errorf("wire state lock: %w", err)
	}

	tables, err := extract.LoadTables(cfg.GetString(keyExtractorTables))
	if err != nil {
		return fmt.Errorf("wire extractor: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	clock := ports.SystemClock{}
	recaps := application.NewRecapStore(recapRepo, sessionRepo, stateLock, extract.New(tables), clock, logger.Named("recap"))
	orchestrator := application.NewProcessOrchestrator(execrunner.NewRunner(), application.OrchestratorConfig{
		DefaultTimeout: cfg.GetDuration(keyOrchestratorTimeout),
		TerminateGrace: cfg.GetDuration(keyOrchestratorGrace),
	}, clock, logger.Named("orchestrator"))

	var service *application.ServiceController
	if cfg.GetBool(keyServiceEnabled) {
		service = application.NewServiceController(systemd.NewSupervisor(cfg.GetBool(keyServiceSudo)), newConsultant(cfg), application.ServiceControllerConfig{
			Name:          cfg.GetString(keyServiceName),
			ProbeTimeout:  cfg.GetDuration(keyServiceProbeTimeout),
			StartSettle:   cfg.GetDuration(keyServiceSettleStart),
			StopSettle:    cfg.GetDuration(keyServiceSettleStop),
			RestartSettle: cfg.GetDuration(keyServiceSettleRestart),
		}, logger.Named("service"))
	}

	var vcs ports.VCS
	if cfg.GetBool(keyVCSEnabled) {
		repoDir := cfg.GetString(keyVCSRepo)
		if repoDir == "" {
			repoDir = workingDir
		}
		vcs = gitvcs.NewRepo(repoDir, cfg.GetString(keyVCSRemote), cfg.GetString(keyVCSBranch))
	}

	a.cfg = cfg
	a.logger = logger
	a.recaps = recaps
	a.service = service
	a.orchestrator = orchestrator
	a.coordinator = application.NewSessionCoordinator(application.CoordinatorDeps{
		Recaps:       recaps,
		Service:      service,
		Orchestrator: orchestrator,
		VCS:          vcs,
		Tasks:        taskRepo,
		Clock:        clock,
		Logger:       logger.Named("coordinator"),
		WorkingDir:   workingDir,
		MaxParallel:  cfg.GetInt(keyOrchestratorParallel),
	})
	a.statusRenderer = statusadapter.Render
	a.recapPath = recapRepo.Path()
	a.consultTimeout = cfg.GetDuration(keyConsultTimeout)
	a.staleAfter = cfg.GetDuration(keyStatusStaleAfter)
	a.now = time.Now

	return nil
}

func newConsultant(cfg *viper.Viper) ports.Consultant {
	if url := cfg.GetString(keyConsultURL); url != "" {
		return httpconsult.NewClient(url, http.DefaultClient)
	}
	return stubconsult.NewConsultant(0)
}

func (a *app) requireService() (*application.ServiceController, error) {
	if a.service == nil {
		return nil, errServiceDisabled
	}
	return a.service, nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
