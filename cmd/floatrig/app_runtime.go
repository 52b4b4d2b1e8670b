package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/floatrig/floatrig/internal/api"
	"github.com/floatrig/floatrig/internal/bot"
	"github.com/floatrig/floatrig/internal/config"
	"github.com/floatrig/floatrig/internal/controller"
	"github.com/floatrig/floatrig/internal/inspect"
	"github.com/floatrig/floatrig/internal/inspectlog"
	"github.com/floatrig/floatrig/internal/metrics"
	"github.com/floatrig/floatrig/internal/proxysel"
	"github.com/floatrig/floatrig/internal/state"
	"github.com/floatrig/floatrig/internal/steam"
)

type floatrigApp struct {
	envCfg      *config.EnvConfig
	stateDB     *sql.DB
	accountRepo *state.AccountRepo
	collector   *metrics.Collector
	logRepo     *inspectlog.Repo
	logSvc      *inspectlog.Service
	ctrl        *controller.Controller
	sweeper     *cron.Cron
	apiSrv      *api.Server
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if envCfg.AdminToken != "" && config.IsWeakToken(envCfg.AdminToken) {
		log.Println("[main] WARNING: admin token is weak, consider a longer random value")
	}

	app, err := newFloatrigApp(envCfg)
	if err != nil {
		return err
	}

	accounts, err := config.LoadAccounts(envCfg.AccountsFile)
	if err != nil {
		app.closePersistence()
		return err
	}
	for _, acc := range accounts {
		app.ctrl.AddBot(acc.Username, acc.Password, acc.AuthSecret)
	}
	log.Printf("[main] %d bots registered, waiting up to %s for first ready bot", len(accounts), envCfg.StartupTimeout)
	if app.ctrl.WaitForInitialization(envCfg.StartupTimeout) {
		log.Printf("[main] fleet initialized: %d/%d bots ready", app.ctrl.ReadyCount(), app.ctrl.BotCount())
	} else {
		log.Println("[main] WARNING: no bot became ready within the startup window, serving anyway")
	}

	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx)

	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func newFloatrigApp(envCfg *config.EnvConfig) (*floatrigApp, error) {
	app := &floatrigApp{
		envCfg:    envCfg,
		collector: metrics.NewCollector(),
	}

	if err := os.MkdirAll(envCfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if err := os.MkdirAll(envCfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	stateDB, err := state.OpenDB(filepath.Join(envCfg.StateDir, "state.db"))
	if err != nil {
		return nil, err
	}
	if err := state.MigrateStateDB(stateDB); err != nil {
		_ = stateDB.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	app.stateDB = stateDB
	app.accountRepo = state.NewAccountRepo(stateDB)

	app.logRepo = inspectlog.NewRepo(
		envCfg.LogDir,
		int64(envCfg.InspectLogDBMaxMB)*1024*1024,
		envCfg.InspectLogDBRetainCount,
	)
	if err := app.logRepo.Open(); err != nil {
		_ = stateDB.Close()
		return nil, fmt.Errorf("open inspect log repo: %w", err)
	}
	app.logSvc = inspectlog.NewService(inspectlog.ServiceConfig{
		Repo:          app.logRepo,
		QueueSize:     envCfg.InspectLogQueueSize,
		FlushBatch:    envCfg.InspectLogFlushBatchSize,
		FlushInterval: envCfg.InspectLogFlushInterval,
	})
	app.logSvc.Start()

	selector, err := proxysel.New(proxysel.Config{
		ClashAPIURL:    envCfg.ClashAPIURL,
		ClashSecret:    envCfg.ClashSecret,
		ProxyPort:      envCfg.ProxyPort,
		SwitchCooldown: envCfg.ProxySwitchCooldown,
		ProxyList:      envCfg.ProxyList,
	})
	if err != nil {
		app.closePersistence()
		return nil, fmt.Errorf("proxy selector: %w", err)
	}

	factory, err := steam.OpenFactory(envCfg.SessionDriver)
	if err != nil {
		app.closePersistence()
		return nil, err
	}

	app.ctrl = controller.New(controller.Config{
		NewSession: factory,
		Selector:   selector,
		Settings: bot.Settings{
			MaxLoginRetries:     envCfg.MaxLoginRetries,
			LoginRetryDelay:     envCfg.LoginRetryDelay,
			MaxGCAttempts:       envCfg.MaxGCReconnectAttempts,
			GCReconnectDelay:    envCfg.GCReconnectDelay,
			RequestTTL:          envCfg.RequestTTL,
			RequestDelay:        envCfg.RequestDelay,
			RefreshInterval:     envCfg.SessionRefreshInterval,
			RefreshJitter:       envCfg.SessionRefreshJitter,
			HealthInterval:      envCfg.HealthCheckInterval,
			GCInactivityCeiling: envCfg.GCInactivityCeiling,
		},
		OnEvent:  app.handleBotEvent,
		OnResult: app.handleInspectResult,
	})

	app.sweeper = cron.New()
	if _, err := app.sweeper.AddFunc(envCfg.LogSweepSchedule, app.sweepInspectLogs); err != nil {
		app.closePersistence()
		return nil, fmt.Errorf("log sweep schedule: %w", err)
	}
	app.sweeper.Start()

	app.apiSrv = api.NewServer(
		envCfg.ListenAddress,
		envCfg.APIPort,
		envCfg.AdminToken,
		app.ctrl,
		app.collector,
		app.logSvc,
		time.Now().UTC(),
	)

	return app, nil
}

// handleBotEvent mirrors bot lifecycle edges into metrics and state.db.
func (a *floatrigApp) handleBotEvent(ev bot.Event) {
	now := time.Now().UnixNano()
	st := state.AccountStatus{Username: ev.Username, UpdatedAtNs: now}

	switch ev.Type {
	case bot.EventReady:
		a.collector.IncReadyEdge(ev.Username)
		st.State = "ready"
		st.Ready = true
		st.LastReadyAtNs = now
	case bot.EventUnready:
		a.collector.IncUnreadyEdge(ev.Username)
		st.State = "logged_on"
	case bot.EventLoginFailed:
		a.collector.IncLoginFailure(ev.Username)
		st.State = "dead"
		if ev.Err != nil {
			st.LastError = ev.Err.Error()
		}
	case bot.EventGCReconnectFailed:
		a.collector.IncGCGiveUp(ev.Username)
		st.State = "gc_lost"
		st.LastError = "gc reconnect attempts exhausted"
	}

	if err := a.accountRepo.Upsert(st); err != nil {
		log.Printf("[main] account status upsert for %s failed: %v", ev.Username, err)
	}
}

// handleInspectResult mirrors every dispatched inspect outcome into metrics
// and the rolling inspect log.
func (a *floatrigApp) handleInspectResult(username string, botIndex int, link inspect.Link, info *inspect.ItemInfo, duration time.Duration, err error) {
	a.collector.IncInspectRequest(username)
	switch {
	case err == nil:
		a.collector.IncInspectOK(username)
	case errors.Is(err, bot.ErrTTLExceeded):
		a.collector.IncInspectTTL(username)
	default:
		a.collector.IncInspectError(username)
	}
	a.logSvc.Emit(inspectlog.NewRow(username, botIndex, link, info, duration, err))
}

func (a *floatrigApp) sweepInspectLogs() {
	if err := a.logRepo.Cleanup(); err != nil {
		log.Printf("[main] inspect log sweep failed: %v", err)
	}
}

func (a *floatrigApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)

	go func() {
		log.Printf("[main] API server starting on %s:%d", a.envCfg.ListenAddress, a.envCfg.APIPort)
		if err := a.apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case serverErrCh <- fmt.Errorf("api server: %w", err):
			default:
			}
		}
	}()

	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("[main] received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("[main] received server runtime error (%v), shutting down...", err)
		return err
	}
}

func (a *floatrigApp) shutdown(ctx context.Context) {
	if err := a.apiSrv.Shutdown(ctx); err != nil {
		log.Printf("[main] API server shutdown error: %v", err)
	}
	log.Println("[main] API server stopped")

	sweepCtx := a.sweeper.Stop()
	<-sweepCtx.Done()
	log.Println("[main] log sweeper stopped")

	a.ctrl.Destroy()
	log.Println("[main] bot fleet destroyed")

	a.closePersistence()
	log.Println("[main] server stopped")
}

func (a *floatrigApp) closePersistence() {
	if a.logSvc != nil {
		a.logSvc.Stop()
	}
	if a.logRepo != nil {
		if err := a.logRepo.Close(); err != nil {
			log.Printf("[main] inspect log repo close error: %v", err)
		}
	}
	if a.stateDB != nil {
		if err := a.stateDB.Close(); err != nil {
			log.Printf("[main] state db close error: %v", err)
		}
	}
}
