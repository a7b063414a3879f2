package configuration

import (
	"Arcana/internal/api"
	"Arcana/internal/handler"
	"Arcana/internal/hub"
	"Arcana/internal/notify"
	"Arcana/internal/transport"
	"time"

	"go.uber.org/zap"
)

type Container struct {
	Manager        *hub.Manager
	Conn           *transport.Conn
	Notifier       *notify.Dispatcher
	MonitorHandler handler.MonitorHandler
	Config         Config
	Logger         *zap.Logger
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	notifier := notify.NewDispatcher(notify.Options{
		Enabled:      config.Notifications.Enabled,
		SoundEnabled: config.Notifications.Sounds,
	}, logger)

	apiClient := api.NewClient(config.Chat.APIBaseURL, config.Credential, logger)

	manager := hub.NewManager(hub.Config{
		UserID: config.Chat.UserID,
		Role:   config.Chat.Role,
	}, apiClient, notifier, logger)

	conn := transport.NewConn(transport.Options{
		URL:                   config.Chat.SocketURL,
		Credential:            config.Credential,
		MaxReconnectAttempts:  config.Reconnect.MaxAttempts,
		ReconnectInitialDelay: time.Duration(config.Reconnect.InitialDelayMs) * time.Millisecond,
		ReconnectMaxDelay:     time.Duration(config.Reconnect.MaxDelayMs) * time.Millisecond,
	}, manager.TransportHandlers(), logger)
	manager.AttachTransport(conn)

	monitorService := hub.NewMonitorService(manager, notifier)
	monitorHandler := handler.NewMonitorHandler(monitorService)

	return &Container{
		Manager:        manager,
		Conn:           conn,
		Notifier:       notifier,
		MonitorHandler: monitorHandler,
		Config:         *config,
		Logger:         logger,
	}, nil
}

// Close gracefully shuts the core down.
func (c *Container) Close() error {
	if c.Manager != nil {
		c.Manager.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return nil
}
