package bootstrap

import (
	"context"
	"fmt"
	"time"

	"meeting-agent-be/internal/config"
	"meeting-agent-be/internal/handler"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/internal/repository/contract"
	"meeting-agent-be/internal/repository/implementation"
	"meeting-agent-be/internal/repository/memory"
	"meeting-agent-be/internal/service"
	"meeting-agent-be/internal/websocket"
	"meeting-agent-be/pkg/ai/pipeline"
	"meeting-agent-be/pkg/ai/router"
	"meeting-agent-be/pkg/artifact"
	"meeting-agent-be/pkg/contextdata"
	"meeting-agent-be/pkg/events"
	"meeting-agent-be/pkg/llm"
	"meeting-agent-be/pkg/llm/factory"
	pktNats "meeting-agent-be/pkg/nats"
	"meeting-agent-be/pkg/realtime"
	"meeting-agent-be/pkg/reference"
	"meeting-agent-be/pkg/vision"
	"meeting-agent-be/pkg/voice/tts"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger

	// In-process bus carrying transcripts and pipeline requests
	Bus *gochannel.GoChannel

	Hub        *websocket.Hub
	Voice      *realtime.Manager
	Router     *router.Router
	Dispatcher *pipeline.Dispatcher
	Reference  *reference.Cache

	// Background services (run by main)
	Sessions service.ISessionService
	Relay    *service.RelayService // nil without NATS

	SessionHandler  *handler.SessionHandler
	ArtifactHandler *handler.ArtifactHandler

	closers []func()
}

// NewContainer wires every component. db may be nil, in which case artifacts
// are kept in memory and the postgres reference source is unavailable.
func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Event bus
	// Blocking publish keeps each session's transcripts in order.
	c.Bus = gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = c.Bus.Close() })

	// 2. Infrastructure
	var publisher events.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOT", "NATS publisher unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOT", "Redis URL not parseable, using it as an address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			sysLogger.Warn("BOOT", "Redis unreachable, cluster broadcast disabled", map[string]interface{}{"error": err.Error()})
			_ = rdb.Close()
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
		cancel()
	}

	// 3. Repositories
	var artifactRepo contract.ArtifactRepository
	if db != nil {
		artifactRepo = implementation.NewArtifactRepository(db)
	} else {
		artifactRepo = memory.NewArtifactRepository(cfg.Session.ArtifactTTL)
	}
	history := memory.NewHistoryRepository(cfg.Assistant.HistoryLimit, time.Hour)

	refSource, err := newReferenceSource(cfg.Reference, db)
	if err != nil {
		return nil, err
	}
	c.Reference = reference.NewCache(refSource, cfg.Reference.RefreshInterval, sysLogger)

	// 4. Sessions and upstream voice
	c.Hub = websocket.NewHub(rdb, cfg.Session.SendBuffer, cfg.Session.SweepInterval, sysLogger)

	rc := cfg.Realtime
	c.Voice = realtime.NewManager(realtime.Config{
		URL:                 rc.URL,
		APIKey:              rc.APIKey,
		Voice:               rc.Voice,
		Instructions:        rc.Instructions,
		TranscriptionModel:  rc.TranscriptionModel,
		TranscriptionPrompt: rc.TranscriptionPrompt,
		VADThreshold:        rc.VADThreshold,
		PrefixPaddingMS:     rc.PrefixPaddingMS,
		SilenceDurationMS:   rc.SilenceDurationMS,
		SettleDelay:         rc.SettleDelay,
		SampleRate:          rc.SampleRate,
		DialTimeout:         rc.DialTimeout,
	}, realtime.WebsocketDialer{}, c.Hub, c.Bus, logger.NewIsolatedLogger(cfg.App.RealtimeLogPath))
	c.closers = append(c.closers, c.Voice.Shutdown)
	if !rc.Configured() {
		sysLogger.Warn("BOOT", "Realtime backend not configured, sessions will report a config error", nil)
	}

	// 5. Collaborators
	llmProvider, err := newLLMProvider(cfg.Assistant)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOT", "LLM provider ready", map[string]interface{}{"provider": cfg.Assistant.LLMProvider, "model": cfg.Assistant.LLMModel})

	cc := cfg.Collaborators
	httpClient := contextdata.NewHTTPClient(context.Background(), contextdata.Credentials{
		TokenURL:     cc.OAuthTokenURL,
		ClientID:     cc.OAuthClientID,
		ClientSecret: cc.OAuthSecret,
		Scopes:       cc.OAuthScopes,
	}, cc.FetchTimeout)
	sources := map[string]pipeline.ContextSource{
		router.SourceCalendar:  contextdata.NewCalendarSource(cc.CalendarURL, httpClient),
		router.SourceMessaging: contextdata.NewMessagingSource(cc.MessagingURL, httpClient),
	}
	visionClient := vision.NewClient(cc.VisionURL, cc.VisionAPIKey, cc.VisionModel)
	ttsClient := tts.NewClient(cc.TTSURL, cc.TTSAuthToken, cc.TTSVoice, rc.SampleRate)
	artifacts := artifact.NewService(artifactRepo, publisher, cfg.App.BaseURL, sysLogger)

	// 6. Pipelines
	primary := pipeline.NewPrimary(c.Voice, c.Hub, sysLogger)
	assistant := pipeline.NewAssistant(pipeline.AssistantDeps{
		LLM:       llmProvider,
		History:   history,
		Reference: c.Reference,
		Snapshots: c.Hub,
		Vision:    visionClient,
		Logger:    sysLogger,
	})
	c.Dispatcher = pipeline.NewDispatcher(map[pipeline.Kind]pipeline.Coordinator{
		pipeline.KindPrimary:    primary,
		pipeline.KindContextual: pipeline.NewContextual(c.Voice, c.Hub, sources, cc.FetchTimeout, sysLogger),
		pipeline.KindVision:     pipeline.NewVision(c.Voice, c.Hub, c.Hub, visionClient, primary, sysLogger),
		pipeline.KindAssistant:  pipeline.NewAssistantCoordinator(assistant, c.Hub, ttsClient, artifacts, sysLogger),
		pipeline.KindDocument:   pipeline.NewSilentDocument(c.Voice, c.Hub, pipeline.NewDocumentGenerator(llmProvider), c.Reference, artifacts, sysLogger),
	}, c.Hub, cfg.Assistant.Timeout, sysLogger)

	table, err := router.LoadPhraseTable(cfg.Triggers.PhrasesFile)
	if err != nil {
		return nil, err
	}
	classifier, err := router.NewClassifier(table)
	if err != nil {
		return nil, fmt.Errorf("trigger phrases: %w", err)
	}
	c.Router = router.NewRouter(classifier, c.Hub, c.Bus, sysLogger)

	// 7. Services and handlers
	c.Sessions = service.NewSessionService(c.Hub, c.Voice, c.Router, artifacts, history, publisher, rc.DialTimeout, sysLogger)
	if cfg.App.NatsURL != "" {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOT", "NATS subscriber unavailable, announcements disabled", map[string]interface{}{"error": err.Error()})
		} else {
			c.Relay = service.NewRelayService(natsSub, c.Hub, sysLogger)
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	c.SessionHandler = handler.NewSessionHandler(c.Hub, c.Sessions, cfg.App.JWTSecret, sysLogger)
	c.ArtifactHandler = handler.NewArtifactHandler(artifacts, cfg.App.JWTSecret, sysLogger)

	return c, nil
}

func newReferenceSource(cfg config.ReferenceConfig, db *gorm.DB) (reference.Source, error) {
	switch cfg.Source {
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("REFERENCE_SOURCE=http needs REFERENCE_URL")
		}
		return reference.NewHTTPSource(cfg.URL, cfg.Limit), nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("REFERENCE_SOURCE=postgres needs DB_CONNECTION_STRING")
		}
		return reference.NewRepositorySource(implementation.NewReferenceRepository(db), cfg.Limit), nil
	case "":
		return reference.StaticSource(nil), nil
	default:
		return nil, fmt.Errorf("unsupported reference source: %s", cfg.Source)
	}
}

func newLLMProvider(cfg config.AssistantConfig) (llm.LLMProvider, error) {
	p := factory.Params{Provider: cfg.LLMProvider, Model: cfg.LLMModel}
	switch cfg.LLMProvider {
	case "ollama":
		p.BaseURL = cfg.OllamaBaseURL
	case "anthropic":
		p.BaseURL, p.APIKey = cfg.AnthropicBaseURL, cfg.AnthropicAPIKey
	case "openai":
		p.BaseURL, p.APIKey = cfg.OpenAIBaseURL, cfg.OpenAIAPIKey
	}
	provider, err := factory.NewLLMProvider(p)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	return provider, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
