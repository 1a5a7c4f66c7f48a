package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/brain"
	"github.com/sells-group/lead-triage/internal/categoryb"
	"github.com/sells-group/lead-triage/internal/cost"
	"github.com/sells-group/lead-triage/internal/dedup"
	"github.com/sells-group/lead-triage/internal/leadscorer"
	"github.com/sells-group/lead-triage/internal/messaging"
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/notify"
	"github.com/sells-group/lead-triage/internal/resilience"
	"github.com/sells-group/lead-triage/internal/scheduler"
	"github.com/sells-group/lead-triage/internal/status"
	"github.com/sells-group/lead-triage/internal/store"
	"github.com/sells-group/lead-triage/internal/triage"
	"github.com/sells-group/lead-triage/internal/vertical"
	anthropicpkg "github.com/sells-group/lead-triage/pkg/anthropic"
	"github.com/sells-group/lead-triage/pkg/heyreach"
	"github.com/sells-group/lead-triage/pkg/notion"
	"github.com/sells-group/lead-triage/pkg/qdrant"
	sfpkg "github.com/sells-group/lead-triage/pkg/salesforce"
)

// appEnv holds the store, library and pipelines shared by the commands.
type appEnv struct {
	Store     store.Store
	Library   *brain.Catalog
	Index     *vertical.Index
	Policy    *resilience.Policy
	Status    status.Updater
	Messenger messaging.Messenger
	Agent     *leadscorer.Agent
	Handler   *triage.Handler

	closers []func() error
}

// Close releases resources held by the environment in reverse order.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the environment for mode. The triage handler is only
// wired for modes that handle replies.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st, Policy: initPolicy()}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env.Library, err = initLibrary(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Index, err = vertical.Build(env.Library.Verticals())
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "build vertical index")
	}

	env.Status, err = initStatus(st, env.Policy)
	if err != nil {
		env.Close()
		return nil, err
	}

	hashes, err := initHashStore(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Agent = leadscorer.New(env.Index, env.Library,
		leadscorer.WithGuard(dedup.NewGuard(hashes, dedup.WithBudget(time.Duration(cfg.Scoring.DedupBudgetMS)*time.Millisecond))),
		leadscorer.WithResultStore(st),
		leadscorer.WithStatusUpdater(env.Status),
		leadscorer.WithThresholds(cfg.Scoring.Thresholds),
	)

	if mode == "score" {
		return env, nil
	}

	env.Messenger = initMessenger(env.Policy)
	env.Handler, err = buildHandler(ctx, env, mode)
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "lead-triage.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres")
		}
		pool := cfg.Store.Pool
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPolicy() *resilience.Policy {
	return resilience.NewPolicy(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.InitialBackoffMS)*time.Millisecond,
		time.Duration(cfg.Retry.MaxBackoffMS)*time.Millisecond,
		cfg.Circuit.FailureThreshold,
		time.Duration(cfg.Circuit.ResetTimeoutSecs)*time.Second,
	)
}

func initLibrary(ctx context.Context) (*brain.Catalog, error) {
	var src brain.Source
	switch {
	case cfg.Scoring.BrainsSource == "qdrant":
		c := qdrant.NewClient(cfg.Qdrant.URL,
			qdrant.WithAPIKey(cfg.Qdrant.Key),
			qdrant.WithRateLimit(cfg.Qdrant.RateLimit),
		)
		src = brain.QdrantSource{Client: c, Collections: cfg.Qdrant.Collections}
	case cfg.Scoring.BrainsPath != "":
		src = brain.FileSource{Path: cfg.Scoring.BrainsPath}
	default:
		src = brain.EmbeddedSource{}
	}

	cat, err := brain.Load(ctx, src, cfg.Scoring.DefaultVertical)
	if err != nil {
		return nil, eris.Wrap(err, "load brain library")
	}
	zap.L().Debug("brain library loaded", zap.Strings("brains", cat.IDs()))
	return cat, nil
}

// initHashStore prefers Redis for content hashes and falls back to the
// primary store.
func initHashStore(ctx context.Context, env *appEnv) (dedup.HashStore, error) {
	if cfg.Redis.URL == "" {
		return env.Store, nil
	}
	ttl := time.Duration(cfg.Redis.HashTTLDays) * 24 * time.Hour
	rs, err := dedup.NewRedisStoreFromURL(ctx, cfg.Redis.URL, ttl)
	if err != nil {
		return nil, eris.Wrap(err, "connect redis hash store")
	}
	env.closers = append(env.closers, rs.Close)
	return rs, nil
}

// initStatus writes statuses to the store and mirrors them to Notion and
// Salesforce when configured.
func initStatus(st store.Store, policy *resilience.Policy) (status.Updater, error) {
	primary := status.Named{Name: "store", Updater: status.NewStoreUpdater(st)}
	var mirrors []status.Named

	if cfg.Notion.Token != "" && cfg.Notion.LeadDB != "" {
		nc := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		mirrors = append(mirrors, status.Named{Name: "notion", Updater: status.NewNotionUpdater(nc, status.NotionConfig{
			DatabaseID:     cfg.Notion.LeadDB,
			LeadIDProperty: cfg.Notion.LeadIDProperty,
			CreateMissing:  cfg.Notion.CreateMissing,
		})})
	}

	if cfg.Salesforce.ClientID != "" {
		sf, err := initSalesforce()
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, status.Named{Name: "salesforce", Updater: status.NewSalesforceUpdater(sf, status.SalesforceConfig{
			ExternalIDField: cfg.Salesforce.ExternalIDField,
		})})
	}

	f := status.NewFanout(primary, policy, mirrors...)
	zap.L().Info("status targets", zap.Strings("targets", f.Targets()))
	return f, nil
}

func initSalesforce() (sfpkg.Client, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}
	return sfpkg.Connect(sfpkg.Credentials{
		LoginURL:    cfg.Salesforce.LoginURL,
		Username:    cfg.Salesforce.Username,
		ConsumerKey: cfg.Salesforce.ClientID,
		PrivateKey:  string(pemData),
	}, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit))
}

// initMessenger registers a sender per configured channel. Channels
// without credentials are left unregistered so sends on them fail and the
// reply falls back to human approval.
func initMessenger(policy *resilience.Policy) messaging.Messenger {
	if cfg.Triage.DryRun {
		zap.L().Warn("triage dry run: outbound messages are logged, not sent")
		return messaging.LogSender{}
	}

	r := messaging.NewRouter(policy)
	if cfg.SMTP.Host != "" {
		r.Register(model.ChannelEmail, messaging.NewEmailSender(messaging.SMTPConfig{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			FromEmail: cfg.SMTP.FromEmail,
			FromName:  cfg.SMTP.FromName,
			Timeout:   time.Duration(cfg.SMTP.TimeoutSecs) * time.Second,
		}))
	}
	if cfg.HeyReach.Key != "" {
		hr := heyreach.NewClient(cfg.HeyReach.Key,
			heyreach.WithBaseURL(cfg.HeyReach.BaseURL),
			heyreach.WithRateLimit(cfg.HeyReach.RateLimit),
		)
		r.Register(model.ChannelLinkedIn, messaging.NewLinkedInSender(hr))
	}
	if len(r.Channels()) == 0 {
		zap.L().Warn("no messaging channels configured; auto-responses will be queued for approval")
	}
	return r
}

func initClassifier(policy *resilience.Policy) triage.Classifier {
	useLLM := cfg.Triage.Classifier == "llm" ||
		(cfg.Triage.Classifier != "keyword" && cfg.Anthropic.Key != "")
	if !useLLM {
		zap.L().Info("using keyword reply classifier")
		return triage.KeywordClassifier{}
	}

	var opts []anthropicpkg.Option
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	return triage.NewLLMClassifier(anthropicpkg.NewClient(cfg.Anthropic.Key, opts...), triage.LLMConfig{
		Model:     cfg.Anthropic.Model,
		MaxTokens: int64(cfg.Anthropic.MaxTokens),
		Costs:     cost.NewTracker(cost.NewCalculator(cost.DefaultRates())),
	}, policy)
}

// initDispatcher picks inline or queued referral dispatch. Under serve the
// inline wait runs in the background on the server's context, so replies
// return immediately and referrals survive client disconnects.
func initDispatcher(ctx context.Context, env *appEnv, mode string) (categoryb.Dispatcher, error) {
	if cfg.Referral.DispatchMode != "queue" {
		inline := categoryb.NewInlineDispatcher(env.Messenger)
		if mode != "serve" {
			return inline, nil
		}
		bg := categoryb.NewBackgroundDispatcher(ctx, inline)
		env.closers = append(env.closers, func() error {
			bg.Wait()
			return nil
		})
		return bg, nil
	}
	c, err := scheduler.NewClient(schedulerConfig())
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, c.Close)
	return c, nil
}

func schedulerConfig() scheduler.Config {
	return scheduler.Config{
		RedisURL:    cfg.Redis.URL,
		TLSInsecure: cfg.Redis.TLSInsecure,
		Queue:       cfg.Referral.Queue,
		Concurrency: cfg.Referral.Concurrency,
		MaxRetry:    cfg.Referral.MaxRetry,
	}
}

func buildHandler(ctx context.Context, env *appEnv, mode string) (*triage.Handler, error) {
	dispatcher, err := initDispatcher(ctx, env, mode)
	if err != nil {
		return nil, err
	}
	workflow := categoryb.NewWorkflow(env.Status, dispatcher, env.Library, categoryb.Config{
		Delay:     cfg.Referral.Delay(),
		PainPoint: cfg.Referral.PainPoint,
		AutoSend:  cfg.Referral.AutoSend,
		Subject:   cfg.Referral.Subject,
		Template:  cfg.Referral.Template,
	})

	reviewer := notify.NewReviewer(env.Store,
		notify.NewWebhook(cfg.Review.ApprovalWebhookURL, notify.WithPolicy(env.Policy)),
		notify.NewWebhook(cfg.Review.EscalationWebhookURL, notify.WithPolicy(env.Policy)),
	)

	return triage.NewHandler(triage.Deps{
		Classifier: initClassifier(env.Policy),
		Router:     triage.NewRouter(cfg.Triage.RouterConfig),
		Library:    env.Library,
		Status:     env.Status,
		Messenger:  env.Messenger,
		Approvals:  reviewer,
		Escalator:  reviewer,
		CategoryB:  workflow,
		Leads:      env.Store,
		Replies:    env.Store,
		SenderName: cfg.Triage.SenderName,
	})
}
