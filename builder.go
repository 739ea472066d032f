package adminauth

import (
	"errors"

	"github.com/pquerna/otp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth/admin"
	internalaudit "github.com/MrEthical07/adminauth/internal/audit"
	"github.com/MrEthical07/adminauth/internal/flows"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/internal/stores"
	"github.com/MrEthical07/adminauth/internal/twofactor"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/permission"
)

// dummyPassword is hashed once at build time so unknown emails cost one
// verification, like known ones.
const dummyPassword = "adminauth-timing-equalizer"

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  admin.Store

	permissions []string
	roles       map[string][]string

	notifier  notify.Sender
	auditSink AuditSink
	clock     Clock
	logger    *zap.Logger

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used for login throttling, second-factor
// challenges, replay protection and, unless WithNotifier is used, the
// notification outbox.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore supplies the credential store, usually a *sqlstore.Store.
func (b *Builder) WithStore(store admin.Store) *Builder {
	b.store = store
	return b
}

// WithPermissions registers permissions beyond the built-in admin:* set.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

// WithRoles replaces the default role table.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

func (b *Builder) WithNotifier(sender notify.Sender) *Builder {
	b.notifier = sender
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every dependency.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- PERMISSION REGISTRY --------
	registry, err := permission.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	for _, p := range b.permissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	// -------- ROLE MANAGER --------
	roles := b.roles
	if len(roles) == 0 {
		roles = permission.DefaultRoles()
	}
	roleManager, err := permission.NewRoleManagerFrom(registry, roles)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}
	notifier := b.notifier
	if notifier == nil {
		notifier = notify.NewRedisSender(b.redis, cfg.Redis.NotifyStream, cfg.Redis.NotifyMaxLen)
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		store:       b.store,
		logger:      logger,
		clock:       clock,
		notifier:    notifier,
		registry:    registry,
		roleManager: roleManager,
	}

	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Login.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Login.MaxAttempts,
		LoginCooldownDuration: cfg.Login.Cooldown,
		MaxResetRequests:      cfg.PasswordReset.MaxRequests,
		ResetRequestWindow:    cfg.PasswordReset.RequestWindow,
	})
	engine.challenges = stores.NewLoginChallengeStore(b.redis, cfg.TOTP.RedisPrefix+":lc")
	engine.totpReplay = stores.NewTOTPReplayStore(b.redis, cfg.TOTP.RedisPrefix+":totp")
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink, logger.Named("audit"))
	engine.metrics = NewMetrics(cfg.Metrics)

	tf, err := twofactor.New(twofactor.Config{
		Issuer: cfg.TOTP.Issuer,
		Period: cfg.TOTP.Period,
		Digits: otp.Digits(cfg.TOTP.Digits),
		Skew:   cfg.TOTP.Skew,
	})
	if err != nil {
		return nil, err
	}
	engine.totp = tf

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MaxLength:   cfg.Password.Policy.MaxLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = ph
	if engine.dummyHash, err = ph.Hash(dummyPassword); err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		KeyID:         cfg.JWT.KeyID,
		Lifetime:      cfg.Session.Lifetime,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.flows = flows.New(engine.flowDeps())
	b.built = true

	return engine, nil
}
