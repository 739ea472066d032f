package adminauth

import (
	"time"

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

// Engine runs the login state machine, validates sessions, manages reset
// tokens and drives the approval pipeline. It is safe for concurrent use.
type Engine struct {
	config      Config
	store       admin.Store
	logger      *zap.Logger
	clock       Clock
	notifier    notify.Sender
	registry    *permission.Registry
	roleManager *permission.RoleManager
	rateLimiter *rate.Limiter
	challenges  *stores.LoginChallengeStore
	totpReplay  *stores.TOTPReplayStore
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	hasher      *password.Hasher
	dummyHash   string
	totp        *twofactor.Manager
	jwtManager  *jwt.Manager
	flows       flows.Service
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// HasPermission reports whether role grants perm.
func (e *Engine) HasPermission(role, perm string) bool {
	if e == nil || e.roleManager == nil {
		return false
	}
	return e.roleManager.Has(role, perm)
}

// RolePermissions lists the permissions role grants, sorted.
func (e *Engine) RolePermissions(role string) []string {
	if e == nil || e.roleManager == nil {
		return nil
	}
	return e.roleManager.Permissions(role)
}

// HashPassword hashes with the engine's argon2id parameters. It is exposed
// for bootstrap tooling that writes users directly.
func (e *Engine) HashPassword(pw string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	if err := e.config.Password.Policy.Check(pw); err != nil {
		return "", err
	}
	return e.hasher.Hash(pw)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock.Now()
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}
