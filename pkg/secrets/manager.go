package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/pkg/logger"
)

// ProviderType enumerates supported secret backends.
type ProviderType string

const (
	ProviderNone  ProviderType = ""
	ProviderVault ProviderType = "vault"
)

// SecretType captures the semantic classification of a secret.
type SecretType string

const (
	SecretDatabase SecretType = "database_credentials"
	SecretJWTKeys  SecretType = "jwt_signing_keys"
	SecretLLM      SecretType = "llm_api_key"
	SecretSlack    SecretType = "slack_webhook"
	SecretTwilio   SecretType = "twilio_credentials"
	SecretCustom   SecretType = "custom"
)

var (
	// ErrProviderNotConfigured is returned when no provider is configured.
	ErrProviderNotConfigured = errors.New("secrets: provider not configured")
	// ErrInvalidReference indicates an invalid or empty reference string.
	ErrInvalidReference = errors.New("secrets: invalid reference")
	// ErrKeyNotFound is returned when a requested key does not exist in the secret payload.
	ErrKeyNotFound = errors.New("secrets: key not found")
)

// Reference describes the logical location of a secret within a provider.
type Reference struct {
	// Name is an internal identifier used for logging/auditing.
	Name string
	// Path is the provider-specific path where the secret is stored.
	Path string
	// Mount optionally overrides the mount path.
	Mount string
	// Key optionally targets a single entry within the secret.
	Key string
	// Type classifies the secret for auditing.
	Type SecretType
}

// CacheKey returns the cache identifier for the reference.
func (r Reference) CacheKey() string {
	sb := strings.Builder{}
	if r.Mount != "" {
		sb.WriteString(r.Mount)
		sb.WriteString("|")
	}
	sb.WriteString(r.Path)
	if r.Key != "" {
		sb.WriteString("#")
		sb.WriteString(r.Key)
	}
	return sb.String()
}

// ParseReference converts a raw reference string into a Reference structure.
// Supported syntax: [mount::]path[#key]
func ParseReference(name string, secretType SecretType, raw string) (Reference, error) {
	ref := Reference{Name: name, Type: secretType}

	clean := strings.TrimSpace(raw)
	if clean == "" {
		return ref, ErrInvalidReference
	}

	if idx := strings.Index(clean, "#"); idx >= 0 {
		ref.Key = strings.TrimSpace(clean[idx+1:])
		clean = strings.TrimSpace(clean[:idx])
	}

	if idx := strings.Index(clean, "::"); idx >= 0 {
		ref.Mount = strings.Trim(clean[:idx], "/")
		clean = clean[idx+2:]
	}

	ref.Path = strings.Trim(clean, "/")
	if ref.Path == "" {
		return ref, ErrInvalidReference
	}

	return ref, nil
}

// Secret represents a resolved secret payload.
type Secret struct {
	Data        map[string]string
	Version     string
	RetrievedAt time.Time
}

// Value returns a single entry from the secret payload.
func (s Secret) Value(key string) (string, bool) {
	if s.Data == nil {
		return "", false
	}
	val, ok := s.Data[key]
	return val, ok && val != ""
}

// Config represents the runtime configuration for a Manager instance.
type Config struct {
	Provider     ProviderType
	CacheTTL     time.Duration
	AuditEnabled bool
	Vault        VaultConfig
}

// Manager resolves secrets from the configured backend with caching and auditing.
type Manager interface {
	GetSecret(ctx context.Context, ref Reference) (Secret, error)
	GetString(ctx context.Context, ref Reference) (string, error)
	Close() error
}

type provider interface {
	Name() ProviderType
	Fetch(ctx context.Context, ref Reference) (Secret, error)
	Close() error
}

type manager struct {
	provider     provider
	cacheTTL     time.Duration
	auditEnabled bool

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	secret    Secret
	expiresAt time.Time
}

// NewManager creates a new Manager for the specified provider configuration.
func NewManager(cfg Config) (Manager, error) {
	if cfg.Provider == ProviderNone {
		return nil, ErrProviderNotConfigured
	}

	var prov provider
	var err error

	switch cfg.Provider {
	case ProviderVault:
		prov, err = newVaultProvider(cfg.Vault)
	default:
		err = fmt.Errorf("secrets: unsupported provider %q", cfg.Provider)
	}

	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &manager{
		provider:     prov,
		cacheTTL:     cfg.CacheTTL,
		auditEnabled: cfg.AuditEnabled,
		cache:        make(map[string]cachedSecret),
	}, nil
}

func (m *manager) Close() error {
	if m.provider != nil {
		return m.provider.Close()
	}
	return nil
}

// GetSecret resolves the full secret payload for the provided reference.
func (m *manager) GetSecret(ctx context.Context, ref Reference) (Secret, error) {
	if ref.Path == "" {
		return Secret{}, ErrInvalidReference
	}

	if secret, ok := m.loadFromCache(ref); ok {
		return secret, nil
	}

	secret, err := m.provider.Fetch(ctx, ref)
	if err != nil {
		m.audit(ref, Secret{}, err)
		return Secret{}, err
	}

	secret.RetrievedAt = time.Now().UTC()
	m.saveToCache(ref, secret)
	m.audit(ref, secret, nil)

	return secret, nil
}

// GetString returns a single value from the referenced secret.
func (m *manager) GetString(ctx context.Context, ref Reference) (string, error) {
	if ref.Key == "" {
		return "", fmt.Errorf("%w: empty key in reference %q", ErrKeyNotFound, ref.Name)
	}

	secret, err := m.GetSecret(ctx, ref)
	if err != nil {
		return "", err
	}

	if value, ok := secret.Value(ref.Key); ok {
		return value, nil
	}

	return "", fmt.Errorf("%w: %s", ErrKeyNotFound, ref.Key)
}

func (m *manager) loadFromCache(ref Reference) (Secret, bool) {
	m.mu.RLock()
	entry, ok := m.cache[ref.CacheKey()]
	m.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Secret{}, false
	}
	return cloneSecret(entry.secret), true
}

func (m *manager) saveToCache(ref Reference, secret Secret) {
	if m.cacheTTL <= 0 {
		return
	}
	m.mu.Lock()
	m.cache[ref.CacheKey()] = cachedSecret{
		secret:    cloneSecret(secret),
		expiresAt: time.Now().Add(m.cacheTTL),
	}
	m.mu.Unlock()
}

func (m *manager) audit(ref Reference, secret Secret, err error) {
	if !m.auditEnabled {
		return
	}

	fields := []zap.Field{
		zap.String("secret_name", ref.Name),
		zap.String("secret_path", ref.Path),
		zap.String("secret_type", string(ref.Type)),
		zap.String("provider", string(m.provider.Name())),
	}

	if secret.Version != "" {
		fields = append(fields, zap.String("version", secret.Version))
	}

	if err != nil {
		logger.Warn("secret fetch failed", append(fields, zap.Error(err))...)
		return
	}

	logger.Info("secret fetched", fields...)
}

func cloneSecret(src Secret) Secret {
	dst := Secret{
		Data:        make(map[string]string, len(src.Data)),
		Version:     src.Version,
		RetrievedAt: src.RetrievedAt,
	}

	for k, v := range src.Data {
		dst.Data[k] = v
	}

	return dst
}
