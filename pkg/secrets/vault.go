package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig stores the configuration required for HashiCorp Vault.
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
	MountPath string
}

type vaultProvider struct {
	client       *vault.Client
	defaultMount string
}

func newVaultProvider(cfg VaultConfig) (provider, error) {
	if cfg.Address == "" || cfg.Token == "" {
		return nil, fmt.Errorf("secrets: vault provider requires address and token")
	}

	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}

	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.Address

	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &vaultProvider{
		client:       client,
		defaultMount: strings.Trim(cfg.MountPath, "/"),
	}, nil
}

func (v *vaultProvider) Name() ProviderType {
	return ProviderVault
}

func (v *vaultProvider) Close() error {
	// Vault client does not expose a close operation.
	return nil
}

func (v *vaultProvider) Fetch(ctx context.Context, ref Reference) (Secret, error) {
	mount := v.defaultMount
	if ref.Mount != "" {
		mount = ref.Mount
	}

	path := strings.Trim(ref.Path, "/")
	if mount == "" || path == "" {
		return Secret{}, ErrInvalidReference
	}

	secret, err := v.client.KVv2(mount).Get(ctx, path)
	if err != nil {
		var respErr *vault.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return Secret{}, fmt.Errorf("secrets: vault path %s not found", ref.Path)
		}
		return Secret{}, err
	}

	payload := make(map[string]string, len(secret.Data))
	for k, raw := range secret.Data {
		payload[k] = fmt.Sprint(raw)
	}

	result := Secret{Data: payload}
	if secret.VersionMetadata != nil {
		result.Version = fmt.Sprintf("%d", secret.VersionMetadata.Version)
	}

	return result, nil
}
