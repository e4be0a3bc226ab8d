package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"gmo-trading-bot/config"
)

// Credentials is the exchange credential pair stored in Vault.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// Client wraps the HashiCorp Vault client. The bot is single-operator,
// so exactly one credential pair lives at the configured secret path.
type Client struct {
	client *api.Client
	config config.VaultConfig
}

// NewClient creates a new Vault client. With Vault disabled the client
// is inert and LoadCredentials reports not-found; callers fall back to
// environment credentials.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// Enabled reports whether Vault lookups are active.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// secretPath builds the KV v2 data path.
func (c *Client) secretPath() string {
	return fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
}

// LoadCredentials reads the exchange credentials from Vault.
func (c *Client) LoadCredentials(ctx context.Context) (*Credentials, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials not found at %s", c.secretPath())
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &Credentials{
		APIKey:    getString(data, "api_key"),
		APISecret: getString(data, "api_secret"),
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("incomplete credentials at %s", c.secretPath())
	}

	return creds, nil
}

// StoreCredentials writes the exchange credentials to Vault.
func (c *Client) StoreCredentials(ctx context.Context, creds Credentials) error {
	if !c.config.Enabled {
		return fmt.Errorf("vault is disabled")
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    creds.APIKey,
			"api_secret": creds.APISecret,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(), secretData)
	if err != nil {
		return fmt.Errorf("failed to store credentials in vault: %w", err)
	}

	return nil
}

// HealthCheck verifies the Vault connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%v sealed=%v", health.Initialized, health.Sealed)
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
