package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
)

// InitAuthKeys builds the KeyManager.
//
// With a SigningKeys store the keys are loaded from the database, encrypted
// with AUTH_KEY_ENCRYPTION_KEY, and survive restarts. Without one (the
// memory driver) fresh keys are generated and every token issued before the
// start stops verifying.
func InitAuthKeys(ctx context.Context, cfg Config, keys store.SigningKeys, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		NumKeys:   cfg.NumKeys,
	}

	if keys == nil {
		logger.Info("initializing ephemeral key manager",
			"algorithm", cfg.Algorithm,
			"num_keys", cfg.NumKeys,
		)

		keyManager, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}

		logger.Info("generated ephemeral signing keys",
			"algorithm", keyManager.Algorithm(),
			"num_keys", keyManager.NumSigners(),
			"issuer", cfg.Issuer,
		)
		logger.Warn("tokens issued before this start no longer verify")
		return keyManager, nil
	}

	encrypter, err := cryptox.NewKeyEncrypter([]byte(cfg.KeyEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key encryption: %w", err)
	}

	logger.Info("initializing persistent key manager",
		"algorithm", cfg.Algorithm,
		"num_keys", cfg.NumKeys,
		"grace_period", cfg.RefreshTTL,
	)

	keyManager, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
		KeyManagerOptions: opts,
		Store:             store.NewKeyStoreAdapter(keys),
		Encrypter:         encrypter,
		GracePeriod:       cfg.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
	}

	logger.Info("persistent signing keys loaded",
		"algorithm", keyManager.Algorithm(),
		"num_keys", keyManager.NumSigners(),
		"retired_keys", len(keyManager.Retired()),
		"issuer", cfg.Issuer,
	)
	return keyManager, nil
}
