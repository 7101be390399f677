package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenFile is the bearer token file name inside the data directory.
const TokenFile = "token"

// TokenPath returns where the generated bearer token is stored.
func TokenPath(cfg Config) string {
	return filepath.Join(cfg.Storage.DataDir, TokenFile)
}

// GetAPIToken returns the bearer token for the local API. server.token wins
// when set; otherwise the token file is read, and created with a fresh
// random token if it does not exist yet.
func GetAPIToken(cfg Config) (string, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, nil
	}

	path := TokenPath(cfg)
	data, err := os.ReadFile(path)
	if err == nil {
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading token file: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	tok := hex.EncodeToString(buf)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(tok+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing token file: %w", err)
	}
	return tok, nil
}

// ReadAPIToken is GetAPIToken without creation, for CLI clients talking to
// an already running daemon.
func ReadAPIToken(cfg Config) (string, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, nil
	}
	data, err := os.ReadFile(TokenPath(cfg))
	if err != nil {
		return "", fmt.Errorf("reading token file (is the daemon initialized?): %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
