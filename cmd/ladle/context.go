package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"ladle/internal/apiclient"
	"ladle/internal/config"
)

type commandContext struct {
	serverFlag    *string
	configFlag    *string
	userFlag      *string
	anonymousFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, configFlag, userFlag, anonymousFlag *string) *commandContext {
	return &commandContext{
		serverFlag:    serverFlag,
		configFlag:    configFlag,
		userFlag:      userFlag,
		anonymousFlag: anonymousFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// serverURL resolves the API base URL: the --server flag when given,
// otherwise the configured api_bind.
func (c *commandContext) serverURL() (string, error) {
	if c.serverFlag != nil {
		if server := strings.TrimSpace(*c.serverFlag); server != "" {
			if !strings.Contains(server, "://") {
				server = "http://" + server
			}
			return server, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := cfg.Paths.APIBind
	// A wildcard bind is not dialable; point the client at loopback.
	if host, port, splitErr := net.SplitHostPort(bind); splitErr == nil {
		if host == "" || host == "0.0.0.0" || host == "::" {
			bind = net.JoinHostPort("127.0.0.1", port)
		}
	}
	return "http://" + bind, nil
}

// identity resolves who the CLI acts as. The --user flag wins; otherwise
// an anonymous id is used, persisted per machine so repeat invocations
// see the same collection. Mirrors how the web client keeps its
// anonymous id in browser storage.
func (c *commandContext) identity() (userID, anonymousID string, err error) {
	if c.userFlag != nil {
		if user := strings.TrimSpace(*c.userFlag); user != "" {
			return user, "", nil
		}
	}
	if c.anonymousFlag != nil {
		if anon := strings.TrimSpace(*c.anonymousFlag); anon != "" {
			return "", anon, nil
		}
	}
	anon, err := c.persistentAnonymousID()
	if err != nil {
		return "", "", err
	}
	return "", anon, nil
}

func (c *commandContext) persistentAnonymousID() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	path := filepath.Join(cfg.Paths.DataDir, "anonymous_id")

	raw, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read anonymous id: %w", err)
	}

	id := "anon-" + uuid.NewString()
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist anonymous id: %w", err)
	}
	return id, nil
}

func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	server, err := c.serverURL()
	if err != nil {
		return err
	}
	userID, anonymousID, err := c.identity()
	if err != nil {
		return err
	}

	// Processing a URL blocks on fetch, structuring, and narration, so the
	// request timeout is far above the client default.
	opts := []apiclient.Option{
		apiclient.WithIdentity(userID, anonymousID),
		apiclient.WithTimeout(10 * time.Minute),
	}
	if cfg, cfgErr := c.ensureConfig(); cfgErr == nil && cfg.Paths.APIToken != "" {
		opts = append(opts, apiclient.WithToken(cfg.Paths.APIToken))
	}
	client := apiclient.New(server, opts...)

	if err := fn(client); err != nil {
		return wrapRequestError(err, server)
	}
	return nil
}

func wrapRequestError(err error, server string) error {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) && sysErr == syscall.ECONNREFUSED {
		return fmt.Errorf("connect to daemon at %s: connection refused; start it with `ladled`", server)
	}
	return err
}
