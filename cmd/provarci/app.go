// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/config"
	"github.com/provar-ci/provar-ci/internal/secret"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and reaches configuration and agents through it.
	App struct {
		Config ConfigProvider
		Agents AgentProvider
		// Environ is the controller environment. Defaults to os.Environ.
		Environ func() []string
		stdout  io.Writer
		stderr  io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  ConfigProvider
		Agents  AgentProvider
		Environ func() []string
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		LoadWithPath(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// AgentProvider opens the agent a build runs through. The returned
	// closer releases the connection and is never nil.
	AgentProvider interface {
		Open(ctx context.Context, req AgentRequest) (agent.Agent, io.Closer, error)
	}

	// AgentRequest selects the execution node.
	AgentRequest struct {
		// Address of a remote agent server. Empty runs on this host.
		Address string
		// Node is the node name; its configured tool locations apply to a
		// local agent.
		Node string
		Cfg  *config.Config
	}

	defaultAgents struct {
		environ func() []string
	}

	nopCloser struct{}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ
	}
	if deps.Agents == nil {
		deps.Agents = &defaultAgents{environ: deps.Environ}
	}
	return &App{
		Config:  deps.Config,
		Agents:  deps.Agents,
		Environ: deps.Environ,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
}

// loadConfig loads the configuration named by --config, or the default file.
func (a *App) loadConfig(ctx context.Context, path string) (*config.Config, string, error) {
	return a.Config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: path})
}

// logger returns a diagnostics logger writing to stderr.
func (a *App) logger(prefix string, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: prefix, Level: level})
}

func (nopCloser) Close() error { return nil }

// Open dials the agent server when an address is set and otherwise returns
// an agent for this host.
func (d *defaultAgents) Open(ctx context.Context, req AgentRequest) (agent.Agent, io.Closer, error) {
	cfg := req.Cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if req.Address == "" {
		local := &agent.Local{Name: req.Node, Environ: d.environ}
		if n, ok := cfg.Node(req.Node); ok {
			local.ToolLocations = n.ToolLocations
		}
		return local, nopCloser{}, nil
	}

	tokenEnv := cfg.Agent.TokenEnv
	if tokenEnv == "" {
		tokenEnv = config.DefaultTokenEnv
	}
	timeout := time.Duration(cfg.Agent.DialTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultDialTimeoutSeconds * time.Second
	}
	client, err := agent.DialSSH(ctx, agent.SSHConfig{
		Address:     req.Address,
		Token:       secret.FromEnv(tokenEnv),
		HostKey:     cfg.Agent.HostKey,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to agent %s: %w", req.Address, err)
	}
	return client, client, nil
}
