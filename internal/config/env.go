package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Env is the process environment of one invocation
type Env struct {
	Token         string `env:"GITHUB_TOKEN"`
	Repository    string `env:"GITHUB_REPOSITORY"`
	IssueNumber   int    `env:"ISSUE_NUMBER"`
	Owner         string `env:"REPOSITORY_OWNER"`
	Workdir       string `env:"CHESSBOT_WORKDIR" envDefault:"."`
	WebhookSecret string `env:"CHESSBOT_WEBHOOK_SECRET"`
	APIURL        string `env:"CHESSBOT_API_URL" envDefault:"https://api.github.com"`
}

// LoadEnv parses the environment
func LoadEnv() (Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// OwnerIdentity returns the owner as an "@" handle. An explicit owner wins;
// otherwise the owner part of the repository slug is used.
func (e Env) OwnerIdentity() string {
	owner := e.Owner
	if owner == "" {
		owner, _, _ = strings.Cut(e.Repository, "/")
	}
	return Identity(owner)
}

// Identity normalizes a login to its "@" handle form
func Identity(login string) string {
	login = strings.TrimSpace(login)
	if login == "" || strings.HasPrefix(login, "@") {
		return login
	}
	return "@" + login
}
