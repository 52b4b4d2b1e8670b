package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Account is one bot account from the accounts file.
type Account struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// AuthSecret is either a one-time guard code or a TOTP shared seed.
	AuthSecret string `yaml:"auth_secret,omitempty"`
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadAccounts reads and validates the YAML accounts file. Account order is
// preserved; it determines bot indices.
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse accounts file %s: %w", path, err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s defines no accounts", path)
	}

	seen := make(map[string]struct{}, len(f.Accounts))
	for i, acct := range f.Accounts {
		name := strings.TrimSpace(acct.Username)
		if name == "" {
			return nil, fmt.Errorf("accounts file %s: account %d has empty username", path, i)
		}
		if acct.Password == "" {
			return nil, fmt.Errorf("accounts file %s: account %q has empty password", path, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("accounts file %s: duplicate username %q", path, name)
		}
		seen[name] = struct{}{}
		f.Accounts[i].Username = name

		if IsWeakToken(acct.Password) {
			log.Printf("[config] account %q uses a weak password", name)
		}
	}
	return f.Accounts, nil
}
