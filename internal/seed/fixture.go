package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed demo.yml
var demoFixture []byte

// Fixture is a hand-written set of accounts, their posts and who follows whom.
type Fixture struct {
	Password string        `yaml:"password"`
	Users    []FixtureUser `yaml:"users"`
	// Follows are [follower, following] username pairs.
	Follows [][2]string `yaml:"follows"`
}

// FixtureUser is one demo account.
type FixtureUser struct {
	Username string        `yaml:"username"`
	Email    string        `yaml:"email"`
	Gender   string        `yaml:"gender"`
	Bio      string        `yaml:"bio"`
	Posts    []FixturePost `yaml:"posts"`
}

// FixturePost is a post owned by a FixtureUser.
type FixturePost struct {
	Caption string `yaml:"caption"`
	Image   string `yaml:"image"`
}

// DemoFixture returns the built-in demo accounts.
func DemoFixture() (*Fixture, error) {
	return ParseFixture(demoFixture)
}

// LoadFixture reads a fixture file. An empty path means the built-in one.
func LoadFixture(path string) (*Fixture, error) {
	if path == "" {
		return DemoFixture()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes and checks a YAML fixture.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if f.Password == "" {
		return errors.New("fixture: password is required")
	}
	known := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if u.Username == "" || u.Email == "" {
			return fmt.Errorf("fixture: user %d needs a username and an email", i)
		}
		if known[u.Username] {
			return fmt.Errorf("fixture: duplicate username %q", u.Username)
		}
		known[u.Username] = true
		for j, p := range u.Posts {
			if strings.TrimSpace(p.Image) == "" {
				return fmt.Errorf("fixture: post %d of %q has no image", j, u.Username)
			}
		}
	}
	for _, pair := range f.Follows {
		if !known[pair[0]] || !known[pair[1]] {
			return fmt.Errorf("fixture: follow %s -> %s names an unknown user", pair[0], pair[1])
		}
		if pair[0] == pair[1] {
			return fmt.Errorf("fixture: %s cannot follow themselves", pair[0])
		}
	}
	return nil
}
