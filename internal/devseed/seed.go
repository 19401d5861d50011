// Package devseed loads fixture data for the fake Kra API. Seed files are
// YAML; JSON documents are accepted too since YAML is a superset of JSON.
package devseed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is the content of a seed file.
type Seed struct {
	Users   []User   `yaml:"users" json:"users"`
	Objects []Object `yaml:"objects" json:"objects"`
}

// User is an account known to the fake API.
type User struct {
	Username        string `yaml:"username" json:"username"`
	Password        string `yaml:"password" json:"password"`
	Email           string `yaml:"email" json:"email"`
	DaysLeft        *int   `yaml:"days_left" json:"days_left"`
	ObjectQuota     int64  `yaml:"object_quota" json:"object_quota"`
	BytesQuota      int64  `yaml:"bytes_quota" json:"bytes_quota"`
	Mailing         bool   `yaml:"mailing" json:"mailing"`
	SubscribedUntil string `yaml:"subscribed_until" json:"subscribed_until"`
}

// Object is a file or folder owned by a seeded user. Parent refers to the
// ident of another seeded folder; empty means the root.
type Object struct {
	Ident    string `yaml:"ident" json:"ident"`
	Owner    string `yaml:"owner" json:"owner"`
	Name     string `yaml:"name" json:"name"`
	Parent   string `yaml:"parent" json:"parent"`
	Size     int64  `yaml:"size" json:"size"`
	Folder   bool   `yaml:"folder" json:"folder"`
	Shared   bool   `yaml:"shared" json:"shared"`
	Password bool   `yaml:"password" json:"password"`
	Created  string `yaml:"created" json:"created"`
}

// Load reads and validates a seed file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	seed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("devseed: %s: %w", path, err)
	}
	return seed, nil
}

// Parse decodes and validates seed content.
func Parse(data []byte) (*Seed, error) {
	seed := &Seed{}
	if len(bytes.TrimSpace(data)) == 0 {
		return seed, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return seed, nil
}

// Validate checks that users are unique and every object has an owner,
// a name and a known parent folder.
func (s *Seed) Validate() error {
	users := make(map[string]struct{}, len(s.Users))
	for i, u := range s.Users {
		if strings.TrimSpace(u.Username) == "" {
			return fmt.Errorf("user %d: username is required", i)
		}
		if _, dup := users[u.Username]; dup {
			return fmt.Errorf("user %q declared twice", u.Username)
		}
		users[u.Username] = struct{}{}
	}

	folders := make(map[string]bool, len(s.Objects))
	for _, o := range s.Objects {
		if o.Ident != "" {
			folders[o.Ident] = o.Folder
		}
	}
	for i, o := range s.Objects {
		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("object %d: name is required", i)
		}
		if _, ok := users[o.Owner]; !ok {
			return fmt.Errorf("object %q: unknown owner %q", o.Name, o.Owner)
		}
		if o.Parent != "" {
			isFolder, ok := folders[o.Parent]
			if !ok {
				return fmt.Errorf("object %q: unknown parent %q", o.Name, o.Parent)
			}
			if !isFolder {
				return fmt.Errorf("object %q: parent %q is not a folder", o.Name, o.Parent)
			}
		}
	}
	return nil
}
