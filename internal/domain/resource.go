package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// imageNamePart matches one slash-separated component of an image name.
var imageNamePart = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

// Project is a buildable unit on the server.
type Project struct {
	ID                   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name                 string `json:"name" yaml:"name"`
	BuildContext         string `json:"build_context" yaml:"build_context"`
	DockerfilePath       string `json:"dockerfile_path" yaml:"dockerfile_path"`
	LocalImageName       string `json:"local_image_name,omitempty" yaml:"local_image_name,omitempty"`
	RepoImageName        string `json:"repo_image_name" yaml:"repo_image_name"`
	NoCache              bool   `json:"no_cache" yaml:"no_cache"`
	AutoCleanup          bool   `json:"auto_cleanup" yaml:"auto_cleanup"`
	Platforms            string `json:"platforms" yaml:"platforms"`
	RegistryID           string `json:"registry_id,omitempty" yaml:"registry_id,omitempty"`
	ProxyID              string `json:"proxy_id,omitempty" yaml:"proxy_id,omitempty"`
	BackupIgnorePatterns string `json:"backup_ignore_patterns,omitempty" yaml:"backup_ignore_patterns,omitempty"`
}

// Validate checks the image name rules the server enforces, so bad input is
// rejected before a round trip.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewDomainError("Project.Validate", ErrInvalidInput, "name is required")
	}
	if p.LocalImageName != "" && !imageNamePart.MatchString(p.LocalImageName) {
		return NewDomainError("Project.Validate", ErrInvalidInput,
			fmt.Sprintf("local image name %q must be lowercase letters, digits and ._- without slashes", p.LocalImageName))
	}
	for _, part := range strings.Split(p.RepoImageName, "/") {
		if !imageNamePart.MatchString(part) {
			return NewDomainError("Project.Validate", ErrInvalidInput,
				fmt.Sprintf("repo image name part %q must be lowercase letters, digits and ._-", part))
		}
	}
	return nil
}

// Credential is a registry login.
type Credential struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	RegistryURL string `json:"registry_url" yaml:"registry_url"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Proxy is an HTTP proxy used during builds.
type Proxy struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Registry is an image registry images are pushed to.
type Registry struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string `json:"name" yaml:"name"`
	URL          string `json:"url" yaml:"url"`
	IsHTTPS      bool   `json:"is_https" yaml:"is_https"`
	CredentialID string `json:"credential_id,omitempty" yaml:"credential_id,omitempty"`
}

// Collection names understood by the server.
const (
	CollectionProjects    = "projects"
	CollectionCredentials = "credentials"
	CollectionProxies     = "proxies"
	CollectionRegistries  = "registries"
)
