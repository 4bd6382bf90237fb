package mcpserver

import (
	"encoding/json"
	"strings"
)

const (
	serverSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"

	// DefaultImage is the container image published for each release.
	DefaultImage = "ghcr.io/panbanda/prism"
)

// ServerEntry is prism's entry in the MCP server registry (server.json).
type ServerEntry struct {
	Schema      string       `json:"$schema"`
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Version     string       `json:"version"`
	Repository  Repository   `json:"repository"`
	Packages    []OCIPackage `json:"packages"`
}

// Repository is where the source lives.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// OCIPackage runs `prism mcp` from the container image over stdio.
type OCIPackage struct {
	RegistryType         string            `json:"registryType"`
	Identifier           string            `json:"identifier"`
	RuntimeHint          string            `json:"runtimeHint"`
	PackageArguments     []PackageArgument `json:"packageArguments"`
	EnvironmentVariables []EnvVar          `json:"environmentVariables"`
	Transport            Transport         `json:"transport"`
}

// PackageArgument is a positional argument passed to the image entrypoint.
type PackageArgument struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EnvVar is an environment variable the server reads.
type EnvVar struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

// Transport names the protocol transport.
type Transport struct {
	Type string `json:"type"`
}

type manifestOptions struct {
	image string
}

// ManifestOption configures BuildManifest.
type ManifestOption func(*manifestOptions)

// WithImage points the entry at another container image (without tag).
func WithImage(image string) ManifestOption {
	return func(o *manifestOptions) {
		if image != "" {
			o.image = image
		}
	}
}

// BuildManifest returns the registry entry for a release. A leading "v" is
// dropped from version; development builds are published as 0.0.0.
func BuildManifest(version string, opts ...ManifestOption) ServerEntry {
	o := manifestOptions{image: DefaultImage}
	for _, opt := range opts {
		opt(&o)
	}

	version = strings.TrimPrefix(version, "v")
	if version == "" || version == "dev" {
		version = "0.0.0"
	}

	return ServerEntry{
		Schema:      serverSchema,
		Name:        "io.github.panbanda/prism",
		Title:       "prism",
		Description: "Static analysis for Python, HTML, CSS and JavaScript with per-file issue summaries",
		Version:     version,
		Repository:  Repository{URL: "https://github.com/panbanda/prism", Source: "github"},
		Packages: []OCIPackage{{
			RegistryType:     "oci",
			Identifier:       o.image + ":" + version,
			RuntimeHint:      "docker",
			PackageArguments: []PackageArgument{{Type: "positional", Value: "mcp"}},
			EnvironmentVariables: []EnvVar{{
				Name:        "PRISM_CONFIG",
				Description: "Path of a prism.toml, prism.yaml or prism.json file inside the container",
			}},
			Transport: Transport{Type: "stdio"},
		}},
	}
}

// GenerateManifest renders BuildManifest as indented JSON.
func GenerateManifest(version string, opts ...ManifestOption) ([]byte, error) {
	return json.MarshalIndent(BuildManifest(version, opts...), "", "  ")
}
