package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/logging"
	"github.com/octobees/provider-directory/internal/repository"
	"github.com/octobees/provider-directory/internal/upstream"
)

//go:embed seed.yaml
var embeddedSeed []byte

// Source produces the full provider list for a new snapshot.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]entity.Provider, error)
}

// seedFile is the YAML layout shared by the embedded seed and CATALOG_FILE.
type seedFile struct {
	Providers []entity.Provider `yaml:"providers"`
}

// DecodeSeed parses a YAML seed document. Unknown keys are rejected.
func DecodeSeed(r io.Reader) ([]entity.Provider, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed seedFile
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return []entity.Provider{}, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if seed.Providers == nil {
		return []entity.Provider{}, nil
	}
	return seed.Providers, nil
}

// LoadSeedFile reads and decodes a seed file from disk.
func LoadSeedFile(path string) ([]entity.Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	return DecodeSeed(f)
}

// StaticSource serves providers from a YAML file, or the embedded seed when no path is set.
type StaticSource struct {
	path string
}

// NewStaticSource returns a source reading path; an empty path selects the embedded seed.
func NewStaticSource(path string) *StaticSource {
	return &StaticSource{path: path}
}

func (s *StaticSource) Name() string {
	if s.path == "" {
		return "static:embedded"
	}
	return "static:" + s.path
}

func (s *StaticSource) Load(ctx context.Context) ([]entity.Provider, error) {
	if s.path == "" {
		return DecodeSeed(bytes.NewReader(embeddedSeed))
	}
	return LoadSeedFile(s.path)
}

// RepositorySource reads providers from Postgres.
type RepositorySource struct {
	repo repository.ProvidersRepository
}

func NewRepositorySource(repo repository.ProvidersRepository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

func (s *RepositorySource) Name() string { return "postgres" }

func (s *RepositorySource) Load(ctx context.Context) ([]entity.Provider, error) {
	providers, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return providers, nil
}

// UpstreamSource reads providers from the remote directory backend.
type UpstreamSource struct {
	client upstream.ProviderLister
}

func NewUpstreamSource(client upstream.ProviderLister) *UpstreamSource {
	return &UpstreamSource{client: client}
}

func (s *UpstreamSource) Name() string { return "upstream" }

func (s *UpstreamSource) Load(ctx context.Context) ([]entity.Provider, error) {
	providers, err := s.client.ListProviders(ctx, logging.RequestID(ctx))
	if err != nil {
		if errors.Is(err, upstream.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	return providers, nil
}
