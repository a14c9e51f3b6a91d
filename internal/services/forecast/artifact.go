package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"CropCast/internal/domain/models"
)

// Default artifact naming.
const (
	DefaultPrefix = "prophet_model_"
	DefaultSuffix = ".json"
)

var ErrBadName = errors.New("artifact name does not encode a series key")

// Naming is the file name scheme prefix + underscore-joined key + suffix.
type Naming struct {
	Prefix string
	Suffix string
}

func DefaultNaming() Naming {
	return Naming{Prefix: DefaultPrefix, Suffix: DefaultSuffix}
}

// Match reports whether name carries the prefix and suffix.
func (n Naming) Match(name string) bool {
	return strings.HasPrefix(name, n.Prefix) && strings.HasSuffix(name, n.Suffix) &&
		len(name) > len(n.Prefix)+len(n.Suffix)
}

// Encode builds the artifact file name of key. Components are joined with
// underscores and only the state has its spaces turned into underscores, so
// multi-word commodities, districts and markets keep their spaces.
func (n Naming) Encode(key models.SeriesKey) string {
	parts := []string{key.Commodity, strings.ReplaceAll(key.State, " ", "_"), key.District, key.Market}
	return n.Prefix + strings.Join(parts, "_") + n.Suffix
}

// EncodeChecked encodes key and verifies that Parse recovers the same key.
func (n Naming) EncodeChecked(key models.SeriesKey) (string, error) {
	name := n.Encode(key)
	got, err := n.Parse(name)
	if err != nil {
		return "", err
	}
	if got != key {
		return "", fmt.Errorf("%w: %q decodes to %s, not %s", ErrBadName, name, got, key)
	}
	return name, nil
}

// Parse recovers the key from an artifact name. The first part is the commodity,
// the last two are district and market, and everything between is the state.
func (n Naming) Parse(name string) (models.SeriesKey, error) {
	if !n.Match(name) {
		return models.SeriesKey{}, fmt.Errorf("%w: %q lacks %q...%q", ErrBadName, name, n.Prefix, n.Suffix)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, n.Prefix), n.Suffix)
	parts := strings.Split(body, "_")
	if len(parts) < 4 {
		return models.SeriesKey{}, fmt.Errorf("%w: %q has %d parts, need 4", ErrBadName, name, len(parts))
	}
	last := len(parts) - 1
	key := models.SeriesKey{
		Commodity: component(parts[0]),
		State:     component(strings.Join(parts[1:last-1], "_")),
		District:  component(parts[last-1]),
		Market:    component(parts[last]),
	}
	if missing := key.Missing(); len(missing) > 0 {
		return models.SeriesKey{}, fmt.Errorf("%w: %q has empty %s", ErrBadName, name, strings.Join(missing, ", "))
	}
	return key, nil
}

func component(s string) string {
	return models.TitleCase(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
}

// Encode writes m as JSON.
func Encode(w io.Writer, m *Model) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// Decode reads and validates a JSON model.
func Decode(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &m, nil
}

// Load reads the artifact name from fsys.
func Load(fsys fs.FS, name string) (*Model, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Save writes m into dir under its encoded name. The file is written to a
// temporary name and renamed so readers never see a partial artifact.
func Save(dir string, naming Naming, m *Model) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}
	name, err := naming.EncodeChecked(m.SeriesKey)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, m); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename artifact: %w", err)
	}
	return path, nil
}
