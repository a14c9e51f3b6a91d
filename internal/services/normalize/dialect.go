package normalize

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"CropCast/internal/domain/models"
	"CropCast/pkg/util"

	"gopkg.in/yaml.v3"
)

// Built-in dialect names.
const (
	DialectAgmarknetScrape = "agmarknet_scrape"
	DialectOGDAPI          = "ogd_api"
	DialectCleanedCSV      = "cleaned_csv"
)

// Dialect describes how one source labels its columns and writes its dates.
type Dialect struct {
	Name    string `yaml:"name"`
	Version int    `yaml:"version"`
	// HeaderRow is the index of the row holding column names in a raw table.
	HeaderRow int `yaml:"header_row"`
	// SkipRows leading rows are discarded before data starts. The header row is
	// always discarded even when SkipRows does not cover it.
	SkipRows   int               `yaml:"skip_rows"`
	Rename     map[string]string `yaml:"rename"`
	DateFormat string            `yaml:"date_format"`
	// Defaults fill canonical columns the source does not carry.
	Defaults map[string]string `yaml:"defaults"`

	layout string
	rename map[string]string
}

var builtins = map[string]Dialect{
	DialectAgmarknetScrape: {
		Name:      DialectAgmarknetScrape,
		Version:   1,
		HeaderRow: 1,
		SkipRows:  2,
		Rename: map[string]string{
			"Sl_no":                 "Sl_No",
			"District_Name":         models.ColDistrict,
			"Market_Name":           models.ColMarket,
			"Commodity":             models.ColCommodity,
			"Variety":               models.ColVariety,
			"Grade":                 "Grade",
			"Min_Price_RsQuintal":   models.ColMinPrice,
			"Max_Price_RsQuintal":   models.ColMaxPrice,
			"Modal_Price_RsQuintal": models.ColModalPrice,
			"Price_Date":            models.ColDate,
			"State_Name":            models.ColState,
		},
		DateFormat: "%d-%b-%Y",
	},
	DialectOGDAPI: {
		Name:    DialectOGDAPI,
		Version: 1,
		Rename: map[string]string{
			"state":        models.ColState,
			"district":     models.ColDistrict,
			"market":       models.ColMarket,
			"commodity":    models.ColCommodity,
			"variety":      models.ColVariety,
			"arrival_date": models.ColDate,
			"min_price":    models.ColMinPrice,
			"max_price":    models.ColMaxPrice,
			"modal_price":  models.ColModalPrice,
		},
		DateFormat: "%d/%m/%Y",
	},
	DialectCleanedCSV: {
		Name:    DialectCleanedCSV,
		Version: 1,
		Rename: map[string]string{
			"Min_Price_Rs":   models.ColMinPrice,
			"Max_Price_Rs":   models.ColMaxPrice,
			"Modal_Price_Rs": models.ColModalPrice,
		},
		DateFormat: "%Y-%m-%d",
	},
}

// Builtin returns a ready copy of a built-in dialect.
func Builtin(name string) (*Dialect, error) {
	d, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return d.compile()
}

// BuiltinNames lists built-in dialects in sorted order.
func BuiltinNames() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseDialect decodes a YAML dialect description.
func ParseDialect(b []byte) (*Dialect, error) {
	var d Dialect
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse dialect: %w", err)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("parse dialect: name is required")
	}
	return d.compile()
}

// LoadDialectFile reads a YAML dialect from path.
func LoadDialectFile(path string) (*Dialect, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dialect: %w", err)
	}
	return ParseDialect(b)
}

// Resolve picks the dialect file when set, otherwise the named built-in.
func Resolve(name, file string) (*Dialect, error) {
	if file != "" {
		return LoadDialectFile(file)
	}
	return Builtin(name)
}

func (d Dialect) compile() (*Dialect, error) {
	if d.DateFormat == "" {
		return nil, fmt.Errorf("dialect %s: date_format is required", d.Name)
	}
	layout, err := util.StrftimeToLayout(d.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("dialect %s: %w", d.Name, err)
	}
	if d.HeaderRow < 0 || d.SkipRows < 0 {
		return nil, fmt.Errorf("dialect %s: header_row and skip_rows must not be negative", d.Name)
	}

	d.layout = layout
	d.rename = make(map[string]string, len(d.Rename))
	for from, to := range d.Rename {
		d.rename[SanitizeColumn(from)] = to
	}
	for col := range d.Defaults {
		if canonicalName(col) == "" {
			return nil, fmt.Errorf("dialect %s: default for unknown column %q", d.Name, col)
		}
	}
	return &d, nil
}

// Layout is the Go time layout for DateFormat.
func (d *Dialect) Layout() string { return d.layout }

// Column maps a raw column name to its canonical name, or "" when the column is not canonical.
func (d *Dialect) Column(raw string) string {
	name := SanitizeColumn(raw)
	if to, ok := d.rename[name]; ok {
		name = to
	}
	return canonicalName(name)
}

// DataStart is the index of the first data row in a raw table.
func (d *Dialect) DataStart() int {
	if d.SkipRows > d.HeaderRow {
		return d.SkipRows
	}
	return d.HeaderRow + 1
}

func canonicalName(name string) string {
	for _, c := range models.CanonicalColumns {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return ""
}

// SanitizeColumn trims name, turns whitespace runs into one underscore and drops
// every character that is not a letter, digit or underscore.
func SanitizeColumn(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if space {
			b.WriteByte('_')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
