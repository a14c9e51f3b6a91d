package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/service/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gramKey  = models.SeriesKey{Commodity: "Bengal Gram", State: "Andhra Pradesh", District: "East Godavari", Market: "Kakinada"}
	wheatKey = models.SeriesKey{Commodity: "Wheat", State: "Uttar Pradesh", District: "Agra", Market: "Agra"}
	onionKey = models.SeriesKey{Commodity: "Onion", State: "Maharashtra", District: "Nashik", Market: "Lasalgaon"}
)

// execute runs pricectl with args and a clean flag state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel = "", ""
	inPath, outPath = "", ""
	dialectName, dialectFile = "", ""
	rawOutput, fromStore = false, false
	commodity, state = "", ""
	modelsDir, fromDate, toDate, backendType = "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_KEY", "MODEL_DIR", "BACKEND", "KAFKA_BROKERS", "CLICKHOUSE_HOST", "LOG_LEVEL", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "log:\n  level: error\n  output: stderr\nmodels:\n  dir: " + filepath.Join(dir, "models") + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writePriceCSV(t *testing.T, path string, days int, keys ...models.SeriesKey) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,State,District,Market,Commodity,Variety,Min_Price_Rs,Max_Price_Rs,Modal_Price_Rs\n")
	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for k, key := range keys {
		for i := 0; i < days; i++ {
			modal := 2000 + 1000*k + 5*i
			fmt.Fprintf(&b, "%s,%s,%s,%s,%s,Other,%d,%d,%d\n",
				day0.AddDate(0, 0, i).Format(models.DateLayout),
				key.State, key.District, key.Market, key.Commodity,
				modal-100, modal+100, modal)
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestCleanThenTrain_LoadsIntoRegistry(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	raw := filepath.Join(dir, "raw.csv")
	cleaned := filepath.Join(dir, "out", "cleaned.csv")
	writePriceCSV(t, raw, 40, gramKey, wheatKey)

	_, err := execute(t, "clean", "--config", cfgPath, "--dialect", "cleaned_csv", "--in", raw, "--out", cleaned)
	require.NoError(t, err)
	b, err := os.ReadFile(cleaned)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Len(t, lines, 81, "header plus every input row")

	modelDir := filepath.Join(dir, "trained")
	out, err := execute(t, "train", "--config", cfgPath, "--in", cleaned, "--models-dir", modelDir)
	require.NoError(t, err)
	assert.Contains(t, out, "saved 2 models to "+modelDir)

	_, err = os.Stat(filepath.Join(modelDir, "prophet_model_Bengal Gram_Andhra_Pradesh_East Godavari_Kakinada.json"))
	require.NoError(t, err)

	reg, err := registry.New(context.Background(), os.DirFS(modelDir))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	for _, key := range []models.SeriesKey{gramKey, wheatKey} {
		_, err := reg.Get(key)
		assert.NoError(t, err, key.String())
	}
}

func TestTrain_SkipsShortSeries(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	cleaned := filepath.Join(dir, "cleaned.csv")
	writePriceCSV(t, cleaned, 5, wheatKey)

	out, err := execute(t, "train", "--config", cfgPath, "--in", cleaned)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped "+wheatKey.String())
	assert.Contains(t, out, "saved 0 models")
}

func TestCollectThenTrain(t *testing.T) {
	isolateEnv(t)
	const total = 30
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		recs := []map[string]interface{}{}
		day0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		for i := offset; i < offset+limit && i < total; i++ {
			recs = append(recs, map[string]interface{}{
				"state":        onionKey.State,
				"district":     onionKey.District,
				"market":       onionKey.Market,
				"commodity":    onionKey.Commodity,
				"variety":      "Red",
				"arrival_date": day0.AddDate(0, 0, i).Format("02/01/2006"),
				"min_price":    1400 + i,
				"max_price":    1800 + i,
				"modal_price":  1600 + i,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"records": recs, "total": total})
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "collector:\n  base_url: "+srv.URL+"\n  api_key: k\n  page_size: 20\n  rps: 1000\n")
	collected := filepath.Join(dir, "collected.csv")

	_, err := execute(t, "collect", "--config", cfgPath, "--out", collected)
	require.NoError(t, err)
	b, err := os.ReadFile(collected)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(b)), "\n"), total+1)

	modelDir := filepath.Join(dir, "models")
	out, err := execute(t, "train", "--config", cfgPath, "--in", collected)
	require.NoError(t, err)
	assert.Contains(t, out, "saved 1 models to "+modelDir)

	reg, err := registry.New(context.Background(), os.DirFS(modelDir))
	require.NoError(t, err)
	_, err = reg.Get(onionKey)
	assert.NoError(t, err)
}

func TestIngest_RejectsBackendNone(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	in := filepath.Join(dir, "prices.csv")
	writePriceCSV(t, in, 3, wheatKey)

	_, err := execute(t, "ingest", "--config", cfgPath, "--in", in, "--dialect", "cleaned_csv")
	assert.ErrorContains(t, err, "backend.type")
}
