// Command train builds the artifacts the login guard loads at startup.
//
//	train forest  -data numeric_login_data.csv -out models/isolation_forest.json
//	train vocab   -data raw_logins.csv -out models
//	train rescore -model models/isolation_forest.json -log outputs/logs.txt
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"go-loginguard/pkg/analyzer"
	"go-loginguard/pkg/encoder"
	"go-loginguard/pkg/iforest"
	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/models"
	"go-loginguard/pkg/storage"
)

const usage = `usage: train <command> [flags]

commands:
  forest    fit an isolation forest on a numeric feature CSV
  vocab     build category vocabularies from a raw login CSV
  rescore   re-classify the feature vectors in an audit log
`

func main() {
	if err := logger.Init(logger.Options{Level: "info", Console: true}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "forest":
		err = runForest(os.Args[2:])
	case "vocab":
		err = runVocab(os.Args[2:])
	case "rescore":
		err = runRescore(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Log.Errorf("%s failed: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func runForest(args []string) error {
	fs := flag.NewFlagSet("forest", flag.ContinueOnError)
	data := fs.String("data", "data/numeric_login_data.csv", "numeric feature CSV")
	out := fs.String("out", "models/isolation_forest.json", "model artifact to write")
	trees := fs.Int("trees", 100, "number of trees")
	contamination := fs.Float64("contamination", 0.2, "expected anomaly fraction, 0 for auto")
	maxSamples := fs.Int("max-samples", 256, "rows sampled per tree")
	seed := fs.Int64("seed", 42, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := os.Open(*data)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := readFeatureRows(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", *data, err)
	}

	forest, err := iforest.Fit(rows, models.FeatureNames,
		iforest.WithTrees(*trees),
		iforest.WithContamination(*contamination),
		iforest.WithMaxSamples(*maxSamples),
		iforest.WithSeed(*seed),
	)
	if err != nil {
		return err
	}
	if err := iforest.Save(*out, forest); err != nil {
		return err
	}
	logger.Log.Infof("model trained on %d rows and saved at %s (offset %.6f)", len(rows), *out, forest.Offset())
	return nil
}

// readFeatureRows reads the model features from a CSV with a header row.
// Columns are matched by name; columns outside the schema are ignored.
func readFeatureRows(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	cols := make([]int, len(models.FeatureNames))
	for i, name := range models.FeatureNames {
		col, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols[i] = col
	}

	var rows [][]float64
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(cols))
		for i, col := range cols {
			v, err := strconv.ParseFloat(record[col], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, models.FeatureNames[i], err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// vocabColumns lists the CSV headers accepted for each vocabulary.
var vocabColumns = map[string][]string{
	encoder.LocationCity: {"location_city", "location"},
	encoder.IPCountry:    {"ip_country"},
	encoder.ISP:          {"isp"},
	encoder.Role:         {"role"},
	encoder.DeviceOS:     {"device_os"},
	encoder.Browser:      {"browser"},
	encoder.DeviceType:   {"device_type"},
	encoder.UserID:       {"user_id", "identity"},
}

func runVocab(args []string) error {
	fs := flag.NewFlagSet("vocab", flag.ContinueOnError)
	data := fs.String("data", "data/raw_login_data.csv", "raw login CSV with categorical columns")
	out := fs.String("out", "models", "directory for <name>_encoder.json files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := os.Open(*data)
	if err != nil {
		return err
	}
	defer f.Close()

	set, err := buildVocabularies(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", *data, err)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	return encoder.SaveSet(*out, set)
}

// buildVocabularies fits one vocabulary per categorical column present in
// the CSV. Absent columns leave their slot nil.
func buildVocabularies(r io.Reader) (*encoder.Set, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	set := &encoder.Set{}
	for _, name := range encoder.Names {
		col := findColumn(header, vocabColumns[name])
		if col < 0 {
			logger.Log.Warnf("no column for %s encoder, skipped", name)
			continue
		}
		values := make([]string, 0, len(records))
		for _, rec := range records {
			values = append(values, rec[col])
		}
		v := encoder.Build(name, values)
		if err := set.Put(name, v); err != nil {
			return nil, err
		}
		logger.Log.Infof("%s encoder: %d classes", name, v.Len())
	}
	return set, nil
}

func findColumn(header, candidates []string) int {
	for _, want := range candidates {
		for i, h := range header {
			if h == want {
				return i
			}
		}
	}
	return -1
}

func runRescore(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("rescore", flag.ContinueOnError)
	modelPath := fs.String("model", "models/isolation_forest.json", "model artifact")
	logPath := fs.String("log", "outputs/logs.txt", "audit log to re-classify")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scorer, err := analyzer.LoadScorer(*modelPath)
	if err != nil {
		return err
	}
	records, err := storage.ReadAuditLog(*logPath)
	if err != nil {
		return err
	}

	var anomalies, changed int
	for _, rec := range records {
		got := scorer.Score(rec.Features)
		if got == models.Anomaly {
			anomalies++
		}
		if got != rec.Classification {
			changed++
			fmt.Fprintf(w, "%s %s: %s -> %s\n", rec.EventID, rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Classification, got)
		}
	}
	fmt.Fprintf(w, "records=%d anomalies=%d changed=%d\n", len(records), anomalies, changed)
	return nil
}
