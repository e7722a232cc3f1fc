package datasets

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
	"github.com/YuminosukeSato/bratbench/preprocessing"
)

// Variable roles as reported by the UCI repository.
const (
	RoleFeature = "Feature"
	RoleTarget  = "Target"
	RoleID      = "ID"
)

// DefaultUCIBaseURL is the UCI repository API root.
const DefaultUCIBaseURL = "https://archive.ics.uci.edu/api/dataset"

// Variable describes one column of a UCI dataset.
type Variable struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Type string `json:"type"`
}

// Frame is a column-oriented table of raw cell strings.
type Frame struct {
	Names   []string
	Columns [][]string
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return len(f.Columns[0])
}

// Index returns the position of column name or -1.
func (f *Frame) Index(name string) int {
	if f == nil {
		return -1
	}
	for i, n := range f.Names {
		if n == name {
			return i
		}
	}
	return -1
}

func (f *Frame) drop(col int) {
	f.Names = append(f.Names[:col:col], f.Names[col+1:]...)
	f.Columns = append(f.Columns[:col:col], f.Columns[col+1:]...)
}

// RawDataset is a fetched dataset split by variable role.
type RawDataset struct {
	Name     string
	Features *Frame
	Targets  *Frame
}

// Source fetches a UCI dataset by id.
type Source interface {
	Fetch(ctx context.Context, id int) (*RawDataset, error)
}

// HTTPSource reads metadata and CSV data from the UCI repository API.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource returns a source for the public UCI API.
func NewHTTPSource() *HTTPSource {
	return &HTTPSource{
		BaseURL: DefaultUCIBaseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type uciMetadata struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		UCIID     int        `json:"uci_id"`
		Name      string     `json:"name"`
		DataURL   string     `json:"data_url"`
		Variables []Variable `json:"variables"`
	} `json:"data"`
}

// Fetch downloads metadata for id, then the dataset CSV.
func (s *HTTPSource) Fetch(ctx context.Context, id int) (*RawDataset, error) {
	metaURL := fmt.Sprintf("%s?id=%d", s.BaseURL, id)
	body, err := s.get(ctx, metaURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var meta uciMetadata
	if err := json.NewDecoder(body).Decode(&meta); err != nil {
		return nil, errors.Wrapf(err, "decode UCI metadata for dataset %d", id)
	}
	if meta.Status != 0 && meta.Status != http.StatusOK {
		return nil, errors.Newf("UCI dataset %d: %s", id, meta.Message)
	}
	if meta.Data.DataURL == "" {
		return nil, errors.Newf("UCI dataset %d has no downloadable data", id)
	}

	data, err := s.get(ctx, meta.Data.DataURL)
	if err != nil {
		return nil, err
	}
	defer data.Close()

	raw, err := ReadCSV(data, meta.Data.Variables)
	if err != nil {
		return nil, errors.Wrapf(err, "read UCI dataset %d", id)
	}
	raw.Name = meta.Data.Name
	return raw, nil
}

func (s *HTTPSource) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Newf("GET %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// FileSource reads a local CSV whose columns are described by Variables.
// Columns absent from Variables are treated as features.
type FileSource struct {
	Path      string
	Variables []Variable
}

// Fetch ignores id and reads Path.
func (s *FileSource) Fetch(_ context.Context, _ int) (*RawDataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset file")
	}
	defer f.Close()

	raw, err := ReadCSV(f, s.Variables)
	if err != nil {
		return nil, err
	}
	raw.Name = s.Path
	return raw, nil
}

// ReadCSV splits a headed CSV into feature and target frames using the
// variable roles. Columns with a role other than Feature or Target are
// dropped.
func ReadCSV(r io.Reader, variables []Variable) (*RawDataset, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) < 2 {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no data rows")
	}

	roles := make(map[string]string, len(variables))
	for _, v := range variables {
		roles[v.Name] = v.Role
	}

	header := records[0]
	features, targets := &Frame{}, &Frame{}
	for j, name := range header {
		col := make([]string, len(records)-1)
		for i, rec := range records[1:] {
			if j < len(rec) {
				col[i] = rec[j]
			}
		}
		// columns missing from variables count as features; any other
		// role (ID, Other) is dropped
		switch roles[name] {
		case RoleTarget:
			targets.Names = append(targets.Names, name)
			targets.Columns = append(targets.Columns, col)
		case RoleFeature, "":
			features.Names = append(features.Names, name)
			features.Columns = append(features.Columns, col)
		}
	}
	return &RawDataset{Features: features, Targets: targets}, nil
}

// UCIConfig configures LoadUCI.
type UCIConfig struct {
	TargetColumn string
	TestSize     float64
	RandomState  uint64
	Normalize    bool
	SanityCheck  bool
}

// DefaultUCIConfig uses a 20% test split, seed 42 and feature scaling.
func DefaultUCIConfig() UCIConfig {
	return UCIConfig{TestSize: 0.2, RandomState: 42, Normalize: true}
}

// UCIData is a cleaned and split real dataset.
type UCIData struct {
	Dataset
	FeatureNames []string
	TargetName   string
	// Classes is set when the target was label encoded.
	Classes []string
}

// LoadUCI fetches dataset id from src and cleans and splits it.
func LoadUCI(ctx context.Context, src Source, id int, cfg UCIConfig) (*UCIData, error) {
	raw, err := src.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return Clean(raw, cfg)
}

// Clean resolves the target column, drops rows with missing values, one-hot
// encodes non-numeric features, splits train/test, optionally standardises
// the features and label encodes a non-numeric target.
func Clean(raw *RawDataset, cfg UCIConfig) (*UCIData, error) {
	logger := log.GetLoggerWithName("datasets").With(log.DatasetKey, raw.Name)

	features := &Frame{
		Names:   append([]string(nil), raw.Features.Names...),
		Columns: append([][]string(nil), raw.Features.Columns...),
	}
	targetName, target, err := resolveTarget(features, raw.Targets, cfg.TargetColumn)
	if err != nil {
		return nil, err
	}

	initial := features.Len()
	keep := make([]int, 0, initial)
	for i := 0; i < initial; i++ {
		if isMissing(target[i]) {
			continue
		}
		ok := true
		for _, col := range features.Columns {
			if isMissing(col[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no rows left after dropping missing values")
	}

	names, columns := encodeFeatures(features, keep)
	if len(columns) == 0 {
		return nil, errors.NewValueError("datasets.LoadUCI", "dataset has no feature columns")
	}
	y := make([]string, len(keep))
	for k, i := range keep {
		y[k] = target[i]
	}

	if cfg.SanityCheck {
		logger.Info("UCI sanity check",
			"initial_rows", initial,
			"remaining_rows", len(keep),
			"target", targetName,
		)
	}

	testSize := cfg.TestSize
	if testSize == 0 {
		testSize = 0.2
	}
	trainIdx, testIdx, err := preprocessing.TrainTestSplit(len(keep), testSize, cfg.RandomState)
	if err != nil {
		return nil, err
	}

	out := &UCIData{FeatureNames: names, TargetName: targetName}
	xTrain := gather(columns, trainIdx)
	xTest := gather(columns, testIdx)
	if cfg.Normalize {
		scaler := preprocessing.NewStandardScalerDefault()
		if xTrain, err = scaler.FitTransform(xTrain); err != nil {
			return nil, err
		}
		if xTest, err = scaler.Transform(xTest); err != nil {
			return nil, err
		}
		if cfg.SanityCheck {
			logger.Info("UCI features standardised", "scaler", scaler.String())
		}
	}
	out.XTrain, out.XTest = xTrain, xTest

	yTrainRaw, yTestRaw := pick(y, trainIdx), pick(y, testIdx)
	if numericColumn(y) {
		out.YTrain = mat.NewVecDense(len(trainIdx), parseAll(yTrainRaw))
		out.YTest = mat.NewVecDense(len(testIdx), parseAll(yTestRaw))
	} else {
		errors.Warn(errors.NewDataConversionWarning("string", "float64", "target "+targetName+" label encoded"))
		enc := preprocessing.NewLabelEncoder()
		yTrain, err := enc.FitTransform(yTrainRaw)
		if err != nil {
			return nil, err
		}
		yTest, err := enc.Transform(yTestRaw)
		if err != nil {
			return nil, err
		}
		out.YTrain = mat.NewVecDense(len(yTrain), yTrain)
		out.YTest = mat.NewVecDense(len(yTest), yTest)
		out.Classes = enc.Classes
	}

	if cfg.SanityCheck {
		r, c := out.XTrain.Dims()
		rt, _ := out.XTest.Dims()
		logger.Info("UCI shapes",
			"x_train", fmt.Sprintf("(%d, %d)", r, c),
			"x_test", fmt.Sprintf("(%d, %d)", rt, c),
			"y_train", fmt.Sprintf("(%d,)", out.YTrain.Len()),
			"y_test", fmt.Sprintf("(%d,)", out.YTest.Len()),
		)
	}
	return out, nil
}

func resolveTarget(features, targets *Frame, targetColumn string) (string, []string, error) {
	if targets == nil || len(targets.Names) == 0 {
		if targetColumn == "" {
			return "", nil, errors.NewValueError("datasets.LoadUCI", fmt.Sprintf(
				"no prespecified targets found; choose a target from features. Available features: %v", features.Names))
		}
		idx := features.Index(targetColumn)
		if idx < 0 {
			return "", nil, errors.NewValueError("datasets.LoadUCI", fmt.Sprintf(
				"specified target_column %q not found in features. Available features: %v", targetColumn, features.Names))
		}
		col := features.Columns[idx]
		features.drop(idx)
		return targetColumn, col, nil
	}

	if targetColumn == "" {
		if len(targets.Names) > 1 {
			return "", nil, errors.NewValueError("datasets.LoadUCI", fmt.Sprintf(
				"multiple targets found; specify one with target_column. Available targets: %v", targets.Names))
		}
		return targets.Names[0], targets.Columns[0], nil
	}

	idx := targets.Index(targetColumn)
	if idx < 0 {
		return "", nil, errors.NewValueError("datasets.LoadUCI", fmt.Sprintf(
			"specified target_column %q not found. Available targets: %v", targetColumn, targets.Names))
	}
	return targetColumn, targets.Columns[idx], nil
}

// naTokens are the cell values read as missing.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isMissing(v string) bool {
	_, ok := naTokens[strings.TrimSpace(v)]
	return ok
}

func numericColumn(values []string) bool {
	for _, v := range values {
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return false
		}
	}
	return true
}

func parseAll(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return out
}

func pick(values []string, idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = values[i]
	}
	return out
}

// encodeFeatures keeps numeric columns in order and appends indicator
// columns for every non-numeric column.
func encodeFeatures(f *Frame, keep []int) ([]string, [][]float64) {
	var names, dummyNames []string
	var columns, dummyColumns [][]float64
	for j, name := range f.Names {
		values := pick(f.Columns[j], keep)
		if numericColumn(values) {
			names = append(names, name)
			columns = append(columns, parseAll(values))
			continue
		}
		errors.Warn(errors.NewDataConversionWarning("string", "one-hot", "feature "+name+" expanded into indicator columns"))
		n, c := preprocessing.Dummies(name, values)
		dummyNames = append(dummyNames, n...)
		dummyColumns = append(dummyColumns, c...)
	}
	return append(names, dummyNames...), append(columns, dummyColumns...)
}

func gather(columns [][]float64, rows []int) *mat.Dense {
	X := mat.NewDense(len(rows), len(columns), nil)
	for j, col := range columns {
		for k, i := range rows {
			X.Set(k, j, col[i])
		}
	}
	return X
}
