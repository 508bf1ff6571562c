package mongo

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

func TestLevelFromRaw(t *testing.T) {
	data, err := bson.Marshal(bson.D{
		{Key: "double", Value: 41.5},
		{Key: "int32", Value: int32(40)},
		{Key: "int64", Value: int64(70)},
		{Key: "string", Value: " 55.25 "},
		{Key: "garbage", Value: "loud"},
		{Key: "bool", Value: true},
		{Key: "nan", Value: math.NaN()},
		{Key: "inf", Value: math.Inf(1)},
		{Key: "null", Value: nil},
	})
	require.NoError(t, err)
	doc := bson.Raw(data)

	tests := []struct {
		key  string
		want float64
		ok   bool
	}{
		{"double", 41.5, true},
		{"int32", 40, true},
		{"int64", 70, true},
		{"string", 55.25, true},
		{"garbage", 0, false},
		{"bool", 0, false},
		{"nan", 0, false},
		{"inf", 0, false},
		{"null", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := levelFromRaw(doc.Lookup(tt.key))
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDecodeReading(t *testing.T) {
	normal := domain.LabelNormal
	tests := []struct {
		name    string
		level   any
		omit    bool
		want    float64
		wantErr bool
	}{
		{name: "double", level: 41.5, want: 41.5},
		{name: "int32", level: int32(40), want: 40},
		{name: "numeric string", level: "55.25", want: 55.25},
		{name: "null", level: nil, wantErr: true},
		{name: "missing", omit: true, wantErr: true},
		{name: "garbage string", level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := bson.D{
				{Key: "_id", Value: "r-1"},
				{Key: "timestamp", Value: 1700000000.5},
				{Key: "label", Value: "normal"},
				{Key: "location", Value: "lab"},
				{Key: "source", Value: "real"},
			}
			if !tt.omit {
				doc = append(doc, bson.E{Key: "level_db", Value: tt.level})
			}
			data, err := bson.Marshal(doc)
			require.NoError(t, err)

			got, err := decodeReading(data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			want := domain.Reading{
				ID:        "r-1",
				Timestamp: 1700000000.5,
				LevelDB:   tt.want,
				Label:     &normal,
				Location:  "lab",
				Source:    domain.SourceReal,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("decodeReading mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeReading_NullLabel(t *testing.T) {
	data, err := bson.Marshal(bson.D{
		{Key: "_id", Value: "r-2"},
		{Key: "level_db", Value: 30.0},
		{Key: "label", Value: nil},
		{Key: "source", Value: "real"},
	})
	require.NoError(t, err)

	got, err := decodeReading(data)
	require.NoError(t, err)
	assert.Nil(t, got.Label)
	assert.InDelta(t, 30.0, got.LevelDB, 1e-9)
}

func TestInsertFields(t *testing.T) {
	unlabeled := domain.Reading{ID: "r-1", Timestamp: 1700000000.5, LevelDB: 42.1, Location: "lab", Source: domain.SourceReal}

	fields := insertFields(unlabeled)
	m := fields.Map()
	assert.NotContains(t, m, "_id", "the upsert filter supplies the id")
	assert.Nil(t, m["label"])
	assert.Equal(t, "real", m["source"])
	assert.InDelta(t, 42.1, m["level_db"], 1e-9)

	labeled := insertFields(unlabeled.WithLabel(domain.LabelNormal)).Map()
	assert.Equal(t, "normal", labeled["label"])
}

func TestBuildSummary(t *testing.T) {
	loud, quiet, legacy := domain.LabelLoud, domain.LabelQuiet, domain.Label("medium")
	rows := []bandRow{
		{Label: nil, Count: 4, Avg: 48.04},
		{Label: &loud, Count: 2, Avg: 58.26},
		{Label: &legacy, Count: 1, Avg: 40},
		{Label: &quiet, Count: 3, Avg: 28.333},
	}

	got := buildSummary(1700000000, rows)

	want := domain.Summary{
		Since: 1700000000,
		Total: 10,
		Bands: []domain.BandSummary{
			{Label: domain.LabelQuiet, Count: 3, AvgLevelDB: 28.3},
			{Label: domain.LabelLoud, Count: 2, AvgLevelDB: 58.3},
			{Label: "medium", Count: 1, AvgLevelDB: 40},
			{Label: "", Count: 4, AvgLevelDB: 48},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSummary_Empty(t *testing.T) {
	got := buildSummary(5, nil)
	assert.Zero(t, got.Total)
	assert.NotNil(t, got.Bands)
	assert.Empty(t, got.Bands)
}
