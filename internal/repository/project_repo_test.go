package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"statusboard/internal/model"
)

// storedRow mirrors one project_status row, NULLs included.
type storedRow struct {
	bullets     string
	summary     string
	value       float64
	delta       float64
	risk        string
	milestones  []byte
	lastUpdated *time.Time
}

type fakeDB struct {
	mu      sync.Mutex
	rows    map[string]storedRow
	execs   []string
	loadErr error
	saveErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]storedRow)}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)

	if strings.Contains(sql, "CREATE TABLE") {
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	}
	if f.saveErr != nil {
		return pgconn.CommandTag{}, f.saveErr
	}
	if !strings.Contains(sql, "ON CONFLICT (project_id) DO UPDATE") {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", sql)
	}

	ts := args[7].(time.Time)
	f.rows[args[0].(string)] = storedRow{
		bullets:     args[1].(string),
		value:       args[2].(float64),
		delta:       args[3].(float64),
		milestones:  append([]byte(nil), args[4].([]byte)...),
		risk:        args[5].(string),
		summary:     args[6].(string),
		lastUpdated: &ts,
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loadErr != nil {
		return fakeRow{err: f.loadErr}
	}
	row, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{row: row}
}

type fakeRow struct {
	row storedRow
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.row.bullets
	*dest[1].(*string) = r.row.summary
	*dest[2].(*float64) = r.row.value
	*dest[3].(*float64) = r.row.delta
	*dest[4].(*string) = r.row.risk
	*dest[5].(*[]byte) = r.row.milestones
	*dest[6].(**time.Time) = r.row.lastUpdated
	return nil
}

func newTestRepo(db DBTX, now time.Time) *ProjectRepository {
	repo := NewProjectRepository(db, zap.NewNop())
	repo.now = func() time.Time { return now }
	return repo
}

func sampleRecord() *model.ProjectRecord {
	rec := model.NewProjectRecord("vortex")
	rec.UpdateBullets = "- shipped search\n- fixed login"
	rec.UpdateSummary = "Team shipped search."
	rec.MetricValue = 42.5
	rec.MetricDelta = -1.25
	rec.Risk = "Vendor contract pending"
	rec.Milestones = model.Milestones{
		{Date: model.NewDate(2024, time.March, 1), Desc: "A"},
		{Date: model.NewDate(2024, time.January, 10), Desc: "B"},
	}
	return rec
}

func TestLoad_MissingRowReturnsDefaults(t *testing.T) {
	repo := newTestRepo(newFakeDB(), time.Now())

	rec, err := repo.Load(context.Background(), "ghostmachine")
	require.NoError(t, err)
	assert.Equal(t, model.NewProjectRecord("ghostmachine"), rec)
	assert.NotNil(t, rec.Milestones)
}

func TestLoad_StorageFaultDegradesToDefaults(t *testing.T) {
	db := newFakeDB()
	db.loadErr = errors.New("connection refused")
	repo := newTestRepo(db, time.Now())

	rec, err := repo.Load(context.Background(), "vortex")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, model.NewProjectRecord("vortex"), rec)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	now := time.Date(2024, 4, 2, 15, 4, 5, 0, time.FixedZone("PDT", -7*3600))
	repo := newTestRepo(newFakeDB(), now)
	ctx := context.Background()

	original := sampleRecord()
	saved, err := repo.Save(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, now.UTC(), saved.LastUpdated)
	assert.Equal(t, time.UTC, saved.LastUpdated.Location())
	assert.True(t, original.LastUpdated.IsZero(), "caller record must not be modified")

	loaded, err := repo.Load(ctx, "vortex")
	require.NoError(t, err)

	want := sampleRecord()
	want.LastUpdated = now.UTC()
	assert.Equal(t, want, loaded)
}

func TestSave_Idempotent(t *testing.T) {
	db := newFakeDB()
	repo := newTestRepo(db, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := repo.Save(ctx, sampleRecord())
	require.NoError(t, err)
	first := db.rows["vortex"]

	repo.now = func() time.Time { return time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC) }
	_, err = repo.Save(ctx, sampleRecord())
	require.NoError(t, err)
	second := db.rows["vortex"]

	assert.Len(t, db.rows, 1)
	first.lastUpdated, second.lastUpdated = nil, nil
	assert.Equal(t, first, second)
}

func TestSave_OverwritesEveryField(t *testing.T) {
	repo := newTestRepo(newFakeDB(), time.Now())
	ctx := context.Background()

	_, err := repo.Save(ctx, sampleRecord())
	require.NoError(t, err)

	_, err = repo.Save(ctx, model.NewProjectRecord("vortex"))
	require.NoError(t, err)

	loaded, err := repo.Load(ctx, "vortex")
	require.NoError(t, err)
	assert.Empty(t, loaded.UpdateBullets)
	assert.Empty(t, loaded.UpdateSummary)
	assert.Empty(t, loaded.Risk)
	assert.Zero(t, loaded.MetricValue)
	assert.Empty(t, loaded.Milestones)
}

func TestSave_UsesSingleUpsertStatement(t *testing.T) {
	db := newFakeDB()
	repo := newTestRepo(db, time.Now())

	_, err := repo.Save(context.Background(), sampleRecord())
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "INSERT INTO project_status")
	assert.Contains(t, db.execs[0], "ON CONFLICT (project_id) DO UPDATE")
}

func TestSave_FailureWrapsCause(t *testing.T) {
	db := newFakeDB()
	db.saveErr = errors.New("disk full")
	repo := newTestRepo(db, time.Now())

	rec := sampleRecord()
	saved, err := repo.Save(context.Background(), rec)
	assert.Nil(t, saved)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, rec.LastUpdated.IsZero())
}

func TestSave_NilMilestonesStoredAsEmptyList(t *testing.T) {
	db := newFakeDB()
	repo := newTestRepo(db, time.Now())

	rec := model.NewProjectRecord("platform")
	rec.Milestones = nil
	_, err := repo.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(db.rows["platform"].milestones))
}

func TestLoad_MilestoneNormalization(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []string
	}{
		{"sql null", nil, nil},
		{"empty", []byte(""), nil},
		{"json null", []byte("null"), nil},
		{"empty object", []byte("{}"), nil},
		{"other object", []byte(`{"date":"2024-01-01","desc":"x"}`), nil},
		{"list", []byte(`[{"date":"2024-03-01","desc":"A"},{"date":"2024-01-10","desc":"B"}]`), []string{"A", "B"}},
		{"string encoded list", []byte(`"[{\"date\":\"2024-01-10\",\"desc\":\"B\"}]"`), []string{"B"}},
		{"string encoded garbage", []byte(`"not json"`), nil},
		{"corrupt", []byte(`[{"date":`), nil},
		{"bad date", []byte(`[{"date":"soon","desc":"A"}]`), nil},
		{"timestamp dates", []byte(`[{"date":"2024-01-10T00:00:00","desc":"B"}]`), []string{"B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDB()
			db.rows["vortex"] = storedRow{milestones: tt.raw}
			repo := newTestRepo(db, time.Now())

			rec, err := repo.Load(context.Background(), "vortex")
			require.NoError(t, err)
			require.NotNil(t, rec.Milestones)

			var got []string
			for _, m := range rec.Milestones {
				got = append(got, m.Desc)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_NullLastUpdated(t *testing.T) {
	db := newFakeDB()
	db.rows["vortex"] = storedRow{bullets: "x"}
	repo := newTestRepo(db, time.Now())

	rec, err := repo.Load(context.Background(), "vortex")
	require.NoError(t, err)
	assert.Equal(t, "x", rec.UpdateBullets)
	assert.True(t, rec.LastUpdated.IsZero())
}

func TestEnsureSchema(t *testing.T) {
	db := newFakeDB()
	repo := newTestRepo(db, time.Now())

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS project_status")
	assert.Contains(t, db.execs[0], "milestones     JSONB")
}
