package repository

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"body-metrics/internal/models"
)

func setupMockConfigDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *ScaleConfigRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewScaleConfigRepository(db, logger)

	return db, mock, repo
}

func TestGetEntries_Success(t *testing.T) {
	db, mock, repo := setupMockConfigDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"entry_id", "name", "weight_topic", "impedance_topic",
	}).AddRow(
		"bathroom", "Bathroom Scale", "scale/bathroom/weight", "scale/bathroom/impedance",
	).AddRow(
		"bedroom", "Bedroom Scale", "scale/bedroom/weight", nil,
	)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	entries, err := repo.GetEntries()

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bathroom", entries[0].EntryID)
	assert.Equal(t, "scale/bathroom/weight", entries[0].WeightTopic)
	assert.Equal(t, "scale/bathroom/impedance", entries[0].ImpedanceTopic)

	// 阻抗主题可为空
	assert.Equal(t, "bedroom", entries[1].EntryID)
	assert.Equal(t, "", entries[1].ImpedanceTopic)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEntries_Empty(t *testing.T) {
	db, mock, repo := setupMockConfigDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"entry_id", "name", "weight_topic", "impedance_topic",
	})

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	entries, err := repo.GetEntries()

	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfiles_Success(t *testing.T) {
	db, mock, repo := setupMockConfigDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"person_id", "entry_id", "name", "slug", "height_cm", "age",
		"sex", "expected_weight", "expected_impedance", "tolerance",
	}).AddRow(
		"p-1", "bathroom", "Alice", "alice", 165, 32,
		"female", 58.0, 550.0, 8.0,
	).AddRow(
		"p-2", "bathroom", "Bob Jr.", nil, 180, 35,
		"male", 85.0, nil, 10.0,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("bathroom").
		WillReturnRows(rows)

	profiles, err := repo.GetProfiles("bathroom")

	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "alice", profiles[0].Slug)
	assert.Equal(t, models.SexFemale, profiles[0].Sex)
	require.NotNil(t, profiles[0].ExpectedImpedance)
	assert.Equal(t, 550.0, *profiles[0].ExpectedImpedance)

	// 缺省 slug 由姓名派生，缺省阻抗保持为空
	assert.Equal(t, "bob_jr", profiles[1].Slug)
	assert.Nil(t, profiles[1].ExpectedImpedance)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfiles_NormalizesOutOfRangeFields(t *testing.T) {
	db, mock, repo := setupMockConfigDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"person_id", "entry_id", "name", "slug", "height_cm", "age",
		"sex", "expected_weight", "expected_impedance", "tolerance",
	}).AddRow(
		"p-3", "bathroom", "Carol", "carol", 400, 0,
		"other", 1000.0, 50.0, 0.0,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("bathroom").
		WillReturnRows(rows)

	profiles, err := repo.GetProfiles("bathroom")

	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, models.MaxHeightCM, p.HeightCM)
	assert.Equal(t, models.MinAge, p.Age)
	assert.Equal(t, models.SexMale, p.Sex)
	assert.Equal(t, models.MaxExpectedWeight, p.ExpectedWeight)
	require.NotNil(t, p.ExpectedImpedance)
	assert.Equal(t, models.MinExpectedImpedance, *p.ExpectedImpedance)
	assert.Equal(t, models.DefaultTolerance, p.Tolerance)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfiles_QueryError(t *testing.T) {
	db, mock, repo := setupMockConfigDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("bathroom").
		WillReturnError(sql.ErrConnDone)

	profiles, err := repo.GetProfiles("bathroom")

	assert.Error(t, err)
	assert.Nil(t, profiles)

	require.NoError(t, mock.ExpectationsWereMet())
}
