package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/folio/internal/model"
	"github.com/MarkoPoloResearchLab/folio/internal/storage"
	"github.com/MarkoPoloResearchLab/folio/internal/testutil"
)

const (
	testInquiryNameValue             = "Ana Lee"
	testInquiryEmailValue            = "ana@example.com"
	testInquiryMessageValue          = "Interested in a website rebuild, please reach out."
	testProjectTitleValue            = "Portfolio"
	testProjectDescriptionValue      = "Personal site"
	testUnsupportedDriverName        = "unsupported-driver"
	testUnsupportedDriverDescription = "unsupported driver"
	testMissingDriverDescription     = "missing driver"
	testMissingDataSourceDescription = "missing data source"
	testMissingPostgresDescription   = "missing postgres data source"
)

func TestOpenDatabaseWithSQLiteConfiguration(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(t, openErr)
	database = testutil.ConfigureDatabaseLogger(t, database)
	require.NotNil(t, database)

	require.NoError(t, storage.AutoMigrate(database))

	inquiry := model.Inquiry{
		ID:      storage.NewID(),
		Name:    testInquiryNameValue,
		Email:   testInquiryEmailValue,
		Message: testInquiryMessageValue,
	}
	beforeCreate := time.Now().UTC().Add(-time.Second)
	require.NoError(t, database.Create(&inquiry).Error)

	var fetchedInquiry model.Inquiry
	require.NoError(t, database.First(&fetchedInquiry, "id = ?", inquiry.ID).Error)
	require.Equal(t, testInquiryNameValue, fetchedInquiry.Name)
	require.Equal(t, testInquiryEmailValue, fetchedInquiry.Email)
	require.Equal(t, testInquiryMessageValue, fetchedInquiry.Message)
	require.True(t, fetchedInquiry.CreatedAt.After(beforeCreate))
}

func TestAutoMigrateIsRepeatable(t *testing.T) {
	database := testutil.NewMigratedSQLiteDatabase(t)

	project := model.Project{
		ID:           storage.NewID(),
		Title:        testProjectTitleValue,
		Description:  testProjectDescriptionValue,
		Technologies: []string{"Go", "React"},
	}
	require.NoError(t, database.Create(&project).Error)

	require.NoError(t, storage.AutoMigrate(database))

	var fetchedProject model.Project
	require.NoError(t, database.First(&fetchedProject, "id = ?", project.ID).Error)
	require.Equal(t, []string{"Go", "React"}, fetchedProject.Technologies)
}

func TestPingReportsHealthyDatabase(t *testing.T) {
	database := testutil.NewMigratedSQLiteDatabase(t)

	pingContext, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, storage.Ping(pingContext, database))
}

func TestOpenDatabaseValidation(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	testCases := []struct {
		name              string
		configuration     storage.Config
		expectedRootError error
	}{
		{
			name: testMissingDriverDescription,
			configuration: storage.Config{
				DriverName:     "",
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrMissingDatabaseDriverName,
		},
		{
			name: testUnsupportedDriverDescription,
			configuration: storage.Config{
				DriverName:     testUnsupportedDriverName,
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrUnsupportedDatabaseDriver,
		},
		{
			name: testMissingDataSourceDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNameSQLite,
				DataSourceName: "",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
		{
			name: testMissingPostgresDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNamePostgres,
				DataSourceName: "  ",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			_, openErr := storage.OpenDatabase(testCase.configuration)
			require.Error(testingT, openErr)
			require.True(testingT, errors.Is(openErr, testCase.expectedRootError))
		})
	}
}

func TestNewIDReturnsDistinctValues(t *testing.T) {
	require.NotEqual(t, storage.NewID(), storage.NewID())
	require.Len(t, storage.NewID(), 36)
}

func TestCloseReleasesPool(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)
	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(t, openErr)

	require.NoError(t, storage.Close(database))
	require.Error(t, storage.Ping(context.Background(), database))
	require.NoError(t, storage.Close(nil))
}
