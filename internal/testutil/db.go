// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/database"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	db, err := database.Connect("sqlite", dsn)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		UserName:   name,
		Email:      strings.ToLower(name) + "@example.com",
		ProfilePic: name + ".png",
		Role:       "client",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateAppointment(t *testing.T, db *gorm.DB, client, lawyer *models.User, at time.Time, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	a := &models.Appointment{
		ClientID: client.ID,
		LawyerID: lawyer.ID,
		DateTime: at.UTC(),
		Status:   status,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func CreateConsultation(t *testing.T, db *gorm.DB, client, lawyer *models.User) *models.Consultation {
	t.Helper()
	c := &models.Consultation{ClientID: client.ID, LawyerID: lawyer.ID, Active: true}
	require.NoError(t, db.Create(c).Error)
	return c
}
