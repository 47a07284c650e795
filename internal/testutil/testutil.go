// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"telehealth/internal/config"
	"telehealth/internal/models"
)

var dbSeq atomic.Int64

// OpenDB opens a private in-memory SQLite database with foreign keys on
// and the production schema applied. It is closed via t.Cleanup.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the shared-cache database free of lock contention
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with a cheap bcrypt hash of password.
func CreateUser(t *testing.T, db *gorm.DB, username, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Username: username, Password: string(hash), Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// CreateConsultation inserts a pending consultation between patient and doctor.
func CreateConsultation(t *testing.T, db *gorm.DB, patient, doctor *models.User) *models.Consultation {
	t.Helper()
	c := &models.Consultation{
		PatientID:    patient.ID,
		DoctorID:     doctor.ID,
		ScheduledFor: time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second),
		Status:       models.StatusPending,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create consultation: %v", err)
	}
	return c
}
