package database

import (
	"errors"
	"fmt"
	"testing"

	"snapshare/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_MigratesAllModels(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	for _, table := range []string{"users", "posts", "comments", "likes", "follows", "bookmarks"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.Follow{}, "idx_follower_following"))
	assert.True(t, db.Migrator().HasIndex(&models.Like{}, "idx_like_user_post"))
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.User{Username: "alice", Email: "a@example.com", Password: "x"}).Error)
	dupErr := db.Create(&models.User{Username: "alice2", Email: "a@example.com", Password: "x"}).Error
	require.Error(t, dupErr)

	assert.True(t, IsUniqueViolation(dupErr))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("timeout")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "select", statementVerb(`SELECT * FROM "posts"`))
	assert.Equal(t, "insert", statementVerb("  INSERT INTO likes"))
	assert.Equal(t, "other", statementVerb("PRAGMA foreign_keys"))
	assert.Equal(t, "other", statementVerb(""))
}
