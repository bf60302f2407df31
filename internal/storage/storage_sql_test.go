package storage

import (
	"context"
	"testing"

	"astrona/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB builds statements against the postgres dialect without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=astrona dbname=astrona sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db
}

func captureUpdates(t *testing.T, db *gorm.DB) *[]string {
	t.Helper()
	var stmts []string
	err := db.Callback().Update().After("gorm:update").Register("test:capture", func(tx *gorm.DB) {
		stmts = append(stmts, tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...))
	})
	require.NoError(t, err)
	return &stmts
}

func TestAdvanceStatus_FiltersOnLowerStatuses(t *testing.T) {
	tests := []struct {
		to   models.MessageStatus
		want string
	}{
		{models.StatusDelivered, "status IN ('sent')"},
		{models.StatusSeen, "status IN ('sent','delivered')"},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			db := dryRunDB(t)
			stmts := captureUpdates(t, db)
			s := NewStorageService(db, nil)

			_, err := s.AdvanceStatus(context.Background(), "A:B", "m1", tt.to)
			require.NoError(t, err)

			require.Len(t, *stmts, 1)
			sql := (*stmts)[0]
			assert.Contains(t, sql, tt.want)
			assert.Contains(t, sql, "thread_id = 'A:B' AND id = 'm1'")
			assert.NotContains(t, sql, "status IN ('seen'")
		})
	}
}

func TestAdvanceStatus_NothingBelowSent(t *testing.T) {
	db := dryRunDB(t)
	stmts := captureUpdates(t, db)
	s := NewStorageService(db, nil)

	changed, err := s.AdvanceStatus(context.Background(), "A:B", "m1", models.StatusSent)

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, *stmts, "no statement is issued for a move to the lowest status")
}

func TestSeenCandidates_RecipientAndUnseenOnly(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var msgs []models.Message
		return seenCandidates(tx, "A:B", "B", []string{"m1", "m2"}).Find(&msgs)
	})

	assert.Contains(t, sql, "recipient_id = 'B'")
	assert.Contains(t, sql, "id IN ('m1','m2')")
	assert.Contains(t, sql, "status IN ('sent','delivered')")
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, "%ann%", likePattern("ann"))
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}

func TestSearchUsers_CaseInsensitiveSubstring(t *testing.T) {
	db := dryRunDB(t)
	var stmts []string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		stmts = append(stmts, tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...))
	}))
	s := NewStorageService(db, nil)

	_, err := s.SearchUsers(context.Background(), "Al", 20)

	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "username ILIKE '%Al%'")
	assert.Contains(t, stmts[0], "LIMIT 20")
}
