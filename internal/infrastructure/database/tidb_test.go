package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
)

func TestBuildDSN_Local(t *testing.T) {
	dsn := BuildDSN(config.DatabaseConfig{
		Host: "127.0.0.1", Port: "4000", User: "root", Password: "pw", Name: "crm",
	})
	assert.Contains(t, dsn, "root:pw@tcp(127.0.0.1:4000)/crm")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.NotContains(t, dsn, "tls=")
}

func TestBuildDSN_RemoteUsesTLS(t *testing.T) {
	dsn := BuildDSN(config.DatabaseConfig{
		Host: "gateway01.tidbcloud.com", Port: "4000", User: "u", Name: "crm",
	})
	assert.Contains(t, dsn, "tls=tidb")
}

func TestIsRemoteHost(t *testing.T) {
	assert.False(t, IsRemoteHost(""))
	assert.False(t, IsRemoteHost("localhost"))
	assert.False(t, IsRemoteHost("127.0.0.1"))
	assert.True(t, IsRemoteHost("db.internal"))
}

func TestConnection_Delegates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	conn := NewConnection(db)
	defer conn.Close()

	mock.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 3))
	res, err := conn.ExecContext(context.Background(), "DELETE FROM sessions WHERE expires_at < NOW()")
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
