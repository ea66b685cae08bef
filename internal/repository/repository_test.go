package repository

import (
	"testing"

	"doc-tracker/internal/model"
	"doc-tracker/pkg/config"
	"doc-tracker/pkg/db"

	"github.com/stretchr/testify/require"
)

// 每个测试一个全新的内存库
func setupTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, config.InitTest(), "Failed to initialize config")
	require.NoError(t, db.InitDB(config.GlobalConfig.Database), "Failed to connect to test database")
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
}

// 帮助函数：创建所有者、文档和分享
func seedShare(t *testing.T, token string) *model.Share {
	t.Helper()
	owner := &model.User{Email: token + "@owner.test", DisplayName: "Owner"}
	require.NoError(t, db.DB.Create(owner).Error)
	doc := &model.Document{OwnerID: owner.ID, Name: "Deck", NumPages: 3}
	require.NoError(t, db.DB.Create(doc).Error)
	share := &model.Share{Token: token, UserID: owner.ID, DocumentID: doc.ID, Active: true}
	require.NoError(t, db.DB.Create(share).Error)
	return share
}
