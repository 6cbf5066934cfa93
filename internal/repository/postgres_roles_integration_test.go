// +build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"

	"erp-access/internal/config"
	"erp-access/internal/database"
	"erp-access/internal/domain"
)

// 获取测试数据库连接
func getTestDB(t *testing.T) *sql.DB {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "erp"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}
	return db
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// 清理测试数据
func cleanupAssignments(db *sql.DB, userID int64) {
	db.Exec(`DELETE FROM `+TableUserRoles+` WHERE user_id = $1`, userID)
	db.Exec(`DELETE FROM `+TableUsers+` WHERE user_id = $1`, userID)
}

func TestPostgresRolesRepository_AssignmentLifecycle(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresRolesRepository(db)
	ctx := context.Background()

	// 准备角色（schema.sql 已 seed CompanyAdmin）
	roles, err := repo.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) == 0 {
		t.Skip("no roles seeded, run scripts/schema.sql first")
	}
	roleID := roles[0].RoleID

	// 准备用户
	var userID int64
	err = db.QueryRow(
		`INSERT INTO `+TableUsers+` (company_id, user_account, user_account_hash, status)
		 VALUES (NULL, 'it-test-user', '\x00'::bytea, 'active') RETURNING user_id`,
	).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to insert test user: %v", err)
	}
	defer cleanupAssignments(db, userID)

	// 创建分配（平台级）
	assignmentID, err := repo.CreateAssignment(ctx, &domain.RoleAssignment{
		UserID: userID,
		RoleID: roleID,
	})
	if err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}
	if assignmentID == 0 {
		t.Fatal("expected non-zero assignment_id")
	}

	// 重复创建：幂等，返回同一行
	again, err := repo.CreateAssignment(ctx, &domain.RoleAssignment{
		UserID: userID,
		RoleID: roleID,
	})
	if err != nil {
		t.Fatalf("duplicate CreateAssignment failed: %v", err)
	}
	if again != assignmentID {
		t.Errorf("expected idempotent create, got %d and %d", assignmentID, again)
	}

	// 查询
	list, err := repo.ListAssignmentsForUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListAssignmentsForUser failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(list))
	}
	if list[0].RoleLevel == 0 {
		t.Error("expected role level to be joined in")
	}

	// 删除
	if err := repo.DeleteAssignment(ctx, assignmentID); err != nil {
		t.Fatalf("DeleteAssignment failed: %v", err)
	}
	list, err = repo.ListAssignmentsForUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListAssignmentsForUser after delete failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no assignments after delete, got %d", len(list))
	}
}
