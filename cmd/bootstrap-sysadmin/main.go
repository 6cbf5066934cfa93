package main

import (
	"flag"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"erp-access/internal/config"
	"erp-access/internal/database"
	"erp-access/internal/repository"
	"erp-access/internal/service"
)

// bootstrap-sysadmin 初始化平台管理员：
// 1) 确保 SystemAdmin 角色存在
// 2) 创建/更新 sysadmin 平台账号（company_id NULL）
// 3) 建立平台级角色分配
// 幂等：重复执行只会刷新密码哈希。
func main() {
	account := flag.String("account", "sysadmin", "platform admin account")
	password := flag.String("password", "ChangeMe123!", "initial password (change after first login)")
	flag.Parse()

	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	accountHash := service.HashAccount(*account)
	passwordHash := service.HashPassword(*password)

	// 1) SystemAdmin 角色
	var roleID int64
	err = db.QueryRow(
		`INSERT INTO `+repository.TableRoles+` (role_name, level, description, is_active)
		 VALUES ('SystemAdmin', 100, 'Platform administrator', TRUE)
		 ON CONFLICT (role_name)
		 DO UPDATE SET level = EXCLUDED.level, is_active = TRUE
		 RETURNING role_id`,
	).Scan(&roleID)
	if err != nil {
		log.Fatalf("Failed to ensure SystemAdmin role: %v", err)
	}

	// 2) 平台账号（company_id IS NULL）
	var userID int64
	err = db.QueryRow(
		`INSERT INTO `+repository.TableUsers+` (company_id, user_account, user_account_hash, password_hash, nickname, status)
		 VALUES (NULL, $1, $2, $3, 'SystemAdmin', 'active')
		 ON CONFLICT (user_account) WHERE company_id IS NULL
		 DO UPDATE SET user_account_hash = EXCLUDED.user_account_hash,
		               password_hash = EXCLUDED.password_hash,
		               status = 'active'
		 RETURNING user_id`,
		*account, accountHash, passwordHash,
	).Scan(&userID)
	if err != nil {
		log.Fatalf("Failed to ensure sysadmin user: %v", err)
	}

	// 3) 平台级角色分配（company_id NULL）
	_, err = db.Exec(
		`INSERT INTO `+repository.TableUserRoles+` (user_id, role_id, company_id)
		 VALUES ($1, $2, NULL)
		 ON CONFLICT (user_id, role_id, company_id) DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		log.Fatalf("Failed to ensure role assignment: %v", err)
	}

	fmt.Printf("Platform admin ready: user_id=%d role_id=%d account=%s\n", userID, roleID, *account)
}
