package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"erp-access/internal/config"
	"erp-access/internal/database"
	"erp-access/internal/domain"
	httpapi "erp-access/internal/http"
	"erp-access/internal/logger"
	"erp-access/internal/repository"
	"erp-access/internal/service"
	"erp-access/internal/store"
	"erp-access/internal/token"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "erp-access")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 令牌密钥：优先远端公钥，其次本地 PEM，开发模式临时生成
	tokens, err := buildTokenManager(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build token manager", zap.Error(err))
	}

	// 缓存层：Redis 未启用时用进程内 KV（语义一致）
	var kv store.KV
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = store.NewRedisKV(redisClient)
	} else {
		kv = store.NewMemoryKV()
	}

	// 数据层：DB 不可用时回落到内存 repo（开发联测不至于空页面）
	var db *sql.DB
	var usersRepo repository.UsersRepository
	var rolesRepo repository.RolesRepository
	var companiesRepo repository.CompaniesRepository
	var menusRepo repository.MenusRepository
	var auditRepo repository.AuditRepository
	var branches repository.BranchResolver

	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for erp-access")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		usersRepo = repository.NewPostgresUsersRepository(db)
		rolesRepo = repository.NewPostgresRolesRepository(db)
		companiesRepo = repository.NewPostgresCompaniesRepository(db)
		menusRepo = repository.NewPostgresMenusRepository(db)
		auditRepo = repository.NewPostgresAuditRepository(db)
		branches = repository.NewPostgresBranchResolver(db)
	} else {
		memCompanies := repository.NewMemoryCompaniesRepo()
		memUsers := repository.NewMemoryUsersRepo(memCompanies)
		memRoles := repository.NewMemoryRolesRepo()
		memMenus := repository.NewMemoryMenusRepo()
		seedMemoryData(ctx, memUsers, memRoles, memMenus)

		usersRepo = memUsers
		rolesRepo = memRoles
		companiesRepo = memCompanies
		menusRepo = memMenus
		auditRepo = repository.NewMemoryAuditRepo()
		branches = repository.NewMemoryBranchResolver()
	}

	// 服务层
	access := service.NewAccessService(rolesRepo, companiesRepo, menusRepo, branches, kv, cfg.ScopeCache.TTL, log)
	auth := service.NewAuthService(usersRepo, access, tokens, log)
	admin := service.NewAdminService(usersRepo, rolesRepo, companiesRepo, menusRepo, auditRepo, access, log)

	// 路由
	router := httpapi.NewRouter(log)
	mw := httpapi.NewAuthMiddleware(tokens, access, log)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(auth, log))
	router.RegisterAccessRoutes(mw, httpapi.NewMenuHandler(access, log))
	router.RegisterAdminRoutes(mw, httpapi.NewAdminHandler(admin, log))
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}

// buildTokenManager 按配置组装令牌管理器
func buildTokenManager(ctx context.Context, cfg *config.Config, log *zap.Logger) (*token.Manager, error) {
	publicPEM := cfg.Token.PublicKeyPEM
	if cfg.Token.PublicKeyURL != "" {
		fetched, err := token.FetchPublicKey(ctx, cfg.Token.PublicKeyURL)
		if err != nil {
			return nil, err
		}
		publicPEM = fetched
		log.Info("Token public key fetched", zap.String("url", cfg.Token.PublicKeyURL))
	}

	if publicPEM == "" {
		// 开发模式：没有配置任何密钥时临时生成一对（重启后旧令牌全部失效）
		priv, pub, err := token.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		log.Warn("No token keys configured, generated ephemeral dev key pair")
		return token.NewManager(priv, pub, cfg.Token.AccessTTL, cfg.Token.Issuer)
	}

	return token.NewManager(cfg.Token.PrivateKeyPEM, publicPEM, cfg.Token.AccessTTL, cfg.Token.Issuer)
}

// seedMemoryData 内存模式的最小可用数据：sysadmin 平台账号 + 角色 + 几个菜单
func seedMemoryData(ctx context.Context, users *repository.MemoryUsersRepo, roles *repository.MemoryRolesRepo, menus *repository.MemoryMenusRepo) {
	roles.SeedRole(domain.Role{RoleID: 1, RoleName: "SystemAdmin", Level: 100, Description: "Platform administrator"})
	roles.SeedRole(domain.Role{RoleID: 2, RoleName: "CompanyAdmin", Level: 80, Description: "Company administrator"})
	roles.SeedRole(domain.Role{RoleID: 3, RoleName: "BranchAdmin", Level: 40, Description: "Branch administrator"})
	roles.SeedRole(domain.Role{RoleID: 4, RoleName: "Employee", Level: 10, Description: "Regular employee"})

	menus.SeedMenu(domain.MenuEntry{MenuID: 1, MenuCode: "core.dashboard", Module: "core", SortOrder: 10, MinLevel: 10})
	menus.SeedMenu(domain.MenuEntry{MenuID: 2, MenuCode: "core.users", Module: "core", SortOrder: 20, MinLevel: 60})
	menus.SeedMenu(domain.MenuEntry{MenuID: 3, MenuCode: "hrms.employees", Module: "hrms", SortOrder: 30, MinLevel: 40})
	menus.SeedMenu(domain.MenuEntry{MenuID: 4, MenuCode: "ems.students", Module: "ems", SortOrder: 40, MinLevel: 40})
	menus.SeedMenu(domain.MenuEntry{MenuID: 5, MenuCode: "crm.customers", Module: "crm", SortOrder: 50, MinLevel: 40})

	// 平台账号（company_id NULL）：sysadmin / ChangeMe123!
	if os.Getenv("SEED_SYSADMIN") != "false" {
		userID, _ := users.CreateUser(ctx, &domain.User{
			UserAccount:     "sysadmin",
			UserAccountHash: service.HashAccount("sysadmin"),
			PasswordHash:    service.HashPassword("ChangeMe123!"),
			Status:          "active",
		})
		_, _ = roles.CreateAssignment(ctx, &domain.RoleAssignment{UserID: userID, RoleID: 1})
	}
}
