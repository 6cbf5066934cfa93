package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config erp-access（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Token      TokenConfig
	ScopeCache ScopeCacheConfig
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// TokenConfig 访问令牌配置
// PublicKeyURL 非空时启动期从身份服务拉取公钥（覆盖 PublicKeyPEM）；
// PrivateKeyPEM 为空时本服务不签发令牌，只做校验
type TokenConfig struct {
	PrivateKeyPEM string
	PublicKeyPEM  string
	PublicKeyURL  string
	Issuer        string
	AccessTTL     time.Duration
}

// ScopeCacheConfig scope 解析缓存配置
// TTL 必须保持短：角色/白名单变更后，即使错过显式失效，
// 旧 scope 的存活窗口也以秒计
type ScopeCacheConfig struct {
	TTL time.Duration
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, erp-access will fall back to in-memory repos.
	// This avoids "empty admin pages" when starting with plain `go run`.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "erp")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 令牌配置：密钥 PEM 从文件读（路径由环境变量给出），或从 URL 拉取公钥
	cfg.Token.PrivateKeyPEM = readFileEnv("TOKEN_PRIVATE_KEY_FILE")
	cfg.Token.PublicKeyPEM = readFileEnv("TOKEN_PUBLIC_KEY_FILE")
	cfg.Token.PublicKeyURL = getEnv("TOKEN_PUBKEY_URL", "")
	cfg.Token.Issuer = getEnv("TOKEN_ISSUER", "erp-access")
	cfg.Token.AccessTTL = time.Duration(parseInt(getEnv("TOKEN_ACCESS_TTL_SECONDS", "7200"), 7200)) * time.Second

	cfg.ScopeCache.TTL = time.Duration(parseInt(getEnv("SCOPE_CACHE_TTL_SECONDS", "10"), 10)) * time.Second

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// readFileEnv 读取环境变量指向的文件内容；变量未设或读失败时返回 ""
func readFileEnv(key string) string {
	p := os.Getenv(key)
	if p == "" {
		return ""
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	return string(b)
}
