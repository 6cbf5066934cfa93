package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"erp-access/internal/domain"
	"erp-access/internal/repository"
	"erp-access/internal/token"
)

// AuthService 认证服务接口
type AuthService interface {
	// Login 登录：核对哈希凭证，签发访问令牌
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)

	// SearchCompanies 登录页的公司自动解析（凭证匹配多个公司时前端据此弹选择框）
	SearchCompanies(ctx context.Context, req SearchCompaniesRequest) (*SearchCompaniesResponse, error)
}

// authService 实现
type authService struct {
	usersRepo repository.UsersRepository
	access    AccessService
	tokens    *token.Manager
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(usersRepo repository.UsersRepository, access AccessService, tokens *token.Manager, logger *zap.Logger) AuthService {
	return &authService{
		usersRepo: usersRepo,
		access:    access,
		tokens:    tokens,
		logger:    logger,
	}
}

// LoginRequest 登录请求
// 凭证只收哈希：前端先行 SHA-256，明文不过线
type LoginRequest struct {
	CompanyID    *int64 // 可选，为空则自动解析
	AccountHash  string // SHA256(lower(account)) 的 hex 编码，必填
	PasswordHash string // SHA256(password) 的 hex 编码，必填
	IPAddress    string // 客户端 IP（用于日志）
	UserAgent    string // 客户端 User-Agent（用于日志）
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      int64  `json:"userId"`
	UserAccount string `json:"user_account"`
	NickName    string `json:"nickName"`
	CompanyID   *int64 `json:"company_id"`
	CompanyName string `json:"company_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Role        string `json:"role"`
	RoleLevel   int    `json:"role_level"`
	Platform    bool   `json:"platform"`
	HomePath    string `json:"homePath"`
}

// SearchCompaniesRequest 公司搜索请求
type SearchCompaniesRequest struct {
	AccountHash  string
	PasswordHash string
}

// SearchCompaniesResponse 公司搜索响应
type SearchCompaniesResponse struct {
	Companies []CompanyOption `json:"companies"`
}

// CompanyOption 可选公司
type CompanyOption struct {
	CompanyID   int64  `json:"company_id"`
	AccountType string `json:"account_type"` // "email" | "account"
}

// Login 用户登录
func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	// 1. 参数验证和哈希解码
	accountHashBytes, passwordHashBytes, err := decodeCredentials(req.AccountHash, req.PasswordHash)
	if err != nil {
		s.logger.Warn("User login failed: invalid credentials format",
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "invalid_hash_format"),
			zap.Error(err),
		)
		return nil, fmt.Errorf("invalid credentials")
	}

	// 2. Company ID 自动解析（如果为空）
	companyID := req.CompanyID
	platformLogin := false
	if companyID == nil {
		matches, err := s.usersRepo.SearchCompaniesForLogin(ctx, accountHashBytes, passwordHashBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve company: %w", err)
		}

		switch len(matches) {
		case 0:
			// 没有公司账号命中：尝试平台账号（company_id IS NULL）
			platformLogin = true
		case 1:
			cid := matches[0].CompanyID
			companyID = &cid
		default:
			// IMPORTANT: keep message aligned with frontend expectations.
			return nil, fmt.Errorf("Multiple companies found, please select one")
		}
	}

	// 3. 用户验证
	var lookupCompany *int64
	if !platformLogin {
		lookupCompany = companyID
	}
	userInfo, err := s.usersRepo.GetUserForLogin(ctx, lookupCompany, accountHashBytes, passwordHashBytes)
	if err != nil {
		s.logger.Warn("User login failed: invalid credentials",
			zap.Bool("platform_login", platformLogin),
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "invalid_credentials"),
		)
		return nil, fmt.Errorf("invalid credentials")
	}

	if userInfo.Status != "active" {
		s.logger.Warn("User login failed: account not active",
			zap.Int64("user_id", userInfo.UserID),
			zap.String("user_account", userInfo.UserAccount),
			zap.String("status", userInfo.Status),
			zap.String("ip_address", req.IPAddress),
			zap.String("reason", "account_not_active"),
		)
		return nil, fmt.Errorf("user is not active")
	}

	// 4. 签发令牌（签发时间参与 scope 缓存键，先签发再解析）
	signed, issuedAt, err := s.tokens.Issue(userInfo.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	// 5. 解析 scope（取角色名/等级用于响应；登录本身不要求有分配）
	scope, err := s.access.ResolveScope(ctx, userInfo.UserID, issuedAt, userInfo.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scope: %w", err)
	}

	// 6. 登录后处理
	nickName := userInfo.Nickname
	if nickName == "" {
		// Prefer nickname; fall back to role/userAccount for display
		if scope.RoleName != "" {
			nickName = scope.RoleName
		} else {
			nickName = userInfo.UserAccount
		}
	}

	if err := s.usersRepo.UpdateUserLastLogin(ctx, userInfo.UserID); err != nil {
		// Log error but don't fail login
		s.logger.Warn("Failed to update last_login_at",
			zap.Int64("user_id", userInfo.UserID),
			zap.Error(err),
		)
	}

	s.logger.Info("User login successful",
		zap.Int64("user_id", userInfo.UserID),
		zap.String("user_account", userInfo.UserAccount),
		zap.String("account_type", userInfo.AccountType),
		zap.Bool("platform", scope.Platform),
		zap.String("role", scope.RoleName),
		zap.String("ip_address", req.IPAddress),
		zap.String("user_agent", req.UserAgent),
		zap.Time("login_time", time.Now()),
	)

	// 7. 构建响应
	return &LoginResponse{
		AccessToken: signed,
		UserID:      userInfo.UserID,
		UserAccount: userInfo.UserAccount,
		NickName:    nickName,
		CompanyID:   userInfo.CompanyID,
		CompanyName: userInfo.CompanyName,
		Domain:      userInfo.Domain,
		Role:        scope.RoleName,
		RoleLevel:   scope.RoleLevel,
		Platform:    scope.Platform,
		HomePath:    "/dashboard",
	}, nil
}

// SearchCompanies 公司自动解析
func (s *authService) SearchCompanies(ctx context.Context, req SearchCompaniesRequest) (*SearchCompaniesResponse, error) {
	accountHashBytes, passwordHashBytes, err := decodeCredentials(req.AccountHash, req.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	matches, err := s.usersRepo.SearchCompaniesForLogin(ctx, accountHashBytes, passwordHashBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to search companies: %w", domain.ErrFetch)
	}

	resp := &SearchCompaniesResponse{Companies: []CompanyOption{}}
	for _, m := range matches {
		resp.Companies = append(resp.Companies, CompanyOption{
			CompanyID:   m.CompanyID,
			AccountType: m.AccountType,
		})
	}
	return resp, nil
}

// decodeCredentials 校验并解码 hex 哈希凭证
func decodeCredentials(accountHash, passwordHash string) (account, password []byte, err error) {
	accountHash = strings.TrimSpace(accountHash)
	passwordHash = strings.TrimSpace(passwordHash)
	if accountHash == "" || passwordHash == "" {
		return nil, nil, fmt.Errorf("missing credentials")
	}

	account, err = hex.DecodeString(accountHash)
	if err != nil || len(account) == 0 {
		return nil, nil, fmt.Errorf("invalid account hash")
	}
	password, err = hex.DecodeString(passwordHash)
	if err != nil || len(password) == 0 {
		return nil, nil, fmt.Errorf("invalid password hash")
	}
	return account, password, nil
}

// HashAccount 账号哈希：sha256(lower(trim(account)))，与前端 crypto 规则一致
func HashAccount(account string) []byte {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(account))))
	return sum[:]
}

// HashPassword 密码哈希：sha256(password)，与前端 crypto 规则一致
func HashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}
