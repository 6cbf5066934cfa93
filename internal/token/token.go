package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Claims 访问令牌声明：uid 是唯一的身份事实来源，
// 公司/角色等租户上下文不进令牌，每次请求重新解析
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Manager 负责访问令牌的签发与校验（RS256）
// 只配公钥时为校验-only 模式（网关侧签发、服务侧验证的部署形态）
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	issuer     string
}

// NewManager 从 PEM 构造；privateKeyPEM 可为空（校验-only）
func NewManager(privateKeyPEM, publicKeyPEM string, accessTTL time.Duration, issuer string) (*Manager, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("public key PEM is required")
	}

	var privateKey *rsa.PrivateKey
	if privateKeyPEM != "" {
		block, _ := pem.Decode([]byte(privateKeyPEM))
		if block == nil {
			return nil, errors.New("failed to decode private key PEM")
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		privateKey = key
	}

	publicKey, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Manager{
		privateKey: privateKey,
		publicKey:  publicKey,
		accessTTL:  accessTTL,
		issuer:     issuer,
	}, nil
}

// Issue 为 userID 签发访问令牌，返回令牌串和签发时间
func (m *Manager) Issue(userID int64) (string, time.Time, error) {
	if m.privateKey == nil {
		return "", time.Time{}, errors.New("manager has no private key (verify-only mode)")
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			ID:        uuid.New().String(),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := tok.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, now, nil
}

// Verify 校验令牌并返回声明
// 过期返回 ErrTokenExpired（调用方据此回 401 + 特定错误码，触发前端重新登录）
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidSignature
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParsePublicKey 解析 PKIX PEM 公钥
func ParsePublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to decode public key PEM")
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	publicKey, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return publicKey, nil
}

// FetchPublicKey 从远端拉取 PEM 公钥（TOKEN_PUBKEY_URL 部署形态：密钥由身份服务统一下发）
func FetchPublicKey(ctx context.Context, url string) (string, error) {
	client := resty.New().SetTimeout(10 * time.Second)
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch public key: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("failed to fetch public key: status=%d", resp.StatusCode())
	}
	pemText := string(resp.Body())
	if _, err := ParsePublicKey(pemText); err != nil {
		return "", fmt.Errorf("fetched public key is invalid: %w", err)
	}
	return pemText, nil
}

// GenerateKeyPair 生成一对开发/测试用 RSA 密钥（生产环境使用外部密钥管理）
func GenerateKeyPair() (privateKeyPEM, publicKeyPEM string, err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate private key: %w", err)
	}

	privateKeyPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}))

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicKeyPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: publicKeyBytes,
	}))

	return privateKeyPEM, publicKeyPEM, nil
}
