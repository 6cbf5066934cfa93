package repository

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"erp-access/internal/domain"
)

// MemoryUsersRepo supports auth/admin flows when DB is disabled (dev) and unit tests.
type MemoryUsersRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]domain.User // userID -> User

	companies CompaniesRepository // optional: 用于补全登录响应里的公司信息
}

func NewMemoryUsersRepo(companies CompaniesRepository) *MemoryUsersRepo {
	return &MemoryUsersRepo{
		nextID:    1,
		users:     map[int64]domain.User{},
		companies: companies,
	}
}

var _ UsersRepository = (*MemoryUsersRepo)(nil)

func (r *MemoryUsersRepo) GetUser(_ context.Context, userID int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: user_id=%d", userID)
	}
	return &u, nil
}

func (r *MemoryUsersRepo) GetUserForLogin(ctx context.Context, companyID *int64, accountHash, passwordHash []byte) (*UserLoginInfo, error) {
	if len(accountHash) == 0 || len(passwordHash) == 0 {
		return nil, fmt.Errorf("account_hash and password_hash are required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if companyID == nil {
			if u.CompanyID.Valid {
				continue
			}
		} else {
			if !u.CompanyID.Valid || u.CompanyID.Int64 != *companyID {
				continue
			}
		}
		if !bytes.Equal(u.PasswordHash, passwordHash) {
			continue
		}
		accountType := ""
		switch {
		case len(u.EmailHash) > 0 && bytes.Equal(u.EmailHash, accountHash):
			accountType = "email"
		case bytes.Equal(u.UserAccountHash, accountHash):
			accountType = "account"
		default:
			continue
		}

		info := &UserLoginInfo{
			UserID:      u.UserID,
			UserAccount: u.UserAccount,
			Nickname:    u.Nickname.String,
			Status:      u.Status,
			AccountType: accountType,
		}
		if u.CompanyID.Valid {
			cid := u.CompanyID.Int64
			info.CompanyID = &cid
			if r.companies != nil {
				if c, err := r.companies.GetCompany(ctx, cid); err == nil {
					info.CompanyName = c.CompanyName
					info.Domain = c.Domain
				}
			}
		}
		return info, nil
	}

	return nil, fmt.Errorf("user not found")
}

func (r *MemoryUsersRepo) SearchCompaniesForLogin(_ context.Context, accountHash, passwordHash []byte) ([]CompanyLoginMatch, error) {
	if len(accountHash) == 0 || len(passwordHash) == 0 {
		return nil, fmt.Errorf("account_hash and password_hash are required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []CompanyLoginMatch
	for _, u := range r.users {
		if !u.CompanyID.Valid || u.Status != "active" {
			continue
		}
		if !bytes.Equal(u.PasswordHash, passwordHash) {
			continue
		}
		switch {
		case len(u.EmailHash) > 0 && bytes.Equal(u.EmailHash, accountHash):
			matches = append(matches, CompanyLoginMatch{CompanyID: u.CompanyID.Int64, AccountType: "email"})
		case bytes.Equal(u.UserAccountHash, accountHash):
			matches = append(matches, CompanyLoginMatch{CompanyID: u.CompanyID.Int64, AccountType: "account"})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CompanyID < matches[j].CompanyID })

	return matches, nil
}

func (r *MemoryUsersRepo) ListUsers(_ context.Context, companyID *int64, filter UsersFilter, page, size int) ([]*domain.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []domain.User
	for _, u := range r.users {
		if companyID != nil && (!u.CompanyID.Valid || u.CompanyID.Int64 != *companyID) {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(u.UserAccount), s) &&
				!strings.Contains(strings.ToLower(u.Nickname.String), s) &&
				!strings.Contains(strings.ToLower(u.Email.String), s) {
				continue
			}
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	out := make([]*domain.User, 0, end-start)
	for i := start; i < end; i++ {
		u := all[i]
		out = append(out, &u)
	}
	return out, total, nil
}

func (r *MemoryUsersRepo) CreateUser(_ context.Context, user *domain.User) (int64, error) {
	if user.UserAccount == "" || len(user.UserAccountHash) == 0 {
		return 0, fmt.Errorf("user_account and user_account_hash are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	u.UserID = r.nextID
	r.nextID++
	if u.Status == "" {
		u.Status = "active"
	}
	r.users[u.UserID] = u
	return u.UserID, nil
}

func (r *MemoryUsersRepo) UpdateUserPassword(_ context.Context, userID int64, passwordHash []byte) error {
	if len(passwordHash) == 0 {
		return fmt.Errorf("password_hash is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}
	u.PasswordHash = passwordHash
	r.users[userID] = u
	return nil
}

func (r *MemoryUsersRepo) UpdateUserStatus(_ context.Context, userID int64, status string) error {
	if status != "active" && status != "locked" {
		return fmt.Errorf("invalid status: %s", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}
	u.Status = status
	r.users[userID] = u
	return nil
}

func (r *MemoryUsersRepo) UpdateUserLastLogin(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}
	u.LastLoginAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.users[userID] = u
	return nil
}
