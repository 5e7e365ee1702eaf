package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/domain/entity"
	"github.com/expenseflow/backend/pkg/utils"
)

// CompanyService handles company signup and user creation
type CompanyService interface {
	// CreateCompany registers a company. When currency is empty it is
	// defaulted from the signup country via the country metadata cache.
	CreateCompany(ctx context.Context, name, country, currency string) (*entity.Company, error)

	GetCompany(ctx context.Context, id int64) (*entity.Company, error)

	CreateUser(ctx context.Context, user *entity.User) (*entity.User, error)
}

type companyServiceImpl struct {
	companyRepo port.CompanyRepository
	userRepo    port.UserRepository
	currency    *CurrencyService
	logger      *zap.Logger
}

// NewCompanyService creates a new CompanyService
func NewCompanyService(
	companyRepo port.CompanyRepository,
	userRepo port.UserRepository,
	currency *CurrencyService,
	logger *zap.Logger,
) CompanyService {
	return &companyServiceImpl{
		companyRepo: companyRepo,
		userRepo:    userRepo,
		currency:    currency,
		logger:      logger,
	}
}

func (s *companyServiceImpl) CreateCompany(ctx context.Context, name, country, currency string) (*entity.Company, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		resolved, err := s.currency.CurrencyForCountry(ctx, country)
		if err != nil {
			return nil, err
		}
		code = resolved
	}

	company := &entity.Company{Name: name, Currency: code}
	if err := s.companyRepo.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	s.logger.Info("Company created",
		zap.Int64("id", company.ID),
		zap.String("name", name),
		zap.String("currency", code))
	return company, nil
}

func (s *companyServiceImpl) GetCompany(ctx context.Context, id int64) (*entity.Company, error) {
	company, err := s.companyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("%w: id %d", ErrCompanyNotFound, id)
	}
	return company, nil
}

func (s *companyServiceImpl) CreateUser(ctx context.Context, user *entity.User) (*entity.User, error) {
	if err := utils.ValidateEmail(user.Email); err != nil {
		return nil, err
	}

	company, err := s.companyRepo.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: id %d", ErrCompanyNotFound, user.CompanyID)
	}

	if user.ManagerID != nil {
		manager, err := s.userRepo.GetByID(ctx, *user.ManagerID)
		if err != nil {
			return nil, fmt.Errorf("get manager: %w", err)
		}
		if manager == nil || manager.CompanyID != user.CompanyID {
			return nil, fmt.Errorf("%w: manager %d", ErrUserNotFound, *user.ManagerID)
		}
	}

	if user.Role == "" {
		user.Role = entity.RoleEmployee
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User created",
		zap.Int64("id", user.ID),
		zap.Int64("company_id", user.CompanyID),
		zap.String("role", string(user.Role)))
	return user, nil
}
