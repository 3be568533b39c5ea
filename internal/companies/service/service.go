package companies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

type CompanyDBLayer interface {
	GetTenantByID(ctx context.Context, id string) (*models.Tenant, error)
	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompanyByID(ctx context.Context, id string) (*models.Company, error)
	UpdateCompany(ctx context.Context, company *models.Company) error
	ListCompanies(ctx context.Context, tenantID string, activeOnly bool) ([]models.Company, error)
}

type CompanyService struct {
	DB     CompanyDBLayer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewCompanyService(db CompanyDBLayer, log *logger.Logger) *CompanyService {
	return &CompanyService{DB: db, Logger: log, Now: time.Now}
}

func (s *CompanyService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *CompanyService) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := s.DB.GetTenantByID(ctx, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("tenant", tenantID)
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load tenant %s: %w", tenantID, err))
	}
	return tenant, nil
}

func (s *CompanyService) GetCompany(ctx context.Context, companyID string) (*models.Company, error) {
	company, err := s.DB.GetCompanyByID(ctx, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("company", companyID)
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load company %s: %w", companyID, err))
	}
	return company, nil
}

// ListPublic returns the active companies of every tenant.
func (s *CompanyService) ListPublic(ctx context.Context) ([]models.Company, error) {
	companies, err := s.DB.ListCompanies(ctx, "", true)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list companies: %w", err))
	}
	return companies, nil
}

func (s *CompanyService) ListForTenant(ctx context.Context, tenantID string) ([]models.Company, error) {
	companies, err := s.DB.ListCompanies(ctx, tenantID, false)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list companies of tenant %s: %w", tenantID, err))
	}
	return companies, nil
}

type CompanyInput struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Category *string `json:"category"`
	IsActive *bool   `json:"isActive"`
}

func (s *CompanyService) CreateCompany(ctx context.Context, tenantID string, in CompanyInput) (*models.Company, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperror.Validation("name is required")
	}
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive {
		return nil, apperror.Forbidden("tenant %s is not active", tenantID)
	}

	now := s.now()
	company := &models.Company{
		ID:        utils.GenerateID(),
		TenantID:  tenant.ID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(company, in)
	if err := s.DB.CreateCompany(ctx, company); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create company: %w", err))
	}
	s.Logger.Info("COMPANY", fmt.Sprintf("created company %s (%s) in tenant %s", company.ID, company.Name, tenantID))
	return company, nil
}

func (s *CompanyService) UpdateCompany(ctx context.Context, tenantID, companyID string, in CompanyInput) (*models.Company, error) {
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.TenantID != tenantID {
		return nil, apperror.NotFound("company", companyID)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperror.Validation("name must not be empty")
	}
	apply(company, in)
	company.UpdatedAt = s.now()
	if err := s.DB.UpdateCompany(ctx, company); err != nil {
		return nil, apperror.Internal(fmt.Errorf("update company %s: %w", companyID, err))
	}
	return company, nil
}

func apply(c *models.Company, in CompanyInput) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Address != nil {
		c.Address = *in.Address
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
}
