package db

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	_, err := d.Bun.NewInsert().Model(tenant).Exec(ctx)
	return err
}

func (d *DB) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	tenant := new(models.Tenant)
	if err := d.Bun.NewSelect().Model(tenant).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (d *DB) CreateCompany(ctx context.Context, company *models.Company) error {
	_, err := d.Bun.NewInsert().Model(company).Exec(ctx)
	return err
}

func (d *DB) GetCompanyByID(ctx context.Context, id string) (*models.Company, error) {
	company := new(models.Company)
	if err := d.Bun.NewSelect().Model(company).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return company, nil
}

func (d *DB) UpdateCompany(ctx context.Context, company *models.Company) error {
	_, err := d.Bun.NewUpdate().
		Model(company).
		Column("name", "address", "category", "is_active", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// ListCompanies returns companies ordered by name. An empty tenantID lists
// every tenant's companies.
func (d *DB) ListCompanies(ctx context.Context, tenantID string, activeOnly bool) ([]models.Company, error) {
	var companies []models.Company
	q := d.Bun.NewSelect().Model(&companies)
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.OrderExpr("name ASC").Scan(ctx)
	return companies, err
}
