package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const customerColumns = `id, company_id, owner_id, name, email, phone, organization, COALESCE(address, ''), tax_id,
	COALESCE(notes, ''), source_lead_id, created_at, updated_at`

const customerInsertColumns = `id, company_id, owner_id, name, email, phone, organization, address, tax_id,
	notes, source_lead_id, created_at, updated_at`

type CustomerRepository struct {
	repo
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{repo{db: db}}
}

func scanCustomer(row interface{ Scan(...interface{}) error }) (*models.Customer, error) {
	var c models.Customer
	var sourceLead sql.NullString
	if err := row.Scan(&c.ID, &c.CompanyID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.Organization, &c.Address,
		&c.TaxID, &c.Notes, &sourceLead, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.SourceLeadID = ptrFromNull(sourceLead)
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableCustomer, customerInsertColumns)
	_, err := r.exec(ctx).ExecContext(ctx, query, c.ID, c.CompanyID, c.OwnerID, c.Name, c.Email, c.Phone,
		c.Organization, c.Address, c.TaxID, c.Notes, nullStringPtr(c.SourceLeadID), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CustomerRepository) Get(ctx context.Context, scope domain.Scope, id string) (*models.Customer, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND %s", customerColumns, constants.TableCustomer, where)
	return scanCustomer(r.exec(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
}

func (r *CustomerRepository) List(ctx context.Context, scope domain.Scope, f models.CustomerFilter) ([]*models.Customer, int, error) {
	where, args := scopeFilter(scope, "", true)
	clauses := []string{where}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		clauses = append(clauses, "(name LIKE ? OR email LIKE ? OR phone LIKE ? OR organization LIKE ?)")
		args = append(args, like, like, like, like)
	}
	whereSQL := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", constants.TableCustomer, whereSQL)
	if err := r.exec(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY name ASC LIMIT ? OFFSET ?", customerColumns, constants.TableCustomer, whereSQL)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	customers := make([]*models.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func (r *CustomerRepository) Update(ctx context.Context, scope domain.Scope, c *models.Customer) error {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf(`UPDATE %s SET owner_id = ?, name = ?, email = ?, phone = ?, organization = ?, address = ?,
		tax_id = ?, notes = ?, updated_at = ? WHERE id = ? AND %s`, constants.TableCustomer, where)
	values := []interface{}{c.OwnerID, c.Name, c.Email, c.Phone, c.Organization, c.Address, c.TaxID, c.Notes, c.UpdatedAt, c.ID}
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, append(values, args...)...))
}

func (r *CustomerRepository) Delete(ctx context.Context, scope domain.Scope, id string) error {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND %s", constants.TableCustomer, where)
	return affectedOne(r.exec(ctx).ExecContext(ctx, query, append([]interface{}{id}, args...)...))
}

// CountReferences counts quotations and event orders pointing at the customer.
func (r *CustomerRepository) CountReferences(ctx context.Context, companyID, id string) (quotations int, eventOrders int, err error) {
	query := fmt.Sprintf(`SELECT
		(SELECT COUNT(*) FROM %s WHERE company_id = ? AND customer_id = ?),
		(SELECT COUNT(*) FROM %s WHERE company_id = ? AND customer_id = ?)`,
		constants.TableQuotation, constants.TableEventOrder)
	err = r.exec(ctx).QueryRowContext(ctx, query, companyID, id, companyID, id).Scan(&quotations, &eventOrders)
	return quotations, eventOrders, err
}

// TotalPaid sums paid payments of the customer.
func (r *CustomerRepository) TotalPaid(ctx context.Context, companyID, id string) (float64, error) {
	var total float64
	query := fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM %s WHERE company_id = ? AND customer_id = ? AND status = ?", constants.TablePayment)
	err := r.exec(ctx).QueryRowContext(ctx, query, companyID, id, constants.PaymentPaid).Scan(&total)
	return total, err
}

// ListForExport streams every customer in scope, capped at max rows.
func (r *CustomerRepository) ListForExport(ctx context.Context, scope domain.Scope, max int) ([]*models.Customer, error) {
	where, args := scopeFilter(scope, "", true)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY name ASC LIMIT ?", customerColumns, constants.TableCustomer, where)
	rows, err := r.exec(ctx).QueryContext(ctx, query, append(args, max)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]*models.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
