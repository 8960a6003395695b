package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Product is a row of the investment product catalog.
type Product struct {
	Code           string  `json:"product_code"`
	Name           string  `json:"product_name"`
	Group          string  `json:"product_group"`
	RiskCategory   string  `json:"risk_category"`
	Fee            float64 `json:"fee"`
	ExpectedReturn float64 `json:"expected_return"`
	Description    string  `json:"description"`
}

// ProductSort orders product search results.
type ProductSort string

const (
	SortFeesAsc    ProductSort = "fees_asc"
	SortReturnDesc ProductSort = "return_desc"
)

// ProductQuery filters the product catalog. Zero values mean "no filter";
// an empty result is valid, not an error.
type ProductQuery struct {
	Keyword  string
	Category string
	Sort     ProductSort
	Limit    int
}

// ProductCatalog is the structured-lookup collaborator contract.
type ProductCatalog interface {
	Search(ctx context.Context, q ProductQuery) ([]Product, error)
}

// ProductService implements ProductCatalog on Postgres.
type ProductService struct {
	db *sql.DB
}

// NewProductService creates a new ProductService.
func NewProductService(db *sql.DB) *ProductService {
	return &ProductService{db: db}
}

// Search runs a structured catalog query.
func (s *ProductService) Search(ctx context.Context, q ProductQuery) ([]Product, error) {
	var (
		conds []string
		args  []any
	)
	if q.Keyword != "" {
		args = append(args, "%"+strings.ToLower(q.Keyword)+"%")
		conds = append(conds, fmt.Sprintf("lower(product_name) LIKE $%d", len(args)))
	}
	if q.Category != "" {
		args = append(args, strings.ToUpper(q.Category))
		conds = append(conds, fmt.Sprintf("upper(product_group) = $%d", len(args)))
	}

	query := `SELECT product_code, product_name, product_group, risk_category,
		fee, expected_return, description FROM investment_products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	switch q.Sort {
	case SortFeesAsc:
		query += " ORDER BY fee ASC"
	case SortReturnDesc:
		query += " ORDER BY expected_return DESC"
	default:
		query += " ORDER BY expected_return DESC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Code, &p.Name, &p.Group, &p.RiskCategory,
			&p.Fee, &p.ExpectedReturn, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
