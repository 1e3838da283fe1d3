package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db *sqlx.DB, productID string) (Product, error) {
	const q = `SELECT * FROM products WHERE product_id = $1`

	var p Product
	if err := db.GetContext(ctx, &p, q, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("selecting product[%s]: %w", productID, err)
	}

	if err := loadVariants(ctx, db, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func FetchBySlug(ctx context.Context, db *sqlx.DB, slug string) (Product, error) {
	const q = `SELECT * FROM products WHERE slug = $1`

	var p Product
	if err := db.GetContext(ctx, &p, q, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("selecting product[slug=%s]: %w", slug, err)
	}

	if err := loadVariants(ctx, db, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func ListActive(ctx context.Context, db *sqlx.DB) ([]Product, error) {
	const q = `SELECT * FROM products WHERE active ORDER BY name`

	ps := []Product{}
	if err := db.SelectContext(ctx, &ps, q); err != nil {
		return nil, fmt.Errorf("selecting products: %w", err)
	}

	for i := range ps {
		if err := loadVariants(ctx, db, &ps[i]); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func loadVariants(ctx context.Context, db *sqlx.DB, p *Product) error {
	const vq = `SELECT * FROM product_variants WHERE product_id = $1 ORDER BY name`

	vs := []Variant{}
	if err := db.SelectContext(ctx, &vs, vq, p.ID); err != nil {
		return fmt.Errorf("selecting variants of product[%s]: %w", p.ID, err)
	}

	const oq = `SELECT * FROM variant_options WHERE variant_id = $1 ORDER BY name`

	for i := range vs {
		os := []Option{}
		if err := db.SelectContext(ctx, &os, oq, vs[i].ID); err != nil {
			return fmt.Errorf("selecting options of variant[%s]: %w", vs[i].ID, err)
		}
		vs[i].Options = os
	}

	p.Variants = vs
	return nil
}

// DecrementStock takes qty units off every selected option, but only where
// that many are still left. The guarded UPDATE is the entire concurrency
// story: two webhook commits racing over the last unit serialize in the
// database and exactly one of them sees a row change. Callers run it inside
// the commit transaction so a duplicate-session rollback also rolls the
// stock back.
//
// A short option does not abort the remaining decrements; payment is already
// captured at this point, so the caller flags the order for manual
// fulfillment instead of failing it.
func DecrementStock(ctx context.Context, tx sqlx.ExtContext, selections map[string]string, qty int) (short bool, err error) {
	const q = `
	UPDATE variant_options SET
		stock = stock - $1,
		updated_at = now()
	WHERE variant_id = $2 AND option_id = $3 AND stock >= $1`

	for variantID, optionID := range selections {
		res, err := tx.ExecContext(ctx, q, qty, variantID, optionID)
		if err != nil {
			return false, fmt.Errorf("decrementing stock of option[%s]: %w", optionID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("reading rows affected: %w", err)
		}
		if n == 0 {
			short = true
		}
	}
	return short, nil
}
