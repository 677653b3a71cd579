package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/mesh-intelligence/vento/pkg/types"
)

type productStore struct {
	b *Backend
}

const productColumns = "id, name, price, quantity"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (types.Product, error) {
	var p types.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)
	return p, err
}

func (s *productStore) Exists(ctx context.Context, username string, id int64) (bool, error) {
	_, err := s.Get(ctx, username, id)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *productStore) Get(ctx context.Context, username string, id int64) (types.Product, error) {
	release, err := s.b.acquire()
	if err != nil {
		return types.Product{}, err
	}
	defer release()

	row := s.b.db.QueryRowContext(ctx,
		s.b.q("SELECT "+productColumns+" FROM products WHERE owner = ? AND id = ?"),
		types.UsernameKey(username), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Product{}, types.ErrNotFound
	}
	if err != nil {
		return types.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *productStore) List(ctx context.Context, username string) ([]types.Product, error) {
	release, err := s.b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.b.db.QueryContext(ctx,
		s.b.q("SELECT "+productColumns+" FROM products WHERE owner = ? ORDER BY id"),
		types.UsernameKey(username))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []types.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *productStore) Add(ctx context.Context, username string, p types.Product) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	owner := types.UsernameKey(username)
	return s.b.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			s.b.q("SELECT COUNT(*) FROM products WHERE owner = ? AND id = ?"), owner, p.ID).Scan(&n)
		if err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if n > 0 {
			return types.ErrDuplicateID
		}
		ts := now()
		_, err = tx.ExecContext(ctx,
			s.b.q(`INSERT INTO products (owner, id, name, price, quantity, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
			owner, p.ID, p.Name, p.Price, p.Quantity, ts, ts)
		if isUniqueViolation(err) {
			return types.ErrDuplicateID
		}
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	})
}

func (s *productStore) Update(ctx context.Context, username string, p types.Product) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := s.b.db.ExecContext(ctx,
		s.b.q("UPDATE products SET name = ?, price = ?, quantity = ?, updated_at = ? WHERE owner = ? AND id = ?"),
		p.Name, p.Price, p.Quantity, now(), types.UsernameKey(username), p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	// updated_at always changes, so a matched row is always affected.
	return requireAffected(res, types.ErrNotFound)
}

func (s *productStore) Delete(ctx context.Context, username string, id int64) error {
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := s.b.db.ExecContext(ctx,
		s.b.q("DELETE FROM products WHERE owner = ? AND id = ?"), types.UsernameKey(username), id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return requireAffected(res, types.ErrNotFound)
}

// AdjustQuantity applies delta in one conditional UPDATE so concurrent
// callers cannot drive the quantity negative or past MaxInt64.
func (s *productStore) AdjustQuantity(ctx context.Context, username string, id int64, delta int64) (types.Product, error) {
	release, err := s.b.acquire()
	if err != nil {
		return types.Product{}, err
	}
	defer release()

	owner := types.UsernameKey(username)
	ceiling := int64(math.MaxInt64)
	if delta > 0 {
		ceiling -= delta
	}
	row := s.b.db.QueryRowContext(ctx,
		s.b.q(`UPDATE products SET quantity = quantity + ?, updated_at = ?
WHERE owner = ? AND id = ? AND quantity + ? >= 0 AND quantity <= ?
RETURNING `+productColumns),
		delta, now(), owner, id, delta, ceiling)
	p, err := scanProduct(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Product{}, fmt.Errorf("adjust quantity: %w", err)
	}

	// No row matched: either the product is missing or the guard failed.
	cur, err := scanProduct(s.b.db.QueryRowContext(ctx,
		s.b.q("SELECT "+productColumns+" FROM products WHERE owner = ? AND id = ?"), owner, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Product{}, types.ErrNotFound
	}
	if err != nil {
		return types.Product{}, fmt.Errorf("get product: %w", err)
	}
	if _, err := cur.Adjusted(delta); err != nil {
		return cur, err
	}
	return cur, types.ErrInsufficientStock
}

func (s *productStore) Count(ctx context.Context, username string) (int, error) {
	release, err := s.b.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	err = s.b.db.QueryRowContext(ctx,
		s.b.q("SELECT COUNT(*) FROM products WHERE owner = ?"), types.UsernameKey(username)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *productStore) DeleteAllForUser(ctx context.Context, username string) error {
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.b.db.ExecContext(ctx,
		s.b.q("DELETE FROM products WHERE owner = ?"), types.UsernameKey(username)); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	return nil
}

// RenameOwner reassigns from's products to to. It refuses when to already
// owns products, matching the file backend.
func (s *productStore) RenameOwner(ctx context.Context, from, to string) error {
	src, dst := types.UsernameKey(from), types.UsernameKey(to)
	if src == dst {
		return nil
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	return s.b.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			s.b.q("SELECT COUNT(*) FROM products WHERE owner = ?"), dst).Scan(&n); err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		if n > 0 {
			var moving int
			if err := tx.QueryRowContext(ctx,
				s.b.q("SELECT COUNT(*) FROM products WHERE owner = ?"), src).Scan(&moving); err != nil {
				return fmt.Errorf("count products: %w", err)
			}
			if moving > 0 {
				return fmt.Errorf("%w: %s already owns products", types.ErrUsernameTaken, to)
			}
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			s.b.q("UPDATE products SET owner = ? WHERE owner = ?"), dst, src); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s already owns products", types.ErrUsernameTaken, to)
			}
			return fmt.Errorf("rename owner: %w", err)
		}
		return nil
	})
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
