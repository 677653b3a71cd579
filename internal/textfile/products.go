package textfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// productStore implements types.ProductStore over per-user product files.
type productStore struct {
	b *Backend
}

// load reads and parses the user's product file. Lines that fail to parse
// are skipped. The caller must hold b.mu.
func (s *productStore) load(username string) ([]types.Product, error) {
	path := s.b.productsPath(username)
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	products := make([]types.Product, 0, len(lines))
	for i, line := range lines {
		p, err := types.ParseProductLine(line)
		if err != nil {
			s.b.log.Debug("skipping product line",
				zap.String("file", path), zap.Int("line", i+1), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// save rewrites the user's product file. The caller must hold b.mu for
// writing.
func (s *productStore) save(username string, products []types.Product) error {
	lines := make([]string, len(products))
	for i, p := range products {
		lines[i] = p.Line()
	}
	return writeLines(s.b.productsPath(username), lines)
}

func indexOf(products []types.Product, id int64) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *productStore) Exists(ctx context.Context, username string, id int64) (bool, error) {
	_, err := s.Get(ctx, username, id)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *productStore) Get(ctx context.Context, username string, id int64) (types.Product, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if err := s.b.check(ctx); err != nil {
		return types.Product{}, err
	}

	products, err := s.load(username)
	if err != nil {
		return types.Product{}, err
	}
	i := indexOf(products, id)
	if i < 0 {
		return types.Product{}, types.ErrNotFound
	}
	return products[i], nil
}

func (s *productStore) List(ctx context.Context, username string) ([]types.Product, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if err := s.b.check(ctx); err != nil {
		return nil, err
	}

	products, err := s.load(username)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *productStore) Add(ctx context.Context, username string, p types.Product) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}

	products, err := s.load(username)
	if err != nil {
		return err
	}
	if indexOf(products, p.ID) >= 0 {
		return types.ErrDuplicateID
	}
	return s.save(username, append(products, p))
}

func (s *productStore) Update(ctx context.Context, username string, p types.Product) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}

	products, err := s.load(username)
	if err != nil {
		return err
	}
	i := indexOf(products, p.ID)
	if i < 0 {
		return types.ErrNotFound
	}
	products[i] = p
	return s.save(username, products)
}

func (s *productStore) Delete(ctx context.Context, username string, id int64) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}

	products, err := s.load(username)
	if err != nil {
		return err
	}
	i := indexOf(products, id)
	if i < 0 {
		return types.ErrNotFound
	}
	return s.save(username, append(products[:i], products[i+1:]...))
}

func (s *productStore) AdjustQuantity(ctx context.Context, username string, id int64, delta int64) (types.Product, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return types.Product{}, err
	}

	products, err := s.load(username)
	if err != nil {
		return types.Product{}, err
	}
	i := indexOf(products, id)
	if i < 0 {
		return types.Product{}, types.ErrNotFound
	}
	next, err := products[i].Adjusted(delta)
	if err != nil {
		return products[i], err
	}
	products[i] = next
	if err := s.save(username, products); err != nil {
		return types.Product{}, err
	}
	return next, nil
}

func (s *productStore) Count(ctx context.Context, username string) (int, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if err := s.b.check(ctx); err != nil {
		return 0, err
	}

	products, err := s.load(username)
	if err != nil {
		return 0, err
	}
	return len(products), nil
}

func (s *productStore) DeleteAllForUser(ctx context.Context, username string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}
	return removeFile(s.b.productsPath(username))
}

// RenameOwner moves from's product file to to's. A case-only rename maps
// to the same file and is a no-op.
func (s *productStore) RenameOwner(ctx context.Context, from, to string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}

	src, dst := s.b.productsPath(from), s.b.productsPath(to)
	if src == dst {
		return nil
	}
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	existing, err := s.load(to)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %s already owns products", types.ErrUsernameTaken, to)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("renaming product file: %w", err)
	}
	return nil
}
