package shopconfig

import (
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bundle-discount/internal/function"
)

// --- Mock implementations ---

type mockRepo struct {
	configs   map[string]*Config
	getErr    error
	upsertErr error
	deleteErr error
	deleted   []string
}

func newMockRepo(configs ...*Config) *mockRepo {
	m := &mockRepo{configs: make(map[string]*Config)}
	for _, c := range configs {
		m.configs[c.ShopDomain] = c
	}
	return m
}

func (m *mockRepo) Get(_ context.Context, shop string) (*Config, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.configs[shop]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) Upsert(_ context.Context, cfg *Config) (*Config, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.configs[cfg.ShopDomain] = cfg
	return cfg, nil
}

func (m *mockRepo) Delete(_ context.Context, shop string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.configs[shop]; !ok {
		return ErrNotFound
	}
	delete(m.configs, shop)
	m.deleted = append(m.deleted, shop)
	return nil
}

type mockRegistrar struct {
	functionErr error
	createErr   error
	updateErr   error

	created []function.ConfigurationDocument
	updated []string
}

func (m *mockRegistrar) FunctionID(_ context.Context) (string, error) {
	if m.functionErr != nil {
		return "", m.functionErr
	}
	return "fn-1", nil
}

func (m *mockRegistrar) CreateDiscount(_ context.Context, functionID string, doc function.ConfigurationDocument) (*RegisteredDiscount, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, doc)
	return &RegisteredDiscount{ID: "gid://shopify/DiscountAutomaticNode/new", Title: doc.Label}, nil
}

func (m *mockRegistrar) UpdateDiscount(_ context.Context, discountID, _ string, doc function.ConfigurationDocument) (*RegisteredDiscount, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.updated = append(m.updated, discountID)
	return &RegisteredDiscount{ID: discountID, Title: doc.Label}, nil
}

func validRequest() SaveRequest {
	return SaveRequest{
		BundleSize:  4,
		BundlePrice: decimal.NewFromInt(20),
		Label:       "4 for $20",
		VariantIDs:  []string{"gid://shopify/ProductVariant/1"},
	}
}

// --- Tests ---

func TestSave_CreatesDiscount(t *testing.T) {
	repo := newMockRepo()
	reg := &mockRegistrar{}
	svc := NewService(repo)

	cfg, err := svc.Save(context.Background(), reg, "shop.myshopify.com", validRequest())
	require.NoError(t, err)

	assert.Equal(t, "shop.myshopify.com", cfg.ShopDomain)
	assert.Equal(t, "gid://shopify/DiscountAutomaticNode/new", cfg.DiscountNodeID)
	require.Len(t, reg.created, 1)
	assert.Equal(t, 4, reg.created[0].BundleQuantity)
	assert.Empty(t, reg.updated)
	assert.Same(t, cfg, repo.configs["shop.myshopify.com"])
}

func TestSave_UpdatesExistingDiscount(t *testing.T) {
	repo := newMockRepo(&Config{
		ShopDomain:     "shop.myshopify.com",
		BundleSize:     3,
		BundlePrice:    decimal.NewFromInt(10),
		DiscountNodeID: "gid://shopify/DiscountAutomaticNode/7",
	})
	reg := &mockRegistrar{}
	svc := NewService(repo)

	cfg, err := svc.Save(context.Background(), reg, "shop.myshopify.com", validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"gid://shopify/DiscountAutomaticNode/7"}, reg.updated)
	assert.Empty(t, reg.created)
	assert.Equal(t, "gid://shopify/DiscountAutomaticNode/7", cfg.DiscountNodeID)
	assert.Equal(t, 4, cfg.BundleSize)
}

func TestSave_DefaultLabel(t *testing.T) {
	req := validRequest()
	req.Label = "  "
	req.BundlePrice = decimal.RequireFromString("19.50")

	cfg, err := NewService(newMockRepo()).Save(context.Background(), &mockRegistrar{}, "s", req)
	require.NoError(t, err)
	assert.Equal(t, "4 for $19.5", cfg.Label)
}

func TestSave_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *SaveRequest)
		wantField string
	}{
		{
			name:      "bundle size below two",
			mutate:    func(r *SaveRequest) { r.BundleSize = 1 },
			wantField: "bundleSize",
		},
		{
			name:      "zero bundle price",
			mutate:    func(r *SaveRequest) { r.BundlePrice = decimal.Zero },
			wantField: "bundlePrice",
		},
		{
			name:      "negative bundle price",
			mutate:    func(r *SaveRequest) { r.BundlePrice = decimal.NewFromInt(-1) },
			wantField: "bundlePrice",
		},
		{
			name:      "label too short",
			mutate:    func(r *SaveRequest) { r.Label = "ab" },
			wantField: "label",
		},
		{
			name:      "label too long",
			mutate:    func(r *SaveRequest) { r.Label = strings.Repeat("x", 61) },
			wantField: "label",
		},
		{
			name:      "no variants",
			mutate:    func(r *SaveRequest) { r.VariantIDs = nil },
			wantField: "variantIds",
		},
		{
			name:      "empty variant id",
			mutate:    func(r *SaveRequest) { r.VariantIDs = []string{"gid://shopify/ProductVariant/1", ""} },
			wantField: "variantIds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			reg := &mockRegistrar{}

			_, err := NewService(newMockRepo()).Save(context.Background(), reg, "s", req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
			assert.Empty(t, reg.created, "registrar must not be called")
		})
	}
}

func TestSave_RegistrationErrors(t *testing.T) {
	platformErr := errors.New("userErrors: title: taken")

	tests := []struct {
		name   string
		repo   *mockRepo
		reg    *mockRegistrar
		wantOp string
	}{
		{
			name:   "function not deployed",
			repo:   newMockRepo(),
			reg:    &mockRegistrar{functionErr: platformErr},
			wantOp: "resolve function",
		},
		{
			name:   "create rejected",
			repo:   newMockRepo(),
			reg:    &mockRegistrar{createErr: platformErr},
			wantOp: "create discount",
		},
		{
			name:   "update rejected",
			repo:   newMockRepo(&Config{ShopDomain: "s", DiscountNodeID: "node"}),
			reg:    &mockRegistrar{updateErr: platformErr},
			wantOp: "update discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.repo).Save(context.Background(), tt.reg, "s", validRequest())

			var rerr *RegistrationError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.wantOp, rerr.Op)
			assert.ErrorIs(t, err, platformErr)
		})
	}
}

func TestSave_RepositoryErrors(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		repo := newMockRepo()
		repo.getErr = errors.New("db down")

		_, err := NewService(repo).Save(context.Background(), &mockRegistrar{}, "s", validRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get config")
	})

	t.Run("upsert", func(t *testing.T) {
		repo := newMockRepo()
		repo.upsertErr = errors.New("db down")

		_, err := NewService(repo).Save(context.Background(), &mockRegistrar{}, "s", validRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upsert config")
	})
}

func TestUninstall(t *testing.T) {
	repo := newMockRepo(&Config{ShopDomain: "shop.myshopify.com"})
	svc := NewService(repo)

	require.NoError(t, svc.Uninstall(context.Background(), "shop.myshopify.com"))
	assert.Equal(t, []string{"shop.myshopify.com"}, repo.deleted)

	// Second uninstall finds nothing and still succeeds.
	require.NoError(t, svc.Uninstall(context.Background(), "shop.myshopify.com"))

	repo.deleteErr = errors.New("db down")
	require.Error(t, svc.Uninstall(context.Background(), "shop.myshopify.com"))
}

func TestConfig_Bundle(t *testing.T) {
	cfg := &Config{
		BundleSize:  2,
		BundlePrice: decimal.NewFromInt(15),
		Label:       "2 for $15",
		VariantIDs:  []string{"v1"},
	}

	b := cfg.Bundle()
	assert.Equal(t, 2, b.BundleQuantity)
	assert.True(t, decimal.NewFromInt(15).Equal(b.BundlePrice))
	assert.Equal(t, "2 for $15", b.Label)
	assert.Equal(t, []string{"v1"}, b.VariantIDs)
}
