package shopconfig

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SaveRequest holds the settings submitted by the merchant.
type SaveRequest struct {
	BundleSize  int             `json:"bundleSize" validate:"min=2"`
	BundlePrice decimal.Decimal `json:"bundlePrice" validate:"gt=0"`
	Label       string          `json:"label" validate:"min=3,max=60"`
	VariantIDs  []string        `json:"variantIds" validate:"min=1,dive,required"`
}

// ValidationError reports invalid settings per field.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], ", "))
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// RegistrationError indicates the platform refused to register the discount.
type RegistrationError struct {
	Op  string
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Service saves shop configurations and registers the matching discount.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService creates a Service backed by the given Repository.
func NewService(repo Repository) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	return &Service{repo: repo, validate: v}
}

// Get returns the saved configuration of shop.
func (s *Service) Get(ctx context.Context, shop string) (*Config, error) {
	return s.repo.Get(ctx, shop)
}

// Save validates req, creates or updates the automatic discount through reg
// and persists the configuration together with the discount node id.
func (s *Service) Save(ctx context.Context, reg Registrar, shop string, req SaveRequest) (*Config, error) {
	if err := s.Validate(&req); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, shop)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "get config")
	}

	cfg := &Config{
		ShopDomain:  shop,
		BundleSize:  req.BundleSize,
		BundlePrice: req.BundlePrice,
		Label:       req.Label,
		VariantIDs:  req.VariantIDs,
	}

	functionID, err := reg.FunctionID(ctx)
	if err != nil {
		return nil, &RegistrationError{Op: "resolve function", Err: err}
	}

	var discount *RegisteredDiscount
	if existing != nil && existing.DiscountNodeID != "" {
		discount, err = reg.UpdateDiscount(ctx, existing.DiscountNodeID, functionID, cfg.Document())
		if err != nil {
			return nil, &RegistrationError{Op: "update discount", Err: err}
		}
	} else {
		discount, err = reg.CreateDiscount(ctx, functionID, cfg.Document())
		if err != nil {
			return nil, &RegistrationError{Op: "create discount", Err: err}
		}
	}
	cfg.DiscountNodeID = discount.ID

	saved, err := s.repo.Upsert(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "upsert config")
	}
	return saved, nil
}

// Uninstall removes the configuration of shop. A shop without configuration
// is not an error.
func (s *Service) Uninstall(ctx context.Context, shop string) error {
	if err := s.repo.Delete(ctx, shop); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "delete config")
	}
	return nil
}

// DefaultLabel is the discount title used when the merchant leaves it empty.
func DefaultLabel(size int, price decimal.Decimal) string {
	return fmt.Sprintf("%d for $%s", size, price.String())
}

// Validate trims the label, fills in the default label and checks req.
// Invalid settings are reported as *ValidationError.
func (s *Service) Validate(req *SaveRequest) error {
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		req.Label = DefaultLabel(req.BundleSize, req.BundlePrice)
	}

	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		fields[name] = append(fields[name], fieldMessage(fe))
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.Slice {
			return "select at least " + fe.Param() + " product variant"
		}
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "required":
		return "must not be empty"
	default:
		return "is invalid"
	}
}
