package settings

import (
	"context"
	"strconv"
	"strings"

	"github.com/tillbook/tillbook/internal/shared"
)

// Service reads and writes settings, applying the documented defaults for
// unset names. Values are parsed once at read through the typed accessors.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the stored value for name, falling back to the default table.
func (s *Service) Get(ctx context.Context, name string) (string, error) {
	value, err := s.repo.Get(ctx, name)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			if def, ok := Defaults[name]; ok {
				return def, nil
			}
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// Set stores value under name with upsert semantics.
func (s *Service) Set(ctx context.Context, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return shared.Missing("setting name")
	}
	return s.repo.Set(ctx, name, value)
}

// All merges stored values over the default table.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(Defaults)+len(stored))
	for name, value := range Defaults {
		merged[name] = value
	}
	for name, value := range stored {
		merged[name] = value
	}
	return merged, nil
}

// Int parses the setting as an integer.
func (s *Service) Int(ctx context.Context, name string) (int, error) {
	raw, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, shared.Invalid("setting " + name + " is not an integer")
	}
	return n, nil
}

// Decimal parses the setting as a decimal number.
func (s *Service) Decimal(ctx context.Context, name string) (float64, error) {
	raw, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, shared.Invalid("setting " + name + " is not a number")
	}
	return f, nil
}

// IntList parses the setting as a CSV of integers, skipping blanks.
func (s *Service) IntList(ctx context.Context, name string) ([]int, error) {
	raw, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	var values []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, shared.Invalid("setting " + name + " contains a non-integer entry")
		}
		values = append(values, n)
	}
	return values, nil
}

// Company assembles the company_* block for rendered documents.
func (s *Service) Company(ctx context.Context) (Company, error) {
	var c Company
	fields := []struct {
		key string
		dst *string
	}{
		{KeyCompanyName, &c.Name},
		{KeyCompanyAddress, &c.Address},
		{KeyCompanyPhone, &c.Phone},
		{KeyCompanyEmail, &c.Email},
		{KeyCompanyWebsite, &c.Website},
		{KeyCompanyTaxID, &c.TaxID},
	}
	for _, f := range fields {
		value, err := s.Get(ctx, f.key)
		if err != nil {
			return Company{}, err
		}
		*f.dst = value
	}
	return c, nil
}
