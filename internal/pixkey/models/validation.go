package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	dErrors "pixkeys/pkg/domain-errors"
)

const (
	MaxEmailLength         = 77
	VerificationCodeLength = 6
)

var mobilePhonePattern = regexp.MustCompile(`^\+55[1-9][1-9]9[0-9]{8}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the pix key rules registered:
// "cpf", "cnpj" and "br_mobile".
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
			return IsValidCPF(fl.Field().String())
		})
		_ = v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
			return IsValidCNPJ(fl.Field().String())
		})
		_ = v.RegisterValidation("br_mobile", func(fl validator.FieldLevel) bool {
			return mobilePhonePattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

var keyValueRules = map[KeyType]string{
	KeyTypeCPF:   "required,cpf",
	KeyTypeCNPJ:  "required,cnpj",
	KeyTypeEmail: fmt.Sprintf("required,email,max=%d", MaxEmailLength),
	KeyTypePhone: "required,br_mobile",
}

// ValidateKeyValue checks value against the format of keyType. EVP values
// are assigned by the registry and are never accepted from callers.
func ValidateKeyValue(keyType KeyType, value *string) error {
	if !keyType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unsupported key type")
	}
	if keyType == KeyTypeEVP {
		if value != nil && *value != "" {
			return dErrors.New(dErrors.CodeValidation, "random key value is not supported")
		}
		return nil
	}
	if value == nil {
		return dErrors.New(dErrors.CodeValidation, "key value is required")
	}
	if err := Validator().Var(*value, keyValueRules[keyType]); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("invalid %s key value", keyType))
	}
	return nil
}

// ValidateLookupValue is ValidateKeyValue for decode requests, where EVP
// values must be present and well formed.
func ValidateLookupValue(keyType KeyType, value string) error {
	if keyType == KeyTypeEVP {
		if err := Validator().Var(value, "required,uuid"); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid EVP key value")
		}
		return nil
	}
	return ValidateKeyValue(keyType, &value)
}

func IsValidCPF(s string) bool {
	d, ok := digits(s, 11)
	if !ok || allEqual(d) {
		return false
	}
	return cpfDigit(d[:9], 10) == d[9] && cpfDigit(d[:10], 11) == d[10]
}

func cpfDigit(d []int, weight int) int {
	sum := 0
	for i, v := range d {
		sum += v * (weight - i)
	}
	r := sum * 10 % 11
	if r == 10 {
		return 0
	}
	return r
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

func IsValidCNPJ(s string) bool {
	d, ok := digits(s, 14)
	if !ok || allEqual(d) {
		return false
	}
	return cnpjDigit(d[:12], cnpjWeights1) == d[12] && cnpjDigit(d[:13], cnpjWeights2) == d[13]
}

func cnpjDigit(d, weights []int) int {
	sum := 0
	for i, v := range d {
		sum += v * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func digits(s string, n int) ([]int, bool) {
	if len(s) != n {
		return nil, false
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return nil, false
		}
		out[i] = int(c - '0')
	}
	return out, true
}

func allEqual(d []int) bool {
	for _, v := range d[1:] {
		if v != d[0] {
			return false
		}
	}
	return true
}

// NewVerificationCode returns a uniformly random numeric code.
func NewVerificationCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", VerificationCodeLength, n.Int64()), nil
}
