package auth

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

var nicknameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-.]{1,31}$`)
var nicknameStripRe = regexp.MustCompile(`[^a-z0-9_\-.]+`)

// NicknameRule checks the nickname format used in profile URLs
var NicknameRule = validation.Match(nicknameRe).
	Error("nickname may contain lowercase letters, digits, dots, dashes and underscores")

// NicknameFrom derives a nickname candidate from a login or email
func NicknameFrom(login string) string {
	s := strings.ToLower(strings.TrimSpace(login))
	if i := strings.Index(s, "@"); i > 0 {
		s = s[:i]
	}
	s = nicknameStripRe.ReplaceAllString(s, "")
	s = strings.TrimLeft(s, "_-.")
	if len(s) < 2 {
		s = "user-" + uuid.NewString()[:8]
	}
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}

// maxNicknameAttempts bounds the numeric suffixes UniqueNickname tries
const maxNicknameAttempts = 100

// UniqueNickname derives a nickname out of login that no user has yet,
// appending "-2", "-3"... to the candidate while it is taken
func UniqueNickname(ctx context.Context, repo FieldChecker, login string) (string, error) {
	base := NicknameFrom(login)
	candidate := base

	for i := 2; i <= maxNicknameAttempts+1; i++ {
		ok, err := repo.IsFieldUnique(ctx, "nickname", candidate, uuid.Nil)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
		candidate = nicknameWithSuffix(base, strconv.Itoa(i))
	}

	return nicknameWithSuffix(base, uuid.NewString()[:8]), nil
}

func nicknameWithSuffix(base, suffix string) string {
	suffix = "-" + suffix
	if len(base)+len(suffix) > 32 {
		base = base[:32-len(suffix)]
	}
	return base + suffix
}

// PhoneRule validates international phone numbers, empty values pass
func PhoneRule(defaultRegion string) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil
		}
		num, err := phonenumbers.Parse(s, defaultRegion)
		if err != nil {
			return errors.New("invalid phone number")
		}
		if !phonenumbers.IsValidNumber(num) {
			return errors.New("invalid phone number")
		}
		return nil
	})
}

// NormalizePhone formats a phone number as E164
func NormalizePhone(s, defaultRegion string) string {
	num, err := phonenumbers.Parse(s, defaultRegion)
	if err != nil {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// FieldChecker is implemented by the users repository and the Service
type FieldChecker interface {
	IsFieldUnique(ctx context.Context, field, value string, exclude uuid.UUID) (bool, error)
}

// RoleNameChecker is implemented by the Service
type RoleNameChecker interface {
	IsRoleNameUnique(ctx context.Context, name string, exclude uuid.UUID) (bool, error)
}

// UniqueUserFieldRule fails when another user already has value in field
func UniqueUserFieldRule(ctx context.Context, repo FieldChecker, field string, exclude uuid.UUID) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		ok, err := repo.IsFieldUnique(ctx, field, s, exclude)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("this " + field + " is already in use")
		}
		return nil
	})
}

// UniqueRoleNameRule fails when another role is already named value
func UniqueRoleNameRule(ctx context.Context, repo RoleNameChecker, exclude uuid.UUID) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		ok, err := repo.IsRoleNameUnique(ctx, s, exclude)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("role name is already in use")
		}
		return nil
	})
}
