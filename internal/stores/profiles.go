package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrProfileExists    = errors.New("profile already exists")
	ErrRedisUnavailable = errors.New("store redis unavailable")
)

// ProfileRecord is the canonical in-memory profile. Role and the
// password-change flag each have a single field here; the legacy dual
// spellings exist only inside profileDoc.
type ProfileRecord struct {
	UID                    string
	Email                  string
	Nombre                 string
	ApellidoPaterno        string
	ApellidoMaterno        string
	DisplayName            string
	Role                   string
	RoleLetter             string
	SchoolID               string
	PhotoURL               string
	PasswordChangeRequired bool
	PasswordValidUntil     *time.Time
	// TempPassword keeps the last issued temporary credential in cleartext
	// for one-time admin display. Accepted trade-off carried over from the
	// platform's observable behavior.
	TempPassword        string
	CreatedAt           time.Time
	LastLogin           *time.Time
	LastPasswordResetBy string
	LastPasswordResetAt *time.Time
}

// profileDoc is the serialization shape. It dual-writes the legacy field
// names and accepts either spelling on load.
type profileDoc struct {
	UID                    string     `json:"uid"`
	Email                  string     `json:"email"`
	Nombre                 string     `json:"nombre"`
	ApellidoPaterno        string     `json:"apellidoPaterno"`
	ApellidoMaterno        string     `json:"apellidoMaterno"`
	DisplayName            string     `json:"displayName"`
	SearchableDisplayName  string     `json:"searchableDisplayName"`
	Role                   string     `json:"role"`
	Rol                    string     `json:"rol"`
	RoleLetter             string     `json:"roleLetter"`
	SchoolID               string     `json:"schoolId,omitempty"`
	PhotoURL               string     `json:"photoURL,omitempty"`
	PasswordChangeRequired bool       `json:"passwordChangeRequired"`
	ForcePasswordChange    bool       `json:"forcePasswordChange"`
	PasswordValidUntil     *time.Time `json:"passwordValidUntil,omitempty"`
	TempPassword           string     `json:"tempPassword,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	LastLogin              *time.Time `json:"lastLogin,omitempty"`
	LastPasswordResetBy    string     `json:"lastPasswordResetBy,omitempty"`
	LastPasswordResetAt    *time.Time `json:"lastPasswordResetByAdminAt,omitempty"`
}

func encodeProfile(rec *ProfileRecord) ([]byte, error) {
	doc := profileDoc{
		UID:                    rec.UID,
		Email:                  rec.Email,
		Nombre:                 rec.Nombre,
		ApellidoPaterno:        rec.ApellidoPaterno,
		ApellidoMaterno:        rec.ApellidoMaterno,
		DisplayName:            rec.DisplayName,
		SearchableDisplayName:  strings.ToLower(rec.DisplayName),
		Role:                   rec.Role,
		Rol:                    strings.ToLower(rec.Role),
		RoleLetter:             rec.RoleLetter,
		SchoolID:               rec.SchoolID,
		PhotoURL:               rec.PhotoURL,
		PasswordChangeRequired: rec.PasswordChangeRequired,
		ForcePasswordChange:    rec.PasswordChangeRequired,
		PasswordValidUntil:     rec.PasswordValidUntil,
		TempPassword:           rec.TempPassword,
		CreatedAt:              rec.CreatedAt,
		LastLogin:              rec.LastLogin,
		LastPasswordResetBy:    rec.LastPasswordResetBy,
		LastPasswordResetAt:    rec.LastPasswordResetAt,
	}
	return json.Marshal(doc)
}

func decodeProfile(data []byte) (*ProfileRecord, error) {
	var doc profileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	role := doc.Role
	if role == "" && doc.Rol != "" {
		role = titleCase(doc.Rol)
	}

	return &ProfileRecord{
		UID:                    doc.UID,
		Email:                  doc.Email,
		Nombre:                 doc.Nombre,
		ApellidoPaterno:        doc.ApellidoPaterno,
		ApellidoMaterno:        doc.ApellidoMaterno,
		DisplayName:            doc.DisplayName,
		Role:                   role,
		RoleLetter:             doc.RoleLetter,
		SchoolID:               doc.SchoolID,
		PhotoURL:               doc.PhotoURL,
		PasswordChangeRequired: doc.PasswordChangeRequired || doc.ForcePasswordChange,
		PasswordValidUntil:     doc.PasswordValidUntil,
		TempPassword:           doc.TempPassword,
		CreatedAt:              doc.CreatedAt,
		LastLogin:              doc.LastLogin,
		LastPasswordResetBy:    doc.LastPasswordResetBy,
		LastPasswordResetAt:    doc.LastPasswordResetAt,
	}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// Profiles stores profile documents plus two secondary indexes: normalized
// email to uid, and issued temp password to uid (the best-effort uniqueness
// probe used during provisioning).
type Profiles struct {
	redis  redis.UniversalClient
	prefix string
}

func NewProfiles(redisClient redis.UniversalClient, prefix string) *Profiles {
	if prefix == "" {
		prefix = "ck"
	}
	return &Profiles{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Profiles) key(uid string) string {
	return s.prefix + ":profile:" + uid
}

func (s *Profiles) emailKey(email string) string {
	return s.prefix + ":profileEmail:" + strings.ToLower(strings.TrimSpace(email))
}

func (s *Profiles) tempPwKey(pw string) string {
	return s.prefix + ":tempPw:" + pw
}

// Create persists a new profile and its indexes. A profile or email-index
// collision returns ErrProfileExists.
func (s *Profiles) Create(ctx context.Context, rec *ProfileRecord) error {
	encoded, err := encodeProfile(rec)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(rec.UID), encoded, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrProfileExists
	}

	ok, err = s.redis.SetNX(ctx, s.emailKey(rec.Email), rec.UID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		// Undo the document write so a racing duplicate leaves no orphan.
		_ = s.redis.Del(ctx, s.key(rec.UID)).Err()
		return ErrProfileExists
	}

	if rec.TempPassword != "" {
		if err := s.redis.Set(ctx, s.tempPwKey(rec.TempPassword), rec.UID, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}

// Get loads a profile by uid.
func (s *Profiles) Get(ctx context.Context, uid string) (*ProfileRecord, error) {
	data, err := s.redis.Get(ctx, s.key(uid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeProfile(data)
}

// GetByEmail loads a profile through the email index.
func (s *Profiles) GetByEmail(ctx context.Context, email string) (*ProfileRecord, error) {
	uid, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.Get(ctx, uid)
}

// TempPasswordInUse reports whether a generated temporary password is
// already held by some profile.
func (s *Profiles) TempPasswordInUse(ctx context.Context, pw string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.tempPwKey(pw)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// MarkPasswordReset flags the profile for a forced change: sets the flag
// (both external spellings via the codec), the validity window, the
// resolving admin, and the newly issued temp password.
func (s *Profiles) MarkPasswordReset(ctx context.Context, uid, byUID string, at, validUntil time.Time, tempPassword string) error {
	return s.update(ctx, uid, func(rec *ProfileRecord) {
		if rec.TempPassword != "" && rec.TempPassword != tempPassword {
			_ = s.redis.Del(ctx, s.tempPwKey(rec.TempPassword)).Err()
		}
		rec.PasswordChangeRequired = true
		rec.PasswordValidUntil = &validUntil
		rec.LastPasswordResetBy = byUID
		resetAt := at
		rec.LastPasswordResetAt = &resetAt
		rec.TempPassword = tempPassword
	}, tempPassword)
}

// ClearPasswordFlags completes a forced change: clears both flag spellings,
// the validity window, and the stored temp password, and stamps last login.
func (s *Profiles) ClearPasswordFlags(ctx context.Context, uid string, at time.Time) error {
	return s.update(ctx, uid, func(rec *ProfileRecord) {
		if rec.TempPassword != "" {
			_ = s.redis.Del(ctx, s.tempPwKey(rec.TempPassword)).Err()
		}
		rec.PasswordChangeRequired = false
		rec.PasswordValidUntil = nil
		rec.TempPassword = ""
		login := at
		rec.LastLogin = &login
	}, "")
}

func (s *Profiles) update(ctx context.Context, uid string, mutate func(*ProfileRecord), newTempPassword string) error {
	rec, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}

	mutate(rec)

	encoded, err := encodeProfile(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(uid), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if newTempPassword != "" {
		if err := s.redis.Set(ctx, s.tempPwKey(newTempPassword), uid, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}
