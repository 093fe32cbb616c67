package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"schnitzel-auth/internal/domain"
)

// Cada mutacion es un script Lua para que lectura, chequeo e indices se apliquen
// en un solo paso atomico del servidor.
const redisWriteUserScript = `
local prefix = ARGV[1]
local old = redis.call("GET", KEYS[1])
if old and ARGV[7] == "create" then
  return redis.error_reply("EXISTS")
end
local owner = redis.call("GET", prefix .. "name:" .. ARGV[4])
if owner and owner ~= ARGV[3] then
  return redis.error_reply("NAME_TAKEN")
end
if ARGV[5] ~= "" then
  owner = redis.call("GET", prefix .. "email:" .. ARGV[5])
  if owner and owner ~= ARGV[3] then
    return redis.error_reply("EMAIL_TAKEN")
  end
end
local record = cjson.decode(ARGV[2])
if old then
  local prev = cjson.decode(old)
  redis.call("DEL", prefix .. "name:" .. prev.name)
  if prev.email then redis.call("DEL", prefix .. "email:" .. prev.email) end
  if prev.reset_token then redis.call("DEL", prefix .. "reset:" .. prev.reset_token) end
  if prev.email_confirmed and prev.email == record.email then record.email_confirmed = true end
  record.created_at = prev.created_at
end
redis.call("SET", KEYS[1], cjson.encode(record))
redis.call("SET", prefix .. "name:" .. ARGV[4], ARGV[3])
if ARGV[5] ~= "" then redis.call("SET", prefix .. "email:" .. ARGV[5], ARGV[3]) end
if ARGV[6] ~= "" then redis.call("SET", prefix .. "reset:" .. ARGV[6], ARGV[3]) end
return 1
`

const redisDeleteUserScript = `
local prefix = ARGV[1]
local old = redis.call("GET", KEYS[1])
if not old then return 0 end
local prev = cjson.decode(old)
redis.call("DEL", prefix .. "name:" .. prev.name)
if prev.email then redis.call("DEL", prefix .. "email:" .. prev.email) end
if prev.reset_token then redis.call("DEL", prefix .. "reset:" .. prev.reset_token) end
redis.call("DEL", KEYS[1])
return 1
`

const redisSetResetTokenScript = `
local prefix = ARGV[1]
local old = redis.call("GET", KEYS[1])
if not old then return 0 end
local u = cjson.decode(old)
if u.reset_token then redis.call("DEL", prefix .. "reset:" .. u.reset_token) end
u.reset_token = ARGV[2]
u.reset_token_expiration = ARGV[3]
u.updated_at = ARGV[4]
redis.call("SET", KEYS[1], cjson.encode(u))
redis.call("SET", prefix .. "reset:" .. ARGV[2], u.id)
return 1
`

const redisConfirmEmailScript = `
local old = redis.call("GET", KEYS[1])
if not old then return 0 end
local u = cjson.decode(old)
u.email_confirmed = true
u.updated_at = ARGV[2]
redis.call("SET", KEYS[1], cjson.encode(u))
return 1
`

const redisConsumeResetTokenScript = `
local prefix = ARGV[1]
local old = redis.call("GET", KEYS[1])
if not old then return 0 end
local u = cjson.decode(old)
if u.reset_token ~= ARGV[2] then return 0 end
redis.call("DEL", prefix .. "reset:" .. ARGV[2])
u.password_hash = ARGV[3]
u.reset_token = nil
u.reset_token_expiration = nil
u.updated_at = ARGV[4]
redis.call("SET", KEYS[1], cjson.encode(u))
return 1
`

type redisScripter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisUserRecord es la forma serializada del usuario; domain.User oculta
// hash y token en JSON.
type redisUserRecord struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email,omitempty"`
	PasswordHash         string     `json:"password_hash"`
	EmailConfirmed       bool       `json:"email_confirmed"`
	ResetToken           string     `json:"reset_token,omitempty"`
	ResetTokenExpiration *time.Time `json:"reset_token_expiration,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// RedisUserRepository implementa UserRepository sobre Redis.
type RedisUserRepository struct {
	client redisScripter
	prefix string
	now    func() time.Time
}

func NewRedisUserRepository(client *redis.Client, prefix string) *RedisUserRepository {
	if client == nil {
		return nil
	}
	return newRedisUserRepository(client, prefix)
}

func newRedisUserRepository(client redisScripter, prefix string) *RedisUserRepository {
	if strings.TrimSpace(prefix) == "" {
		prefix = "auth:user:"
	}
	return &RedisUserRepository{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisUserRepository) Create(ctx context.Context, user domain.User) error {
	return r.write(ctx, user, "create")
}

func (r *RedisUserRepository) Save(ctx context.Context, user domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now()
	}
	user.UpdatedAt = r.now()
	return r.write(ctx, user, "save")
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	raw, err := r.client.Get(ctx, r.idKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return domain.User{}, oops.With("operation", "get user").With("user_id", id).Wrap(err)
	}
	var rec redisUserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.User{}, oops.With("operation", "decode user").With("user_id", id).Wrap(err)
	}
	return rec.toDomain(), nil
}

func (r *RedisUserRepository) GetByName(ctx context.Context, name string) (domain.User, error) {
	return r.getByIndex(ctx, "name:", name)
}

func (r *RedisUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getByIndex(ctx, "email:", email)
}

func (r *RedisUserRepository) GetByResetToken(ctx context.Context, token string) (domain.User, error) {
	return r.getByIndex(ctx, "reset:", token)
}

func (r *RedisUserRepository) Delete(ctx context.Context, id string) error {
	return r.mutate(ctx, "delete user", id, redisDeleteUserScript, r.prefix)
}

func (r *RedisUserRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return r.mutate(ctx, "set reset token", id, redisSetResetTokenScript,
		r.prefix, token, formatTime(expiresAt), formatTime(r.now()))
}

func (r *RedisUserRepository) ConfirmEmail(ctx context.Context, id string) error {
	return r.mutate(ctx, "confirm email", id, redisConfirmEmailScript, r.prefix, formatTime(r.now()))
}

func (r *RedisUserRepository) ConsumeResetToken(ctx context.Context, id, token, passwordHash string) error {
	if token == "" {
		return ErrNotFound
	}
	return r.mutate(ctx, "consume reset token", id, redisConsumeResetTokenScript,
		r.prefix, token, passwordHash, formatTime(r.now()))
}

func (r *RedisUserRepository) write(ctx context.Context, user domain.User, mode string) error {
	payload, err := json.Marshal(recordFromDomain(user))
	if err != nil {
		return oops.With("operation", "encode user").With("user_id", user.ID).Wrap(err)
	}
	err = r.client.Eval(ctx, redisWriteUserScript, []string{r.idKey(user.ID)},
		r.prefix, string(payload), user.ID, user.Name, user.Email, user.ResetToken, mode,
	).Err()
	if err == nil {
		return nil
	}
	// Redis puede anteponer un codigo como "ERR" al mensaje del script.
	switch msg := err.Error(); {
	case strings.Contains(msg, "NAME_TAKEN"):
		return oops.Code("USER_NAME_TAKEN").With("user_id", user.ID).Wrap(ErrNameTaken)
	case strings.Contains(msg, "EMAIL_TAKEN"):
		return oops.Code("USER_EMAIL_TAKEN").With("user_id", user.ID).Wrap(ErrEmailTaken)
	}
	return oops.With("operation", mode+" user").With("user_id", user.ID).Wrap(err)
}

func (r *RedisUserRepository) mutate(ctx context.Context, operation, id, script string, args ...interface{}) error {
	n, err := r.client.Eval(ctx, script, []string{r.idKey(id)}, args...).Int()
	if err != nil {
		return oops.With("operation", operation).With("user_id", id).Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").With("operation", operation).With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *RedisUserRepository) getByIndex(ctx context.Context, index, value string) (domain.User, error) {
	if strings.TrimSpace(value) == "" {
		return domain.User{}, ErrNotFound
	}
	id, err := r.client.Get(ctx, r.prefix+index+value).Result()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, oops.Code("USER_NOT_FOUND").With("lookup", strings.TrimSuffix(index, ":")).Wrap(ErrNotFound)
	}
	if err != nil {
		return domain.User{}, oops.With("operation", "get user index").With("lookup", strings.TrimSuffix(index, ":")).Wrap(err)
	}
	return r.GetByID(ctx, id)
}

func (r *RedisUserRepository) idKey(id string) string {
	return r.prefix + "id:" + id
}

func recordFromDomain(u domain.User) redisUserRecord {
	return redisUserRecord{
		ID:                   u.ID,
		Name:                 u.Name,
		Email:                u.Email,
		PasswordHash:         u.PasswordHash,
		EmailConfirmed:       u.EmailConfirmed,
		ResetToken:           u.ResetToken,
		ResetTokenExpiration: u.ResetTokenExpiration,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func (rec redisUserRecord) toDomain() domain.User {
	return domain.User{
		ID:                   rec.ID,
		Name:                 rec.Name,
		Email:                rec.Email,
		PasswordHash:         rec.PasswordHash,
		EmailConfirmed:       rec.EmailConfirmed,
		ResetToken:           rec.ResetToken,
		ResetTokenExpiration: rec.ResetTokenExpiration,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
